// Package repository holds list options shared by the SQL repositories.
package repository

import "errors"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListOptions defines pagination for list queries.
type ListOptions struct {
	Offset int `json:"offset"` // Number of records to skip
	Limit  int `json:"limit"`  // Maximum number of records to return
}

// Validate sets defaults and rejects out-of-range values.
func (o *ListOptions) Validate() error {
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		return errors.New("limit exceeds maximum allowed value of 100")
	}
	if o.Offset < 0 {
		return errors.New("offset must be non-negative")
	}
	return nil
}

// SetPagination sets pagination parameters from a 1-based page number.
func (o *ListOptions) SetPagination(page, pageSize int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	o.Offset = (page - 1) * pageSize
	o.Limit = pageSize
}

// Page returns the 1-based page number the options point at.
func (o ListOptions) Page() int {
	if o.Limit <= 0 {
		return 1
	}
	return o.Offset/o.Limit + 1
}
