package repository

import "testing"

func TestSetPagination(t *testing.T) {
	t.Parallel()
	tests := []struct {
		page, size         int
		wantOffset, wantLn int
	}{
		{page: 1, size: 20, wantOffset: 0, wantLn: 20},
		{page: 3, size: 10, wantOffset: 20, wantLn: 10},
		{page: 0, size: 0, wantOffset: 0, wantLn: DefaultPageSize},
		{page: 2, size: 500, wantOffset: MaxPageSize, wantLn: MaxPageSize},
	}
	for _, tt := range tests {
		var opts ListOptions
		opts.SetPagination(tt.page, tt.size)
		if opts.Offset != tt.wantOffset || opts.Limit != tt.wantLn {
			t.Fatalf("SetPagination(%d, %d) = %+v", tt.page, tt.size, opts)
		}
		if err := opts.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	if err := (&ListOptions{Limit: MaxPageSize + 1}).Validate(); err == nil {
		t.Fatalf("expected limit error")
	}
	if err := (&ListOptions{Offset: -1}).Validate(); err == nil {
		t.Fatalf("expected offset error")
	}
	opts := ListOptions{}
	if err := opts.Validate(); err != nil || opts.Limit != DefaultPageSize {
		t.Fatalf("expected default limit, got %+v (%v)", opts, err)
	}
	if (ListOptions{Offset: 40, Limit: 20}).Page() != 3 {
		t.Fatalf("unexpected page")
	}
}
