package repository

import (
	"encoding/json"
	"time"

	"interviewoj/internal/judge/model"
)

// ProblemRecord is one row of the problems table. Hidden cases live in the
// case pack referenced by HiddenPackKey, never in the row.
type ProblemRecord struct {
	ID                int64                     `json:"id"`
	Title             string                    `json:"title"`
	Signature         model.Signature           `json:"signature"`
	VisibleTestCases  []model.TestCase          `json:"visible_test_cases"`
	StartCode         map[model.Language]string `json:"start_code,omitempty"`
	ReferenceSolution map[model.Language]string `json:"reference_solution,omitempty"`
	DriverTemplates   map[model.Language]string `json:"driver_templates,omitempty"`
	TimeLimitMs       int64                     `json:"time_limit_ms"`
	MemoryLimitKb     int64                     `json:"memory_limit_kb"`
	HiddenPackKey     string                    `json:"hidden_pack_key"`
	HiddenPackSHA256  string                    `json:"hidden_pack_sha256"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

func (r *ProblemRecord) toProblem(hidden []model.TestCase) *model.Problem {
	return &model.Problem{
		ID:                r.ID,
		Title:             r.Title,
		Signature:         r.Signature,
		VisibleTestCases:  r.VisibleTestCases,
		HiddenTestCases:   hidden,
		StartCode:         r.StartCode,
		ReferenceSolution: r.ReferenceSolution,
		DriverTemplates:   r.DriverTemplates,
		TimeLimitMs:       r.TimeLimitMs,
		MemoryLimitKb:     r.MemoryLimitKb,
	}
}

// jsonColumns holds the JSON-encoded columns of a ProblemRecord.
type jsonColumns struct {
	signature, visible, startCode, reference, drivers []byte
}

func encodeColumns(r *ProblemRecord) (jsonColumns, error) {
	var (
		cols jsonColumns
		err  error
	)
	if cols.signature, err = json.Marshal(r.Signature); err != nil {
		return cols, err
	}
	if cols.visible, err = json.Marshal(r.VisibleTestCases); err != nil {
		return cols, err
	}
	if cols.startCode, err = json.Marshal(r.StartCode); err != nil {
		return cols, err
	}
	if cols.reference, err = json.Marshal(r.ReferenceSolution); err != nil {
		return cols, err
	}
	if cols.drivers, err = json.Marshal(r.DriverTemplates); err != nil {
		return cols, err
	}
	return cols, nil
}

func (c jsonColumns) decodeInto(r *ProblemRecord) error {
	if err := unmarshalColumn(c.signature, &r.Signature); err != nil {
		return err
	}
	if err := unmarshalColumn(c.visible, &r.VisibleTestCases); err != nil {
		return err
	}
	if err := unmarshalColumn(c.startCode, &r.StartCode); err != nil {
		return err
	}
	if err := unmarshalColumn(c.reference, &r.ReferenceSolution); err != nil {
		return err
	}
	return unmarshalColumn(c.drivers, &r.DriverTemplates)
}

func unmarshalColumn(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}
