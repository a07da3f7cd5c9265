package model

import "time"

// Mode selects which test cases run and how much detail is returned.
type Mode string

const (
	ModeRun    Mode = "run"
	ModeSubmit Mode = "submit"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeRun || m == ModeSubmit
}

// ExecutionUnit is one program+input handed to the sandbox. Never persisted.
type ExecutionUnit struct {
	SourceCode     string
	Stdin          string
	ExpectedOutput string
	LanguageID     int
	TimeLimitMs    int64
	MemoryLimitKb  int64
}

// CaseResult is the judged outcome of one ExecutionUnit.
type CaseResult struct {
	Stdin          string     `json:"stdin"`
	ExpectedOutput string     `json:"expected_output"`
	Stdout         string     `json:"stdout"`
	Status         StatusKind `json:"status"`
	TimeMs         int64      `json:"time_ms"`
	MemoryKb       int64      `json:"memory_kb"`
	// Message holds compiler output, stderr or the judge-side failure reason.
	Message string `json:"message,omitempty"`
}

// Verdict is the reduction of all case results of one submission.
type Verdict struct {
	Status      StatusKind
	PassedCount int
	TotalCount  int
	RuntimeMs   int64
	MemoryKb    int64
}

// Submission is one judged attempt. Immutable after it is recorded.
type Submission struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	ProblemID    int64        `json:"problem_id"`
	Language     Language     `json:"language"`
	Code         string       `json:"code"`
	Mode         Mode         `json:"mode"`
	Status       StatusKind   `json:"status"`
	PassedCount  int          `json:"passed_count"`
	TotalCount   int          `json:"total_count"`
	RuntimeMs    int64        `json:"runtime_ms"`
	MemoryKb     int64        `json:"memory_kb"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CaseResults  []CaseResult `json:"case_results,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Accepted reports whether the submission passed every case.
func (s *Submission) Accepted() bool {
	return s != nil && s.Status == Accepted && s.PassedCount == s.TotalCount
}
