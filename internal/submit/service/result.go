package service

import "interviewoj/internal/judge/model"

// CaseView is one visible case as shown after a run.
type CaseView struct {
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
	Stdout         string `json:"stdout"`
	Passed         bool   `json:"passed"`
	Status         string `json:"status"`
}

// RunResult is the response to a run request.
type RunResult struct {
	SubmissionID string `json:"submission_id,omitempty"`
	// Success is true when the program ran to completion on every case,
	// whether or not the answers were right.
	Success      bool       `json:"success"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Status       string     `json:"status"`
	UserFault    bool       `json:"user_fault"`
	RuntimeMs    int64      `json:"runtime_ms"`
	MemoryKb     int64      `json:"memory_kb"`
	TestCases    []CaseView `json:"test_cases"`
}

// SubmitResult is the response to a submit request. It never carries per-case detail.
type SubmitResult struct {
	SubmissionID string   `json:"submission_id"`
	Accepted     bool     `json:"accepted"`
	Status       string   `json:"status"`
	UserFault    bool     `json:"user_fault"`
	ErrorMessage string   `json:"error_message,omitempty"`
	PassedCount  int      `json:"passed_count"`
	TotalCount   int      `json:"total_count"`
	RuntimeMs    int64    `json:"runtime_ms"`
	MemoryKb     int64    `json:"memory_kb"`
	Beats        *float64 `json:"beats,omitempty"`
}

func NewRunResult(sub *model.Submission) *RunResult {
	out := &RunResult{
		SubmissionID: sub.ID,
		Success:      sub.Status == model.Accepted || sub.Status == model.WrongAnswer,
		ErrorMessage: sub.ErrorMessage,
		Status:       sub.Status.String(),
		UserFault:    sub.Status.IsUserFault(),
		RuntimeMs:    sub.RuntimeMs,
		MemoryKb:     sub.MemoryKb,
		TestCases:    make([]CaseView, len(sub.CaseResults)),
	}
	for i, r := range sub.CaseResults {
		out.TestCases[i] = CaseView{
			Stdin:          r.Stdin,
			ExpectedOutput: r.ExpectedOutput,
			Stdout:         r.Stdout,
			Passed:         r.Status == model.Accepted,
			Status:         r.Status.String(),
		}
	}
	return out
}

func NewSubmitResult(sub *model.Submission) *SubmitResult {
	return &SubmitResult{
		SubmissionID: sub.ID,
		Accepted:     sub.Accepted(),
		Status:       sub.Status.String(),
		UserFault:    sub.Status.IsUserFault(),
		ErrorMessage: sub.ErrorMessage,
		PassedCount:  sub.PassedCount,
		TotalCount:   sub.TotalCount,
		RuntimeMs:    sub.RuntimeMs,
		MemoryKb:     sub.MemoryKb,
	}
}
