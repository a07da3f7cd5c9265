// Package verdict reduces per-case results into a submission outcome.
package verdict

import "interviewoj/internal/judge/model"

// Reduce folds case results into one verdict.
//
// Priority: any CompileError wins with zero passed cases; otherwise any
// InternalError marks the whole run as a judge fault; otherwise the first
// non-accepted case in input order decides the status. Runtime and memory
// are the maxima over all cases.
func Reduce(results []model.CaseResult) model.Verdict {
	v := model.Verdict{TotalCount: len(results)}
	if len(results) == 0 {
		v.Status = model.InternalError
		return v
	}

	var (
		hasCompile  bool
		hasInternal bool
		firstFail   = -1
	)
	for i, r := range results {
		if r.TimeMs > v.RuntimeMs {
			v.RuntimeMs = r.TimeMs
		}
		if r.MemoryKb > v.MemoryKb {
			v.MemoryKb = r.MemoryKb
		}
		switch r.Status {
		case model.Accepted:
			v.PassedCount++
		case model.CompileError:
			hasCompile = true
		case model.InternalError:
			hasInternal = true
		case model.WrongAnswer, model.RuntimeError, model.TimeLimitExceeded, model.MemoryLimitExceeded:
		default:
			// Out-of-range values are a judge bug, never a user fault.
			hasInternal = true
		}
		if r.Status != model.Accepted && firstFail < 0 {
			firstFail = i
		}
	}

	switch {
	case hasCompile:
		v.Status = model.CompileError
		v.PassedCount = 0
	case hasInternal:
		v.Status = model.InternalError
	case firstFail < 0:
		v.Status = model.Accepted
	default:
		v.Status = results[firstFail].Status
	}
	return v
}

// Deciding returns the index of the case that determined v.Status, or -1 when
// every case passed.
func Deciding(results []model.CaseResult, v model.Verdict) int {
	if v.Status == model.Accepted {
		return -1
	}
	for i, r := range results {
		if r.Status == v.Status {
			return i
		}
	}
	return -1
}
