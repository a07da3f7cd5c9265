// Package executor defines the boundary to the external sandboxed runner.
package executor

import (
	"context"
	"time"

	"interviewoj/internal/judge/model"
)

// Executor runs units in an external sandbox. Result i always corresponds to
// unit i, every slot is filled, and infrastructure failures come back as
// InternalError results instead of errors.
type Executor interface {
	Execute(ctx context.Context, units []model.ExecutionUnit) []model.CaseResult
}

// Failure reasons reported on InternalError results.
const (
	ReasonUnreachable = "judge service unreachable"
	ReasonBadResponse = "judge service returned an invalid response"
	ReasonDeadline    = "judge deadline exceeded"
	ReasonCancelled   = "judging cancelled"
	ReasonRejected    = "judge service rejected the submission"
)

// InternalResult is the well-formed stand-in for a unit the judge could not resolve.
func InternalResult(unit model.ExecutionUnit, reason string) model.CaseResult {
	return model.CaseResult{
		Stdin:          unit.Stdin,
		ExpectedOutput: unit.ExpectedOutput,
		Status:         model.InternalError,
		Message:        reason,
	}
}

// Backoff is a doubling delay capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait before attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	delay := b.Initial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// Sleep waits for d or until ctx is done, reporting whether the full wait elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
