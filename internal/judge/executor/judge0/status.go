package judge0

import (
	"math"
	"strconv"
	"strings"

	"interviewoj/internal/judge/harness"
	"interviewoj/internal/judge/model"
)

// Judge0 status ids.
const (
	statusInQueue         = 1
	statusProcessing      = 2
	statusAccepted        = 3
	statusWrongAnswer     = 4
	statusTimeLimit       = 5
	statusCompileError    = 6
	statusRuntimeFirst    = 7 // SIGSEGV
	statusRuntimeLast     = 12
	statusInternalError   = 13
	statusExecFormatError = 14
)

var outOfMemoryMarkers = []string{
	"std::bad_alloc",
	"java.lang.OutOfMemoryError",
	"JavaScript heap out of memory",
}

func finished(r *submissionResult) bool {
	return r != nil && r.Status != nil && r.Status.ID != statusInQueue && r.Status.ID != statusProcessing
}

// classify turns a finished Judge0 result into a CaseResult. Correctness is
// decided here from normalized output rather than by the sandbox.
func classify(unit model.ExecutionUnit, r *submissionResult) model.CaseResult {
	out := model.CaseResult{
		Stdin:          unit.Stdin,
		ExpectedOutput: unit.ExpectedOutput,
		Stdout:         decode(r.Stdout),
		TimeMs:         parseSeconds(r.Time),
	}
	if r.Memory != nil {
		out.MemoryKb = *r.Memory
	}
	stderr := decode(r.Stderr)
	message := decode(r.Message)

	id := r.Status.ID
	switch {
	case id == statusAccepted || id == statusWrongAnswer:
		if harness.OutputsMatch(unit.ExpectedOutput, out.Stdout) {
			out.Status = model.Accepted
		} else {
			out.Status = model.WrongAnswer
		}
	case id == statusTimeLimit:
		out.Status = model.TimeLimitExceeded
	case id == statusCompileError:
		out.Status = model.CompileError
		out.Message = firstNonEmpty(decode(r.CompileOutput), message, r.Status.Description)
	case id >= statusRuntimeFirst && id <= statusRuntimeLast:
		out.Status = model.RuntimeError
		if outOfMemory(unit, out.MemoryKb, stderr) {
			out.Status = model.MemoryLimitExceeded
		}
		out.Message = firstNonEmpty(stderr, message, r.Status.Description)
	default:
		// 13 internal error, 14 exec format error and any id this client does not know.
		out.Status = model.InternalError
		out.Message = firstNonEmpty(message, r.Status.Description, "judge internal error")
	}
	return out
}

func outOfMemory(unit model.ExecutionUnit, usedKb int64, stderr string) bool {
	if unit.MemoryLimitKb > 0 && usedKb >= unit.MemoryLimitKb {
		return true
	}
	for _, marker := range outOfMemoryMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// parseSeconds converts Judge0's "0.123" seconds string to milliseconds.
func parseSeconds(s *string) int64 {
	if s == nil || *s == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(*s, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return int64(math.Round(secs * 1000))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
