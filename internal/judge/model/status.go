package model

import "fmt"

// StatusKind is the classified outcome of one test case or a whole submission.
// The set is closed; switches over it are expected to be exhaustive.
type StatusKind uint8

const (
	Accepted StatusKind = iota
	WrongAnswer
	RuntimeError
	TimeLimitExceeded
	MemoryLimitExceeded
	CompileError
	InternalError
)

var statusNames = [...]string{
	Accepted:            "Accepted",
	WrongAnswer:         "Wrong Answer",
	RuntimeError:        "Runtime Error",
	TimeLimitExceeded:   "Time Limit Exceeded",
	MemoryLimitExceeded: "Memory Limit Exceeded",
	CompileError:        "Compilation Error",
	InternalError:       "Internal Error",
}

func (s StatusKind) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("StatusKind(%d)", uint8(s))
}

// Valid reports whether s is one of the declared kinds.
func (s StatusKind) Valid() bool {
	return int(s) < len(statusNames)
}

// IsUserFault is true for outcomes caused by the submitted code rather than the judge.
func (s StatusKind) IsUserFault() bool {
	switch s {
	case WrongAnswer, RuntimeError, TimeLimitExceeded, MemoryLimitExceeded, CompileError:
		return true
	case Accepted, InternalError:
		return false
	}
	return false
}

func (s StatusKind) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status kind %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *StatusKind) UnmarshalText(text []byte) error {
	kind, err := ParseStatusKind(string(text))
	if err != nil {
		return err
	}
	*s = kind
	return nil
}

// ParseStatusKind maps the display name back to a StatusKind.
func ParseStatusKind(name string) (StatusKind, error) {
	for i, n := range statusNames {
		if n == name {
			return StatusKind(i), nil
		}
	}
	return InternalError, fmt.Errorf("unknown status %q", name)
}
