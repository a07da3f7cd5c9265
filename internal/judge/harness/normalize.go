package harness

import "strings"

// Normalize canonicalizes program output for comparison: CRLF becomes LF,
// trailing whitespace is stripped from every line and trailing blank lines
// are dropped. Expected and actual output must both pass through it.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\f\v")
	}
	end := len(lines)
	for end > 0 && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[:end], "\n")
}

// OutputsMatch compares two outputs after normalization.
func OutputsMatch(expected, actual string) bool {
	return Normalize(expected) == Normalize(actual)
}
