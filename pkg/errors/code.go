package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 12000-12999: Problem store errors
// 13000-13999: Submission & Judge errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError ErrorCode = 10100

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300

	// ========== Problem Store Errors (12000-12999) ==========

	ProblemNotFound ErrorCode = 12000
	TestCaseInvalid ErrorCode = 12102
	CasePackCorrupt ErrorCode = 12103

	// ========== Submission & Judge Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	CodeTooLarge           ErrorCode = 13002
	LanguageNotSupported   ErrorCode = 13003
	SubmitTooFrequently    ErrorCode = 13004

	// Judge (13100-13199)
	JudgeQueueFull   ErrorCode = 13100
	JudgeSystemError ErrorCode = 13101
)

var errorMessages = map[ErrorCode]string{
	Success:                "Success",
	InternalServerError:    "Internal server error",
	InvalidParams:          "Invalid parameters",
	NotFound:               "Resource not found",
	Unauthorized:           "Unauthorized",
	TooManyRequests:        "Too many requests",
	ServiceUnavailable:     "Service unavailable",
	Timeout:                "Request timeout",
	DatabaseError:          "Database error",
	CacheError:             "Cache error",
	ValidationFailed:       "Validation failed",
	ProblemNotFound:        "Problem not found",
	TestCaseInvalid:        "Problem test cases are invalid",
	CasePackCorrupt:        "Hidden test case pack is corrupt",
	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to record submission",
	CodeTooLarge:           "Source code is too large",
	LanguageNotSupported:   "Programming language not supported",
	SubmitTooFrequently:    "Submitting too frequently, please slow down",
	JudgeQueueFull:         "Judge is busy, please retry shortly",
	JudgeSystemError:       "Judging service error",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus maps the error code to an HTTP status code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized:
		return 401
	case c == NotFound, c == ProblemNotFound, c == SubmissionNotFound:
		return 404
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == ServiceUnavailable, c == JudgeQueueFull:
		return 503
	case c == Timeout:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == CodeTooLarge, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}
