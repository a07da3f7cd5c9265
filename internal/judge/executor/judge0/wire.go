package judge0

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const resultFields = "token,stdout,stderr,compile_output,message,status,time,memory"

type submissionRequest struct {
	SourceCode    string  `json:"source_code"`
	LanguageID    int     `json:"language_id"`
	Stdin         string  `json:"stdin,omitempty"`
	CPUTimeLimit  float64 `json:"cpu_time_limit,omitempty"`
	WallTimeLimit float64 `json:"wall_time_limit,omitempty"`
	MemoryLimit   int64   `json:"memory_limit,omitempty"`
}

type batchRequest struct {
	Submissions []submissionRequest `json:"submissions"`
}

// batchItem is either {"token": ...} or a map of field validation errors.
type batchItem struct {
	Token  string
	Reject string
}

func (b *batchItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if tok, ok := raw["token"]; ok {
		return json.Unmarshal(tok, &b.Token)
	}
	parts := make([]string, 0, len(raw))
	for field, msg := range raw {
		parts = append(parts, field+": "+strings.Trim(string(msg), `[]"`))
	}
	b.Reject = strings.Join(parts, "; ")
	return nil
}

type submissionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type submissionResult struct {
	Token         string            `json:"token"`
	Stdout        *string           `json:"stdout"`
	Stderr        *string           `json:"stderr"`
	CompileOutput *string           `json:"compile_output"`
	Message       *string           `json:"message"`
	Status        *submissionStatus `json:"status"`
	Time          *string           `json:"time"`
	Memory        *int64            `json:"memory"`
}

type batchResult struct {
	Submissions []*submissionResult `json:"submissions"`
}

// httpError carries the status of a non-2xx reply so callers can decide on retries.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("judge0 returned HTTP %d: %s", e.StatusCode, e.Body)
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	var he *httpError
	if errors.As(err, &he) {
		return he.StatusCode >= 500 || he.StatusCode == http.StatusTooManyRequests
	}
	// Transport failures and malformed bodies.
	return true
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("X-Auth-Token", c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call judge0: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode judge0 response: %w", err)
	}
	return nil
}

func encode(s string) string {
	if s == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// decode tolerates the line-wrapped base64 Judge0 emits.
func decode(s *string) string {
	if s == nil || *s == "" {
		return ""
	}
	out, err := base64.StdEncoding.DecodeString(*s)
	if err != nil {
		return *s
	}
	return string(out)
}
