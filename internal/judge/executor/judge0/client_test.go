package judge0

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"interviewoj/internal/judge/executor"
	"interviewoj/internal/judge/model"
)

type fakeJudge struct {
	mu         sync.Mutex
	submitted  []submissionRequest
	results    map[string]map[string]interface{}
	deleted    []string
	authTokens []string
	submitFail int
	pollStatus int
	rejectIdx  map[int]bool
	respond    func(stdin string) map[string]interface{}
}

func newFakeJudge(respond func(stdin string) map[string]interface{}) *fakeJudge {
	return &fakeJudge{results: map[string]map[string]interface{}{}, respond: respond, rejectIdx: map[int]bool{}}
}

func (f *fakeJudge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authTokens = append(f.authTokens, r.Header.Get("X-Auth-Token"))

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/submissions/batch":
		if f.submitFail > 0 {
			f.submitFail--
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		items := make([]map[string]interface{}, len(req.Submissions))
		for i, s := range req.Submissions {
			if f.rejectIdx[len(f.submitted)] {
				items[i] = map[string]interface{}{"language_id": []string{"is not valid"}}
				f.submitted = append(f.submitted, s)
				continue
			}
			token := fmt.Sprintf("tok-%d", len(f.submitted))
			f.submitted = append(f.submitted, s)
			stdin, _ := base64.StdEncoding.DecodeString(s.Stdin)
			res := f.respond(string(stdin))
			res["token"] = token
			f.results[token] = res
			items[i] = map[string]interface{}{"token": token}
		}
		_ = json.NewEncoder(w).Encode(items)
	case r.Method == http.MethodGet && r.URL.Path == "/submissions/batch":
		if f.pollStatus != 0 {
			http.Error(w, "poll failure", f.pollStatus)
			return
		}
		var out []map[string]interface{}
		for _, token := range strings.Split(r.URL.Query().Get("tokens"), ",") {
			out = append(out, f.results[token])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"submissions": out})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/submissions/"):
		f.deleted = append(f.deleted, strings.TrimPrefix(r.URL.Path, "/submissions/"))
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func result(statusID int, stdout string) map[string]interface{} {
	return map[string]interface{}{
		"status": map[string]interface{}{"id": statusID, "description": "x"},
		"stdout": b64(stdout),
		"time":   "0.012",
		"memory": 2048,
	}
}

func newTestClient(t *testing.T, url string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:       url,
		AuthToken:     "secret",
		PollInitial:   time.Millisecond,
		PollMax:       5 * time.Millisecond,
		MaxRetries:    2,
		JudgeOverhead: time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func unit(stdin, expected string) model.ExecutionUnit {
	return model.ExecutionUnit{
		SourceCode:     "int main(){}",
		Stdin:          stdin,
		ExpectedOutput: expected,
		LanguageID:     54,
		TimeLimitMs:    1000,
		MemoryLimitKb:  262144,
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
	if _, err := New(Config{BaseURL: "not a url"}); err == nil {
		t.Fatalf("expected error for invalid base url")
	}
}

func TestExecuteClassifiesInOrder(t *testing.T) {
	t.Parallel()
	fake := newFakeJudge(func(stdin string) map[string]interface{} {
		switch stdin {
		case "1 2":
			return result(statusAccepted, "3\r\n\n")
		case "2 2":
			return result(statusAccepted, "5\n")
		default:
			r := result(statusCompileError, "")
			r["compile_output"] = b64("main.cpp:1: error")
			return r
		}
	})
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	got := c.Execute(context.Background(), []model.ExecutionUnit{
		unit("1 2", "3"),
		unit("2 2", "4"),
		unit("bad", "x"),
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	want := []model.StatusKind{model.Accepted, model.WrongAnswer, model.CompileError}
	for i, w := range want {
		if got[i].Status != w {
			t.Fatalf("result %d: expected %v, got %v", i, w, got[i].Status)
		}
	}
	if got[0].TimeMs != 12 || got[0].MemoryKb != 2048 {
		t.Fatalf("unexpected metrics: %+v", got[0])
	}
	if got[1].Stdin != "2 2" || got[1].ExpectedOutput != "4" {
		t.Fatalf("unit data not carried through: %+v", got[1])
	}
	if got[2].Message != "main.cpp:1: error" {
		t.Fatalf("unexpected compile message %q", got[2].Message)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.submitted[0].CPUTimeLimit != 1 || fake.submitted[0].MemoryLimit != 262144 {
		t.Fatalf("limits not forwarded: %+v", fake.submitted[0])
	}
	for _, tok := range fake.authTokens {
		if tok != "secret" {
			t.Fatalf("missing auth header, got %q", tok)
		}
	}
}

func TestExecuteSplitsLargeBatches(t *testing.T) {
	t.Parallel()
	fake := newFakeJudge(func(stdin string) map[string]interface{} {
		return result(statusAccepted, stdin)
	})
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.MaxBatchSize = 2 })

	units := make([]model.ExecutionUnit, 5)
	for i := range units {
		units[i] = unit(fmt.Sprint(i), fmt.Sprint(i))
	}
	got := c.Execute(context.Background(), units)
	for i, r := range got {
		if r.Status != model.Accepted || r.Stdout != fmt.Sprint(i) {
			t.Fatalf("result %d out of order: %+v", i, r)
		}
	}
}

func TestExecuteUnreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := newTestClient(t, url, nil)

	got := c.Execute(context.Background(), []model.ExecutionUnit{unit("1", "1"), unit("2", "2")})
	for i, r := range got {
		if r.Status != model.InternalError || r.Message != executor.ReasonUnreachable {
			t.Fatalf("result %d: expected unreachable internal error, got %+v", i, r)
		}
	}
}

func TestExecuteRetriesSubmitOn5xx(t *testing.T) {
	t.Parallel()
	fake := newFakeJudge(func(stdin string) map[string]interface{} {
		return result(statusAccepted, "ok")
	})
	fake.submitFail = 2
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	got := c.Execute(context.Background(), []model.ExecutionUnit{unit("", "ok")})
	if got[0].Status != model.Accepted {
		t.Fatalf("expected accepted after retries, got %+v", got[0])
	}
}

func TestExecuteRejectedItem(t *testing.T) {
	t.Parallel()
	fake := newFakeJudge(func(stdin string) map[string]interface{} {
		return result(statusAccepted, "ok")
	})
	fake.rejectIdx[1] = true
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	got := c.Execute(context.Background(), []model.ExecutionUnit{unit("", "ok"), unit("", "ok")})
	if got[0].Status != model.Accepted {
		t.Fatalf("expected first unit accepted, got %+v", got[0])
	}
	if got[1].Status != model.InternalError || !strings.HasPrefix(got[1].Message, executor.ReasonRejected) {
		t.Fatalf("expected rejected internal error, got %+v", got[1])
	}
}

func TestExecuteDeadlineCancelsToken(t *testing.T) {
	t.Parallel()
	fake := newFakeJudge(func(stdin string) map[string]interface{} {
		return map[string]interface{}{"status": map[string]interface{}{"id": statusProcessing}}
	})
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.JudgeOverhead = 30 * time.Millisecond })

	u := unit("", "")
	u.TimeLimitMs = 10
	got := c.Execute(context.Background(), []model.ExecutionUnit{u})
	if got[0].Status != model.InternalError || got[0].Message != executor.ReasonDeadline {
		t.Fatalf("expected deadline internal error, got %+v", got[0])
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.deleted) != 1 || fake.deleted[0] != "tok-0" {
		t.Fatalf("expected token to be cancelled, got %v", fake.deleted)
	}
}

func TestExecuteContextCancelled(t *testing.T) {
	t.Parallel()
	fake := newFakeJudge(func(stdin string) map[string]interface{} {
		return map[string]interface{}{"status": map[string]interface{}{"id": statusInQueue}}
	})
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	got := c.Execute(ctx, []model.ExecutionUnit{unit("", "")})
	if got[0].Status != model.InternalError || got[0].Message != executor.ReasonCancelled {
		t.Fatalf("expected cancelled internal error, got %+v", got[0])
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.deleted) != 1 {
		t.Fatalf("expected cancel DELETE despite cancelled context, got %v", fake.deleted)
	}
}

func TestExecutePollFailuresGiveUp(t *testing.T) {
	t.Parallel()
	fake := newFakeJudge(func(stdin string) map[string]interface{} {
		return result(statusAccepted, "ok")
	})
	fake.pollStatus = http.StatusBadGateway
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	got := c.Execute(context.Background(), []model.ExecutionUnit{unit("", "ok")})
	if got[0].Status != model.InternalError || got[0].Message != executor.ReasonUnreachable {
		t.Fatalf("expected unreachable internal error, got %+v", got[0])
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	str := func(s string) *string { return &s }
	mem := func(v int64) *int64 { return &v }
	u := unit("", "1")
	u.MemoryLimitKb = 1000

	tests := []struct {
		name    string
		res     submissionResult
		want    model.StatusKind
		message string
	}{
		{
			name: "time limit",
			res:  submissionResult{Status: &submissionStatus{ID: statusTimeLimit}},
			want: model.TimeLimitExceeded,
		},
		{
			name:    "runtime error keeps stderr",
			res:     submissionResult{Status: &submissionStatus{ID: 11}, Stderr: str(b64("panic"))},
			want:    model.RuntimeError,
			message: "panic",
		},
		{
			name: "runtime error over memory limit",
			res:  submissionResult{Status: &submissionStatus{ID: 7}, Memory: mem(1000)},
			want: model.MemoryLimitExceeded,
		},
		{
			name: "out of memory marker",
			res: submissionResult{
				Status: &submissionStatus{ID: 12},
				Stderr: str(b64("terminate called after throwing an instance of 'std::bad_alloc'")),
			},
			want: model.MemoryLimitExceeded,
		},
		{
			name:    "sandbox internal error",
			res:     submissionResult{Status: &submissionStatus{ID: statusInternalError, Description: "Internal Error"}},
			want:    model.InternalError,
			message: "Internal Error",
		},
		{
			name: "unknown status",
			res:  submissionResult{Status: &submissionStatus{ID: 42}},
			want: model.InternalError,
		},
		{
			name: "judge wrong answer with matching output",
			res:  submissionResult{Status: &submissionStatus{ID: statusWrongAnswer}, Stdout: str(b64("1  \n"))},
			want: model.Accepted,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify(u, &tt.res)
			if got.Status != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got.Status)
			}
			if tt.message != "" && got.Message != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, got.Message)
			}
		})
	}
}

func TestParseSeconds(t *testing.T) {
	t.Parallel()
	str := func(s string) *string { return &s }
	cases := map[string]int64{"0.001": 1, "1.5": 1500, "": 0, "junk": 0}
	for in, want := range cases {
		if got := parseSeconds(str(in)); got != want {
			t.Fatalf("parseSeconds(%q) = %d, want %d", in, got, want)
		}
	}
	if parseSeconds(nil) != 0 {
		t.Fatalf("nil time should be 0")
	}
}

func TestDecodeWrappedBase64(t *testing.T) {
	t.Parallel()
	wrapped := "aGVsbG8g\nd29ybGQ=\n"
	if got := decode(&wrapped); got != "hello world" {
		t.Fatalf("unexpected decode %q", got)
	}
}
