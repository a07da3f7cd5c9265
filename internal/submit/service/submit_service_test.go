package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/db"
	"interviewoj/internal/common/mq"
	"interviewoj/internal/judge/model"
	"interviewoj/internal/submit/repository"
	appErr "interviewoj/pkg/errors"
	pkgrepo "interviewoj/pkg/repository"
)

type fakeProblemStore struct {
	problem *model.Problem
	err     error
}

func (f *fakeProblemStore) GetProblem(_ context.Context, problemID int64) (*model.Problem, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.problem == nil || f.problem.ID != problemID {
		return nil, appErr.New(appErr.ProblemNotFound)
	}
	return f.problem, nil
}

type fakeJudge struct {
	mu     sync.Mutex
	calls  int
	result model.Submission
	err    error
	modes  []model.Mode
}

func (f *fakeJudge) Run(_ context.Context, problem *model.Problem, code string, lang model.Language, mode model.Mode) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.modes = append(f.modes, mode)
	if f.err != nil {
		return nil, f.err
	}
	sub := f.result
	sub.ProblemID = problem.ID
	sub.Code = code
	sub.Language = lang
	sub.Mode = mode
	if mode == model.ModeSubmit {
		sub.CaseResults = nil
	}
	return &sub, nil
}

type fakeRecorder struct {
	mu         sync.Mutex
	created    []*model.Submission
	byID       map[string]*model.Submission
	createErr  error
	percentile float64
	solved     []int64
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{byID: make(map[string]*model.Submission)}
}

func (f *fakeRecorder) Create(_ context.Context, _ db.Transaction, sub *model.Submission) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	if sub.ID == "" {
		sub.ID = "sub-" + string(rune('a'+len(f.created)))
	}
	sub.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.created = append(f.created, sub)
	f.byID[sub.ID] = sub
	return sub.ID, nil
}

func (f *fakeRecorder) GetByID(_ context.Context, _ db.Transaction, id string) (*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	return sub, nil
}

func (f *fakeRecorder) ListForUser(_ context.Context, userID string, problemID int64, opts pkgrepo.ListOptions) ([]*model.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Submission
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].UserID == userID && f.created[i].ProblemID == problemID {
			out = append(out, f.created[i])
		}
	}
	if opts.Offset >= len(out) {
		return []*model.Submission{}, nil
	}
	out = out[opts.Offset:]
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeRecorder) RuntimePercentile(context.Context, int64, model.Language, int64) (float64, error) {
	return f.percentile, nil
}

func (f *fakeRecorder) SolvedProblemIDs(context.Context, string) ([]int64, error) {
	return f.solved, nil
}

type fakeProducer struct {
	mu       sync.Mutex
	messages map[string][]*mq.Message
	err      error
}

func (f *fakeProducer) Publish(_ context.Context, topic string, msg *mq.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.messages == nil {
		f.messages = make(map[string][]*mq.Message)
	}
	f.messages[topic] = append(f.messages[topic], msg)
	return nil
}

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	return c
}

var testProblem = &model.Problem{ID: 7, TimeLimitMs: 1000, MemoryLimitKb: 1024}

func acceptedResult() model.Submission {
	return model.Submission{
		Status:      model.Accepted,
		PassedCount: 3,
		TotalCount:  3,
		RuntimeMs:   12,
		MemoryKb:    2048,
		CaseResults: []model.CaseResult{
			{Stdin: "1", ExpectedOutput: "1", Stdout: "1", Status: model.Accepted},
			{Stdin: "2", ExpectedOutput: "2", Stdout: "2", Status: model.Accepted},
			{Stdin: "3", ExpectedOutput: "3", Stdout: "3", Status: model.Accepted},
		},
	}
}

type harnessDeps struct {
	judge    *fakeJudge
	recorder *fakeRecorder
	producer *fakeProducer
}

func newTestService(t *testing.T, mutate func(*Config, *harnessDeps)) (*SubmitService, *harnessDeps) {
	t.Helper()
	deps := &harnessDeps{
		judge:    &fakeJudge{result: acceptedResult()},
		recorder: newFakeRecorder(),
		producer: &fakeProducer{},
	}
	cfg := Config{
		Problems:       &fakeProblemStore{problem: testProblem},
		Judge:          deps.judge,
		SubmissionRepo: deps.recorder,
		Events:         deps.producer,
		ComputeBeats:   true,
	}
	if mutate != nil {
		mutate(&cfg, deps)
	}
	svc, err := NewSubmitService(cfg)
	if err != nil {
		t.Fatalf("NewSubmitService: %v", err)
	}
	return svc, deps
}

func input() SubmitInput {
	return SubmitInput{UserID: "u-1", ProblemID: 7, Language: "C++", Code: "int main(){}"}
}

func TestRunReturnsVisibleCasesAndRecords(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t, func(_ *Config, d *harnessDeps) {
		d.judge.result.Status = model.WrongAnswer
		d.judge.result.PassedCount = 2
		d.judge.result.CaseResults[1].Status = model.WrongAnswer
		d.judge.result.CaseResults[1].Stdout = "5"
	})

	res, err := svc.Run(context.Background(), input())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success || res.Status != "Wrong Answer" || !res.UserFault {
		t.Fatalf("unexpected run result: %+v", res)
	}
	if len(res.TestCases) != 3 || res.TestCases[1].Passed || !res.TestCases[0].Passed {
		t.Fatalf("unexpected cases: %+v", res.TestCases)
	}
	if len(deps.recorder.created) != 1 || deps.recorder.created[0].Mode != model.ModeRun {
		t.Fatalf("run should be recorded")
	}
	if deps.recorder.created[0].UserID != "u-1" || deps.recorder.created[0].Language != model.LanguageCPP {
		t.Fatalf("unexpected record: %+v", deps.recorder.created[0])
	}
	if len(deps.producer.messages) != 0 {
		t.Fatalf("runs must not publish judged events")
	}
}

func TestRunSurvivesRecorderFailure(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, func(_ *Config, d *harnessDeps) {
		d.recorder.createErr = errors.New("db down")
	})
	res, err := svc.Run(context.Background(), input())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SubmissionID != "" {
		t.Fatalf("unrecorded run has no id, got %q", res.SubmissionID)
	}
}

func TestSubmitAcceptedPublishesAndComputesBeats(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t, func(_ *Config, d *harnessDeps) {
		d.recorder.percentile = 87.5
	})

	res, err := svc.Submit(context.Background(), input())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Accepted || res.PassedCount != 3 || res.TotalCount != 3 || res.SubmissionID == "" {
		t.Fatalf("unexpected submit result: %+v", res)
	}
	if res.Beats == nil || *res.Beats != 87.5 {
		t.Fatalf("expected beats 87.5, got %v", res.Beats)
	}

	msgs := deps.producer.messages[DefaultJudgedTopic]
	if len(msgs) != 1 {
		t.Fatalf("expected one judged event, got %d", len(msgs))
	}
	var event SubmissionJudgedEvent
	if err := json.Unmarshal(msgs[0].Body, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.SubmissionID != res.SubmissionID || event.Status != model.Accepted || event.UserID != "u-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if msgs[0].Key != "u-1" {
		t.Fatalf("events must be keyed by user, got %q", msgs[0].Key)
	}
}

func TestSubmitRejectedHasNoBeats(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, func(_ *Config, d *harnessDeps) {
		d.judge.result.Status = model.CompileError
		d.judge.result.PassedCount = 0
		d.judge.result.ErrorMessage = "error: expected ';'"
	})
	res, err := svc.Submit(context.Background(), input())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Accepted || res.Beats != nil || res.ErrorMessage == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSubmitFailsWhenRecorderFails(t *testing.T) {
	t.Parallel()
	svc, deps := newTestService(t, func(_ *Config, d *harnessDeps) {
		d.recorder.createErr = errors.New("db down")
	})
	_, err := svc.Submit(context.Background(), input())
	if !appErr.Is(err, appErr.SubmissionCreateFailed) {
		t.Fatalf("expected SubmissionCreateFailed, got %v", err)
	}
	if len(deps.producer.messages) != 0 {
		t.Fatalf("unrecorded submissions must not publish events")
	}
}

func TestSubmitIgnoresPublishFailure(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, func(_ *Config, d *harnessDeps) {
		d.producer.err = errors.New("broker down")
	})
	if _, err := svc.Submit(context.Background(), input()); err != nil {
		t.Fatalf("publish failure must not fail the submit: %v", err)
	}
}

func TestValidationHappensBeforeJudging(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*SubmitInput)
		want   appErr.ErrorCode
	}{
		{name: "no user", mutate: func(in *SubmitInput) { in.UserID = "" }, want: appErr.Unauthorized},
		{name: "bad problem", mutate: func(in *SubmitInput) { in.ProblemID = 0 }, want: appErr.ValidationFailed},
		{name: "empty code", mutate: func(in *SubmitInput) { in.Code = "" }, want: appErr.ValidationFailed},
		{name: "no language", mutate: func(in *SubmitInput) { in.Language = "" }, want: appErr.ValidationFailed},
		{name: "unknown language", mutate: func(in *SubmitInput) { in.Language = "brainfuck" }, want: appErr.LanguageNotSupported},
		{name: "missing problem", mutate: func(in *SubmitInput) { in.ProblemID = 8 }, want: appErr.ProblemNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, deps := newTestService(t, nil)
			in := input()
			tt.mutate(&in)
			_, err := svc.Submit(context.Background(), in)
			if got := appErr.GetCode(err); got != tt.want {
				t.Fatalf("expected %v, got %v (%v)", tt.want, got, err)
			}
			if deps.judge.calls != 0 {
				t.Fatalf("judge must not be called")
			}
		})
	}
}

func TestProblemStoreOutageIsServiceUnavailable(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, func(cfg *Config, _ *harnessDeps) {
		cfg.Problems = &fakeProblemStore{err: errors.New("connection refused")}
	})
	_, err := svc.Run(context.Background(), input())
	if !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestRateLimitPerMode(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, func(cfg *Config, _ *harnessDeps) {
		cfg.Cache = newTestCache(t)
		cfg.RateLimit = RateLimitConfig{RunMax: 2, SubmitMax: 1, Window: time.Minute}
	})
	ctx := context.Background()

	if _, err := svc.Submit(ctx, input()); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(ctx, input()); !appErr.Is(err, appErr.SubmitTooFrequently) {
		t.Fatalf("expected SubmitTooFrequently, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Run(ctx, input()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if _, err := svc.Run(ctx, input()); !appErr.Is(err, appErr.SubmitTooFrequently) {
		t.Fatalf("expected run limit, got %v", err)
	}
	other := input()
	other.UserID = "u-2"
	if _, err := svc.Run(ctx, other); err != nil {
		t.Fatalf("limits are per user: %v", err)
	}
}

func TestHistoryAndOwnership(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Submit(ctx, input()); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	items, hasMore, err := svc.History(ctx, "u-1", 7, 1, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(items) != 2 || !hasMore || items[0].ID != "sub-c" {
		t.Fatalf("unexpected first page: %d items, hasMore=%v", len(items), hasMore)
	}
	items, hasMore, err = svc.History(ctx, "u-1", 7, 2, 2)
	if err != nil || len(items) != 1 || hasMore {
		t.Fatalf("unexpected second page: %d items, hasMore=%v, err=%v", len(items), hasMore, err)
	}

	sub, err := svc.GetSubmission(ctx, "u-1", "sub-a")
	if err != nil || sub.ID != "sub-a" {
		t.Fatalf("GetSubmission: %v", err)
	}
	if _, err := svc.GetSubmission(ctx, "u-2", "sub-a"); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("foreign submission must look missing, got %v", err)
	}
	if _, err := svc.GetSubmission(ctx, "u-1", "nope"); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
}

func TestSolvedWithoutBrokerUsesTracker(t *testing.T) {
	t.Parallel()
	redisCache := newTestCache(t)
	svc, deps := newTestService(t, func(cfg *Config, d *harnessDeps) {
		cfg.Events = nil
		cfg.Tracker = NewSolvedTracker(redisCache, d.recorder)
	})
	ctx := context.Background()
	if _, err := svc.Submit(ctx, input()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ids, err := svc.SolvedProblems(ctx, "u-1")
	if err != nil {
		t.Fatalf("SolvedProblems: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("unexpected solved ids %v", ids)
	}
	if deps.judge.modes[0] != model.ModeSubmit {
		t.Fatalf("unexpected mode %v", deps.judge.modes[0])
	}
}
