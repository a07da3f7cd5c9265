// Package service orchestrates one submission through the harness, the
// sandbox executor and the verdict aggregator.
package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"interviewoj/internal/judge/executor"
	"interviewoj/internal/judge/harness"
	"interviewoj/internal/judge/model"
	"interviewoj/internal/judge/verdict"
	appErr "interviewoj/pkg/errors"
	"interviewoj/pkg/utils/logger"
)

// InfraFailureMessage is shown whenever the judge, not the user's code, failed.
const InfraFailureMessage = "judging service unavailable, please retry; this is not a problem with your code"

const (
	defaultWorkerPoolSize       = 4
	defaultBatchSize            = 10
	defaultMaxConcurrent        = 16
	defaultAcquireTimeout       = 2 * time.Second
	defaultOrchestrationTimeout = 60 * time.Second
	defaultMaxCodeBytes         = 64 * 1024
	maxErrorMessageBytes        = 8 * 1024
)

// Config holds service dependencies and settings.
type Config struct {
	Executor executor.Executor
	Builder  *harness.Builder

	// WorkerPoolSize bounds in-flight sandbox batches per submission.
	WorkerPoolSize int
	BatchSize      int
	// MaxConcurrentSubmissions bounds orchestrations across the process.
	MaxConcurrentSubmissions int
	AcquireTimeout           time.Duration
	OrchestrationTimeout     time.Duration
	MaxCodeBytes             int
	// CompileShortCircuit runs the first case alone and skips the rest on a compile error.
	CompileShortCircuit bool
}

// JudgeService turns source code into a judged, unpersisted submission.
type JudgeService struct {
	executor             executor.Executor
	builder              *harness.Builder
	workerPoolSize       int
	batchSize            int
	acquireTimeout       time.Duration
	orchestrationTimeout time.Duration
	maxCodeBytes         int
	compileShortCircuit  bool
	sem                  chan struct{}
}

// NewJudgeService creates a judge service.
func NewJudgeService(cfg Config) (*JudgeService, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("harness builder is required")
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxConcurrentSubmissions <= 0 {
		cfg.MaxConcurrentSubmissions = defaultMaxConcurrent
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.OrchestrationTimeout <= 0 {
		cfg.OrchestrationTimeout = defaultOrchestrationTimeout
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	return &JudgeService{
		executor:             cfg.Executor,
		builder:              cfg.Builder,
		workerPoolSize:       cfg.WorkerPoolSize,
		batchSize:            cfg.BatchSize,
		acquireTimeout:       cfg.AcquireTimeout,
		orchestrationTimeout: cfg.OrchestrationTimeout,
		maxCodeBytes:         cfg.MaxCodeBytes,
		compileShortCircuit:  cfg.CompileShortCircuit,
		sem:                  make(chan struct{}, cfg.MaxConcurrentSubmissions),
	}, nil
}

// Languages lists what Run accepts.
func (s *JudgeService) Languages() []model.Language {
	return s.builder.Languages()
}

// Run judges code against problem. Run mode uses the visible cases and keeps
// per-case detail; Submit mode adds the hidden cases and drops it. The
// returned submission has no ID, user or timestamp yet.
func (s *JudgeService) Run(ctx context.Context, problem *model.Problem, code string, lang model.Language, mode model.Mode) (*model.Submission, error) {
	if err := s.validate(problem, code, mode); err != nil {
		return nil, err
	}
	languageID, err := s.builder.SandboxID(lang)
	if err != nil {
		return nil, err
	}
	source, err := s.builder.Build(lang, problem.DriverTemplates[lang], code, problem.Signature)
	if err != nil {
		return nil, err
	}
	units := buildUnits(problem, source, languageID, mode)

	if err := s.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseSlot()

	runCtx, cancel := context.WithTimeout(ctx, s.orchestrationTimeout)
	defer cancel()

	start := time.Now()
	results := s.execute(runCtx, units)
	v := verdict.Reduce(results)

	sub := &model.Submission{
		ProblemID:    problem.ID,
		Language:     lang,
		Code:         code,
		Mode:         mode,
		Status:       v.Status,
		PassedCount:  v.PassedCount,
		TotalCount:   v.TotalCount,
		RuntimeMs:    v.RuntimeMs,
		MemoryKb:     v.MemoryKb,
		ErrorMessage: errorMessage(results, v, len(problem.VisibleTestCases)),
	}
	if mode == model.ModeRun {
		sub.CaseResults = results
	}

	logger.Info(ctx, "submission judged",
		zap.Int64("problem_id", problem.ID),
		zap.String("language", string(lang)),
		zap.String("mode", string(mode)),
		zap.String("status", v.Status.String()),
		zap.Int("passed", v.PassedCount),
		zap.Int("total", v.TotalCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sub, nil
}

func (s *JudgeService) validate(problem *model.Problem, code string, mode model.Mode) error {
	if problem == nil {
		return appErr.ValidationError("problem", "required")
	}
	if err := problem.Validate(); err != nil {
		return appErr.Wrap(err, appErr.ValidationFailed)
	}
	if len(code) == 0 {
		return appErr.ValidationError("code", "required")
	}
	if len(code) > s.maxCodeBytes {
		return appErr.Newf(appErr.CodeTooLarge, "code exceeds %d bytes", s.maxCodeBytes)
	}
	if !mode.Valid() {
		return appErr.ValidationError("mode", "must be run or submit")
	}
	return nil
}

func buildUnits(problem *model.Problem, source string, languageID int, mode model.Mode) []model.ExecutionUnit {
	cases := problem.VisibleTestCases
	if mode == model.ModeSubmit {
		cases = make([]model.TestCase, 0, len(problem.VisibleTestCases)+len(problem.HiddenTestCases))
		cases = append(cases, problem.VisibleTestCases...)
		cases = append(cases, problem.HiddenTestCases...)
	}
	units := make([]model.ExecutionUnit, len(cases))
	for i, tc := range cases {
		units[i] = model.ExecutionUnit{
			SourceCode:     source,
			Stdin:          tc.Input,
			ExpectedOutput: tc.Output,
			LanguageID:     languageID,
			TimeLimitMs:    problem.TimeLimitMs,
			MemoryLimitKb:  problem.MemoryLimitKb,
		}
	}
	return units
}

// execute fills one result slot per unit, in unit order.
func (s *JudgeService) execute(ctx context.Context, units []model.ExecutionUnit) []model.CaseResult {
	results := make([]model.CaseResult, len(units))
	filled := make([]bool, len(units))

	rest := 0
	if s.compileShortCircuit && len(units) > 1 {
		first := s.executor.Execute(ctx, units[:1])
		if len(first) == 1 {
			results[0], filled[0] = first[0], true
			rest = 1
			if first[0].Status == model.CompileError {
				for i := 1; i < len(units); i++ {
					results[i] = model.CaseResult{
						Stdin:          units[i].Stdin,
						ExpectedOutput: units[i].ExpectedOutput,
						Status:         model.CompileError,
						Message:        first[0].Message,
					}
					filled[i] = true
				}
				return results
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerPoolSize)
	for start := rest; start < len(units); start += s.batchSize {
		start := start
		end := start + s.batchSize
		if end > len(units) {
			end = len(units)
		}
		g.Go(func() error {
			out := s.executor.Execute(gctx, units[start:end])
			for i := 0; i < len(out) && start+i < end; i++ {
				results[start+i] = out[i]
				filled[start+i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	reason := executor.ReasonBadResponse
	if ctx.Err() != nil {
		reason = executor.ReasonDeadline
	}
	for i := range results {
		if !filled[i] {
			results[i] = executor.InternalResult(units[i], reason)
		}
	}
	return results
}

// errorMessage picks the diagnostic shown to the user. Results at index
// visible and beyond are hidden cases: only compiler output, which is the
// same for every case, may be echoed from them.
func errorMessage(results []model.CaseResult, v model.Verdict, visible int) string {
	if v.Status == model.InternalError {
		return InfraFailureMessage
	}
	idx := verdict.Deciding(results, v)
	if idx < 0 {
		return ""
	}
	if idx >= visible && v.Status != model.CompileError {
		return fmt.Sprintf("%s on hidden test case %d", v.Status, idx-visible+1)
	}
	return truncate(results[idx].Message, maxErrorMessageBytes)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func (s *JudgeService) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.acquireTimeout)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrap(ctx.Err(), appErr.Timeout)
	case <-timer.C:
		return appErr.New(appErr.JudgeQueueFull).WithMessage("too many submissions are being judged")
	}
}

func (s *JudgeService) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}
