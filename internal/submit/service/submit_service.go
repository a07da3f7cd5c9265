package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/mq"
	"interviewoj/internal/judge/harness"
	"interviewoj/internal/judge/model"
	"interviewoj/internal/submit/repository"
	appErr "interviewoj/pkg/errors"
	pkgrepo "interviewoj/pkg/repository"
	"interviewoj/pkg/utils/logger"
)

const (
	rateRunKeyPrefix    = "submit:rate:run:"
	rateSubmitKeyPrefix = "submit:rate:submit:"
	// DefaultJudgedTopic carries one event per recorded submit-mode submission.
	DefaultJudgedTopic = "submission.judged"
)

// ProblemStore loads judgeable problems.
type ProblemStore interface {
	GetProblem(ctx context.Context, problemID int64) (*model.Problem, error)
}

// Judge runs one orchestration and returns an unpersisted submission.
type Judge interface {
	Run(ctx context.Context, problem *model.Problem, code string, lang model.Language, mode model.Mode) (*model.Submission, error)
}

// RateLimitConfig holds throttling configuration.
type RateLimitConfig struct {
	RunMax    int           `yaml:"runMax"`
	SubmitMax int           `yaml:"submitMax"`
	Window    time.Duration `yaml:"window"`
}

// TimeoutConfig holds timeout settings for external calls.
type TimeoutConfig struct {
	DB      time.Duration `yaml:"db"`
	Cache   time.Duration `yaml:"cache"`
	MQ      time.Duration `yaml:"mq"`
	Problem time.Duration `yaml:"problem"`
}

// Config holds submit service dependencies and settings.
type Config struct {
	Problems       ProblemStore
	Judge          Judge
	SubmissionRepo repository.SubmissionRepository
	Cache          cache.Cache
	// Events is optional; without it accepted submissions go straight to Tracker.
	Events  mq.Producer
	Tracker *SolvedTracker

	JudgedTopic string
	// ComputeBeats enables the runtime percentile on accepted submissions.
	ComputeBeats bool
	RateLimit    RateLimitConfig
	Timeouts     TimeoutConfig
}

// SubmitService is the entry point for run and submit requests.
type SubmitService struct {
	problems       ProblemStore
	judge          Judge
	submissionRepo repository.SubmissionRepository
	cache          cache.Cache
	events         mq.Producer
	tracker        *SolvedTracker

	judgedTopic  string
	computeBeats bool
	rateLimit    RateLimitConfig
	timeouts     TimeoutConfig
}

// SubmitInput describes a run or submit request.
type SubmitInput struct {
	UserID    string
	ProblemID int64
	Language  string
	Code      string
}

// NewSubmitService creates a new submit service.
func NewSubmitService(cfg Config) (*SubmitService, error) {
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem store is required")
	}
	if cfg.Judge == nil {
		return nil, fmt.Errorf("judge is required")
	}
	if cfg.SubmissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.JudgedTopic == "" {
		cfg.JudgedTopic = DefaultJudgedTopic
	}
	return &SubmitService{
		problems:       cfg.Problems,
		judge:          cfg.Judge,
		submissionRepo: cfg.SubmissionRepo,
		cache:          cfg.Cache,
		events:         cfg.Events,
		tracker:        cfg.Tracker,
		judgedTopic:    cfg.JudgedTopic,
		computeBeats:   cfg.ComputeBeats,
		rateLimit:      cfg.RateLimit,
		timeouts:       cfg.Timeouts,
	}, nil
}

// Run judges code against the visible cases and returns per-case detail.
func (s *SubmitService) Run(ctx context.Context, input SubmitInput) (*RunResult, error) {
	sub, err := s.judgeAndRecord(ctx, input, model.ModeRun)
	if err != nil {
		return nil, err
	}
	return NewRunResult(sub), nil
}

// Submit judges code against every case and returns counts only.
func (s *SubmitService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	sub, err := s.judgeAndRecord(ctx, input, model.ModeSubmit)
	if err != nil {
		return nil, err
	}
	result := NewSubmitResult(sub)
	if s.computeBeats && sub.Accepted() {
		if beats, ok := s.beats(ctx, sub); ok {
			result.Beats = &beats
		}
	}
	s.publishJudged(ctx, sub)
	return result, nil
}

// History returns one page of the caller's submissions for a problem, most recent first.
func (s *SubmitService) History(ctx context.Context, userID string, problemID int64, page, pageSize int) ([]*model.Submission, bool, error) {
	if userID == "" {
		return nil, false, appErr.UnauthorizedError("user id is required")
	}
	if problemID <= 0 {
		return nil, false, appErr.ValidationError("problem_id", "must be positive")
	}
	var opts pkgrepo.ListOptions
	opts.SetPagination(page, pageSize)

	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	items, err := s.submissionRepo.ListForUser(ctxDB.ctx, userID, problemID, opts)
	if err != nil {
		return nil, false, appErr.Wrapf(err, appErr.DatabaseError, "list submissions failed")
	}
	return items, len(items) == opts.Limit, nil
}

// GetSubmission returns one of the caller's submissions. Other users'
// submissions are reported as missing.
func (s *SubmitService) GetSubmission(ctx context.Context, userID, submissionID string) (*model.Submission, error) {
	if userID == "" {
		return nil, appErr.UnauthorizedError("user id is required")
	}
	if submissionID == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	sub, err := s.submissionRepo.GetByID(ctxDB.ctx, nil, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, appErr.New(appErr.SubmissionNotFound).WithMessage("submission not found")
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}
	if sub.UserID != userID {
		return nil, appErr.New(appErr.SubmissionNotFound).WithMessage("submission not found")
	}
	return sub, nil
}

// SolvedProblems lists problem ids the caller has an accepted submit for.
func (s *SubmitService) SolvedProblems(ctx context.Context, userID string) ([]int64, error) {
	if userID == "" {
		return nil, appErr.UnauthorizedError("user id is required")
	}
	if s.tracker != nil {
		return s.tracker.Solved(ctx, userID)
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	ids, err := s.submissionRepo.SolvedProblemIDs(ctxDB.ctx, userID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list solved problems failed")
	}
	return ids, nil
}

func (s *SubmitService) judgeAndRecord(ctx context.Context, input SubmitInput, mode model.Mode) (*model.Submission, error) {
	lang, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}
	if err := s.checkRateLimit(ctx, input.UserID, mode); err != nil {
		return nil, err
	}

	problem, err := s.loadProblem(ctx, input.ProblemID)
	if err != nil {
		return nil, err
	}
	sub, err := s.judge.Run(ctx, problem, input.Code, lang, mode)
	if err != nil {
		return nil, err
	}
	sub.UserID = input.UserID
	sub.ProblemID = input.ProblemID

	if err := s.createSubmission(ctx, sub); err != nil {
		if mode == model.ModeSubmit {
			return nil, err
		}
		// A run is still useful to the caller without its history row.
		logger.Warn(ctx, "record run failed", zap.Int64("problem_id", input.ProblemID), zap.Error(err))
	}
	return sub, nil
}

func (s *SubmitService) validateInput(input SubmitInput) (model.Language, error) {
	if input.UserID == "" {
		return "", appErr.UnauthorizedError("user id is required")
	}
	if input.ProblemID <= 0 {
		return "", appErr.ValidationError("problem_id", "must be positive")
	}
	if input.Code == "" {
		return "", appErr.ValidationError("code", "required")
	}
	if input.Language == "" {
		return "", appErr.ValidationError("language", "required")
	}
	lang, ok := harness.ParseLanguage(input.Language)
	if !ok {
		return "", appErr.New(appErr.LanguageNotSupported).
			WithMessagef("language %q is not supported", input.Language).
			WithDetail("language", input.Language)
	}
	return lang, nil
}

func (s *SubmitService) loadProblem(ctx context.Context, problemID int64) (*model.Problem, error) {
	ctxProblem := withTimeout(ctx, s.timeouts.Problem)
	defer ctxProblem.cancel()
	problem, err := s.problems.GetProblem(ctxProblem.ctx, problemID)
	if err != nil {
		if appErr.GetError(err) != nil {
			return nil, err
		}
		return nil, appErr.Wrapf(err, appErr.ServiceUnavailable, "load problem failed")
	}
	return problem, nil
}

func (s *SubmitService) checkRateLimit(ctx context.Context, userID string, mode model.Mode) error {
	if s.cache == nil || s.rateLimit.Window <= 0 {
		return nil
	}
	max, prefix := s.rateLimit.RunMax, rateRunKeyPrefix
	if mode == model.ModeSubmit {
		max, prefix = s.rateLimit.SubmitMax, rateSubmitKeyPrefix
	}
	if max <= 0 {
		return nil
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()
	return s.checkRateCounter(ctxCache.ctx, prefix+userID, max)
}

func (s *SubmitService) checkRateCounter(ctx context.Context, key string, max int) error {
	count, err := s.cache.Incr(ctx, key)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
	}
	if count == 1 {
		_ = s.cache.Expire(ctx, key, s.rateLimit.Window)
	}
	if int(count) > max {
		return appErr.New(appErr.SubmitTooFrequently).WithMessage("submit too frequently")
	}
	return nil
}

func (s *SubmitService) createSubmission(ctx context.Context, sub *model.Submission) error {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if _, err := s.submissionRepo.Create(ctxDB.ctx, nil, sub); err != nil {
		return appErr.Wrapf(err, appErr.SubmissionCreateFailed, "create submission failed")
	}
	return nil
}

func (s *SubmitService) beats(ctx context.Context, sub *model.Submission) (float64, bool) {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	beats, err := s.submissionRepo.RuntimePercentile(ctxDB.ctx, sub.ProblemID, sub.Language, sub.RuntimeMs)
	if err != nil {
		logger.Warn(ctx, "runtime percentile failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return 0, false
	}
	return beats, true
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}
