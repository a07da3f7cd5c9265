// Package judge0 implements executor.Executor on top of a Judge0 CE server
// using its batch submission endpoints.
package judge0

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"interviewoj/internal/judge/executor"
	"interviewoj/internal/judge/model"
	pkgerrors "interviewoj/pkg/errors"
	"interviewoj/pkg/utils/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultMaxBatchSize   = 20
	defaultPollInitial    = 200 * time.Millisecond
	defaultPollMax        = 2 * time.Second
	defaultMaxRetries     = 3
	defaultJudgeOverhead  = 10 * time.Second
	cancelTimeout         = 2 * time.Second
)

// Config configures the Judge0 client.
type Config struct {
	BaseURL        string        `yaml:"baseURL"`
	AuthToken      string        `yaml:"authToken"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxBatchSize   int           `yaml:"maxBatchSize"`
	PollInitial    time.Duration `yaml:"pollInitial"`
	PollMax        time.Duration `yaml:"pollMax"`
	MaxRetries     int           `yaml:"maxRetries"`
	// JudgeOverhead is added to a unit's time limit to get its wall deadline.
	JudgeOverhead time.Duration `yaml:"judgeOverhead"`

	HTTPClient *http.Client `yaml:"-"`
}

func (c *Config) setDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaultMaxBatchSize
	}
	if c.PollInitial <= 0 {
		c.PollInitial = defaultPollInitial
	}
	if c.PollMax <= 0 {
		c.PollMax = defaultPollMax
	}
	if c.PollMax < c.PollInitial {
		c.PollMax = c.PollInitial
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.JudgeOverhead <= 0 {
		c.JudgeOverhead = defaultJudgeOverhead
	}
}

// Client talks to one Judge0 deployment.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
	cfg       Config
	poll      executor.Backoff
}

var _ executor.Executor = (*Client)(nil)

// New validates cfg and returns a ready client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, pkgerrors.ValidationError("judge0.baseURL", "required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, pkgerrors.ValidationError("judge0.baseURL", "invalid url")
	}
	cfg.setDefaults()
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		baseURL:   base,
		authToken: cfg.AuthToken,
		http:      httpClient,
		cfg:       cfg,
		poll:      executor.Backoff{Initial: cfg.PollInitial, Max: cfg.PollMax},
	}, nil
}

// Execute submits units in batches of at most MaxBatchSize and waits for all
// of them. Result order follows unit order.
func (c *Client) Execute(ctx context.Context, units []model.ExecutionUnit) []model.CaseResult {
	results := make([]model.CaseResult, len(units))
	for start := 0; start < len(units); start += c.cfg.MaxBatchSize {
		end := start + c.cfg.MaxBatchSize
		if end > len(units) {
			end = len(units)
		}
		copy(results[start:end], c.executeBatch(ctx, units[start:end]))
	}
	return results
}

func (c *Client) executeBatch(ctx context.Context, units []model.ExecutionUnit) []model.CaseResult {
	results := make([]model.CaseResult, len(units))
	done := make([]bool, len(units))
	fail := func(i int, reason string) {
		results[i] = executor.InternalResult(units[i], reason)
		done[i] = true
	}

	dispatched := time.Now()
	items, err := c.submitBatch(ctx, units)
	if err != nil {
		reason := executor.ReasonUnreachable
		switch {
		case ctx.Err() != nil:
			reason = executor.ReasonCancelled
		case !retryable(err):
			reason = executor.ReasonRejected
		}
		logger.Warn(ctx, "judge0 batch submit failed", zap.Int("units", len(units)), zap.Error(err))
		for i := range units {
			fail(i, reason)
		}
		return results
	}
	if len(items) != len(units) {
		logger.Warn(ctx, "judge0 batch submit returned mismatched item count",
			zap.Int("units", len(units)), zap.Int("items", len(items)))
		c.cancelTokens(ctx, tokensOf(items))
		for i := range units {
			fail(i, executor.ReasonBadResponse)
		}
		return results
	}

	pending := make(map[string]int, len(units))
	deadlines := make([]time.Time, len(units))
	for i, item := range items {
		if item.Token == "" {
			fail(i, executor.ReasonRejected+": "+firstNonEmpty(item.Reject, "no token"))
			continue
		}
		pending[item.Token] = i
		deadlines[i] = dispatched.Add(time.Duration(units[i].TimeLimitMs)*time.Millisecond + c.cfg.JudgeOverhead)
	}

	failures := 0
	for attempt := 0; len(pending) > 0; attempt++ {
		if !executor.Sleep(ctx, c.poll.Delay(attempt)) {
			c.abandon(ctx, pending, fail, executor.ReasonCancelled)
			return results
		}

		polled, err := c.pollBatch(ctx, pendingTokens(pending, items))
		if err != nil {
			if ctx.Err() != nil {
				c.abandon(ctx, pending, fail, executor.ReasonCancelled)
				return results
			}
			failures++
			logger.Warn(ctx, "judge0 poll failed", zap.Int("failures", failures), zap.Error(err))
			if failures > c.cfg.MaxRetries || !retryable(err) {
				c.abandon(ctx, pending, fail, executor.ReasonUnreachable)
				return results
			}
		} else {
			failures = 0
			for _, r := range polled {
				if r == nil {
					continue
				}
				i, ok := pending[r.Token]
				if !ok || !finished(r) {
					continue
				}
				results[i] = classify(units[i], r)
				done[i] = true
				delete(pending, r.Token)
			}
		}

		now := time.Now()
		var expired []string
		for token, i := range pending {
			if now.After(deadlines[i]) {
				fail(i, executor.ReasonDeadline)
				expired = append(expired, token)
				delete(pending, token)
			}
		}
		if len(expired) > 0 {
			logger.Warn(ctx, "judge0 units exceeded deadline", zap.Strings("tokens", expired))
			c.cancelTokens(ctx, expired)
		}
	}

	for i := range results {
		if !done[i] {
			fail(i, executor.ReasonBadResponse)
		}
	}
	return results
}

func (c *Client) submitBatch(ctx context.Context, units []model.ExecutionUnit) ([]batchItem, error) {
	req := batchRequest{Submissions: make([]submissionRequest, len(units))}
	for i, u := range units {
		req.Submissions[i] = submissionRequest{
			SourceCode:    encode(u.SourceCode),
			LanguageID:    u.LanguageID,
			Stdin:         encode(u.Stdin),
			CPUTimeLimit:  float64(u.TimeLimitMs) / 1000,
			WallTimeLimit: float64(u.TimeLimitMs) / 1000 * 2,
			MemoryLimit:   u.MemoryLimitKb,
		}
	}
	query := url.Values{"base64_encoded": {"true"}}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 && !executor.Sleep(ctx, c.poll.Delay(attempt-1)) {
			return nil, ctx.Err()
		}
		var items []batchItem
		err := c.do(ctx, http.MethodPost, "/submissions/batch", query, req, &items)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) pollBatch(ctx context.Context, tokens []string) ([]*submissionResult, error) {
	query := url.Values{
		"tokens":         {strings.Join(tokens, ",")},
		"base64_encoded": {"true"},
		"fields":         {resultFields},
	}
	var out batchResult
	if err := c.do(ctx, http.MethodGet, "/submissions/batch", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Submissions, nil
}

// abandon resolves every pending unit with reason and frees its sandbox slot.
func (c *Client) abandon(ctx context.Context, pending map[string]int, fail func(int, string), reason string) {
	tokens := make([]string, 0, len(pending))
	for token, i := range pending {
		fail(i, reason)
		tokens = append(tokens, token)
		delete(pending, token)
	}
	c.cancelTokens(ctx, tokens)
}

// cancelTokens is best-effort and survives cancellation of the caller's ctx.
func (c *Client) cancelTokens(ctx context.Context, tokens []string) {
	if len(tokens) == 0 {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	for _, token := range tokens {
		if token == "" {
			continue
		}
		err := c.do(cctx, http.MethodDelete, "/submissions/"+url.PathEscape(token), nil, nil, nil)
		var he *httpError
		if err != nil && !(errors.As(err, &he) && he.StatusCode == http.StatusNotFound) {
			logger.Debug(ctx, "judge0 cancel failed", zap.String("token", token), zap.Error(err))
		}
	}
}

// pendingTokens keeps submission order so responses line up predictably.
func pendingTokens(pending map[string]int, items []batchItem) []string {
	tokens := make([]string, 0, len(pending))
	for _, item := range items {
		if _, ok := pending[item.Token]; ok {
			tokens = append(tokens, item.Token)
		}
	}
	return tokens
}

func tokensOf(items []batchItem) []string {
	tokens := make([]string, 0, len(items))
	for _, item := range items {
		if item.Token != "" {
			tokens = append(tokens, item.Token)
		}
	}
	return tokens
}
