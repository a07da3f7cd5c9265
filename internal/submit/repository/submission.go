package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/db"
	"interviewoj/internal/judge/model"
	pkgrepo "interviewoj/pkg/repository"
)

const (
	defaultSubmissionCacheTTL      = 30 * time.Minute
	defaultSubmissionCacheEmptyTTL = 5 * time.Minute
	defaultHistoryCacheTTL         = 30 * time.Second
	submissionCacheKeyPrefix       = "submission:"
	historyCacheKeyPrefix          = "submission:history:"
	historyVersionKeyPrefix        = "submission:history:ver:"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
)

// SubmissionRepository is the append-only submission log.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *model.Submission) (string, error)
	GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*model.Submission, error)
	ListForUser(ctx context.Context, userID string, problemID int64, opts pkgrepo.ListOptions) ([]*model.Submission, error)
	RuntimePercentile(ctx context.Context, problemID int64, language model.Language, runtimeMs int64) (float64, error)
	SolvedProblemIDs(ctx context.Context, userID string) ([]int64, error)
}

// SQLSubmissionRepository implements SubmissionRepository on MySQL or PostgreSQL.
type SQLSubmissionRepository struct {
	db         db.Database
	cache      cache.Cache
	ttl        time.Duration
	emptyTTL   time.Duration
	historyTTL time.Duration
	now        func() time.Time
}

// NewSubmissionRepository creates a submission repository with defaults.
func NewSubmissionRepository(database db.Database, cacheClient cache.Cache) SubmissionRepository {
	return NewSubmissionRepositoryWithTTL(database, cacheClient, defaultSubmissionCacheTTL, defaultSubmissionCacheEmptyTTL, defaultHistoryCacheTTL)
}

// NewSubmissionRepositoryWithTTL creates a submission repository with custom TTLs.
func NewSubmissionRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl, emptyTTL, historyTTL time.Duration) SubmissionRepository {
	if ttl <= 0 {
		ttl = defaultSubmissionCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultSubmissionCacheEmptyTTL
	}
	if historyTTL <= 0 {
		historyTTL = defaultHistoryCacheTTL
	}
	return &SQLSubmissionRepository{
		db:         database,
		cache:      cacheClient,
		ttl:        ttl,
		emptyTTL:   emptyTTL,
		historyTTL: historyTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

const submissionColumns = "id, user_id, problem_id, language, code, mode, status, passed_count, total_count, runtime_ms, memory_kb, error_message, case_results, created_at"

// Create inserts a submission. The id is generated when empty and created_at
// is always assigned here.
func (r *SQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *model.Submission) (string, error) {
	if submission == nil {
		return "", errors.New("submission is nil")
	}
	if submission.UserID == "" {
		return "", errors.New("userID is required")
	}
	if submission.ProblemID <= 0 {
		return "", errors.New("problemID is required")
	}
	if submission.Language == "" {
		return "", errors.New("language is required")
	}
	if !submission.Mode.Valid() {
		return "", fmt.Errorf("invalid mode %q", submission.Mode)
	}
	status, err := submission.Status.MarshalText()
	if err != nil {
		return "", err
	}
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	submission.CreatedAt = r.now().Truncate(time.Microsecond)

	var caseResults []byte
	if len(submission.CaseResults) > 0 {
		if caseResults, err = json.Marshal(submission.CaseResults); err != nil {
			return "", err
		}
	}

	query := `
		INSERT INTO submissions
		(id, user_id, problem_id, language, code, mode, status, passed_count, total_count,
			runtime_ms, memory_kb, error_message, case_results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submission.ID,
		submission.UserID,
		submission.ProblemID,
		string(submission.Language),
		submission.Code,
		string(submission.Mode),
		string(status),
		submission.PassedCount,
		submission.TotalCount,
		submission.RuntimeMs,
		submission.MemoryKb,
		submission.ErrorMessage,
		caseResults,
		submission.CreatedAt,
	)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		// A new row shifts every cached history page for this user and problem.
		_, _ = r.cache.Incr(ctx, historyVersionKey(submission.UserID, submission.ProblemID))
		if tx == nil {
			r.setCache(ctx, submission)
		}
	}
	return submission.ID, nil
}

// GetByID retrieves a submission by id.
func (r *SQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*model.Submission, error) {
	if submissionID == "" {
		return nil, errors.New("submissionID is required")
	}
	if r.cache != nil && tx == nil {
		submission, err := cache.GetWithCached[*model.Submission](
			ctx,
			r.cache,
			submissionCacheKey(submissionID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(submission *model.Submission) bool { return submission == nil },
			marshalSubmission,
			unmarshalSubmission,
			func(ctx context.Context) (*model.Submission, error) {
				submission, err := r.getByIDFromDB(ctx, nil, submissionID)
				if err != nil {
					if errors.Is(err, ErrSubmissionNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return submission, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if submission == nil {
			return nil, ErrSubmissionNotFound
		}
		return submission, nil
	}
	return r.getByIDFromDB(ctx, tx, submissionID)
}

// ListForUser returns one page of a user's submissions for a problem, most recent first.
func (r *SQLSubmissionRepository) ListForUser(ctx context.Context, userID string, problemID int64, opts pkgrepo.ListOptions) ([]*model.Submission, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if r.cache == nil {
		return r.listFromDB(ctx, userID, problemID, opts)
	}

	version, err := r.cache.Get(ctx, historyVersionKey(userID, problemID))
	if err != nil {
		return r.listFromDB(ctx, userID, problemID, opts)
	}
	key := historyCacheKey(userID, problemID, version, opts)
	items, err := cache.GetWithCached[[]*model.Submission](
		ctx,
		r.cache,
		key,
		r.historyTTL,
		r.historyTTL,
		func(items []*model.Submission) bool { return len(items) == 0 },
		marshalSubmissions,
		unmarshalSubmissions,
		func(ctx context.Context) ([]*model.Submission, error) {
			return r.listFromDB(ctx, userID, problemID, opts)
		},
	)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Submission{}
	}
	return items, nil
}

// RuntimePercentile returns the percentage of accepted submit-mode submissions
// for the same problem and language whose runtime was strictly greater.
func (r *SQLSubmissionRepository) RuntimePercentile(ctx context.Context, problemID int64, language model.Language, runtimeMs int64) (float64, error) {
	accepted, _ := model.Accepted.MarshalText()
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN runtime_ms > ? THEN 1 ELSE 0 END), 0)
		FROM submissions
		WHERE problem_id = ? AND language = ? AND mode = ? AND status = ?`
	var total, slower int64
	err := r.db.QueryRow(ctx, query, runtimeMs, problemID, string(language), string(model.ModeSubmit), string(accepted)).
		Scan(&total, &slower)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	return math.Round(float64(slower)*10000/float64(total)) / 100, nil
}

// SolvedProblemIDs lists problems the user has an accepted submit-mode submission for.
func (r *SQLSubmissionRepository) SolvedProblemIDs(ctx context.Context, userID string) ([]int64, error) {
	accepted, _ := model.Accepted.MarshalText()
	query := `
		SELECT DISTINCT problem_id
		FROM submissions
		WHERE user_id = ? AND mode = ? AND status = ?
		ORDER BY problem_id`
	rows, err := r.db.Query(ctx, query, userID, string(model.ModeSubmit), string(accepted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLSubmissionRepository) listFromDB(ctx context.Context, userID string, problemID int64, opts pkgrepo.ListOptions) ([]*model.Submission, error) {
	query := "SELECT " + submissionColumns + ` FROM submissions
		WHERE user_id = ? AND problem_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := r.db.Query(ctx, query, userID, problemID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.Submission, 0, opts.Limit)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, submission)
	}
	return items, rows.Err()
}

func (r *SQLSubmissionRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, submissionID string) (*model.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, submissionID)
	submission, err := scanSubmission(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

func scanSubmission(scanner db.Scanner) (*model.Submission, error) {
	var (
		submission  model.Submission
		language    string
		mode        string
		status      string
		caseResults []byte
	)
	if err := scanner.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.ProblemID,
		&language,
		&submission.Code,
		&mode,
		&status,
		&submission.PassedCount,
		&submission.TotalCount,
		&submission.RuntimeMs,
		&submission.MemoryKb,
		&submission.ErrorMessage,
		&caseResults,
		&submission.CreatedAt,
	); err != nil {
		return nil, err
	}
	submission.Language = model.Language(language)
	submission.Mode = model.Mode(mode)
	if err := submission.Status.UnmarshalText([]byte(status)); err != nil {
		return nil, err
	}
	if len(caseResults) > 0 {
		if err := json.Unmarshal(caseResults, &submission.CaseResults); err != nil {
			return nil, err
		}
	}
	return &submission, nil
}

func (r *SQLSubmissionRepository) setCache(ctx context.Context, submission *model.Submission) {
	if submission == nil || r.cache == nil {
		return
	}
	payload := marshalSubmission(submission)
	if payload == "" {
		return
	}
	_ = r.cache.Set(ctx, submissionCacheKey(submission.ID), payload, cache.JitterTTL(r.ttl))
}

func submissionCacheKey(submissionID string) string {
	return submissionCacheKeyPrefix + submissionID
}

func historyVersionKey(userID string, problemID int64) string {
	return historyVersionKeyPrefix + userID + ":" + strconv.FormatInt(problemID, 10)
}

func historyCacheKey(userID string, problemID int64, version string, opts pkgrepo.ListOptions) string {
	if version == "" {
		version = "0"
	}
	return fmt.Sprintf("%s%s:%d:v%s:%d:%d", historyCacheKeyPrefix, userID, problemID, version, opts.Offset, opts.Limit)
}

func marshalSubmission(submission *model.Submission) string {
	payload, err := json.Marshal(submission)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalSubmission(data string) (*model.Submission, error) {
	if data == "" {
		return nil, nil
	}
	var submission model.Submission
	if err := json.Unmarshal([]byte(data), &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}

func marshalSubmissions(items []*model.Submission) string {
	payload, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalSubmissions(data string) ([]*model.Submission, error) {
	var items []*model.Submission
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	return items, nil
}
