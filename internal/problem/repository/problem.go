package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/db"
	"interviewoj/internal/judge/model"
	appErr "interviewoj/pkg/errors"
)

const (
	defaultProblemTTL      = 30 * time.Minute
	defaultProblemEmptyTTL = 5 * time.Minute
	problemKeyPrefix       = "problem:record:"
)

var (
	ErrProblemNotFound = errors.New("problem not found")
)

// ProblemRepository is the read path the judge uses plus the upsert the import tool uses.
type ProblemRepository interface {
	GetProblem(ctx context.Context, problemID int64) (*model.Problem, error)
	GetRecord(ctx context.Context, tx db.Transaction, problemID int64) (*ProblemRecord, error)
	Upsert(ctx context.Context, tx db.Transaction, record *ProblemRecord) error
}

type SQLProblemRepository struct {
	db       db.Database
	cache    cache.Cache
	packs    *CasePackStore
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewProblemRepository(database db.Database, cacheClient cache.Cache, packs *CasePackStore) ProblemRepository {
	return NewProblemRepositoryWithTTL(database, cacheClient, packs, defaultProblemTTL, defaultProblemEmptyTTL)
}

func NewProblemRepositoryWithTTL(database db.Database, cacheClient cache.Cache, packs *CasePackStore, ttl, emptyTTL time.Duration) ProblemRepository {
	if ttl <= 0 {
		ttl = defaultProblemTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultProblemEmptyTTL
	}
	return &SQLProblemRepository{
		db:       database,
		cache:    cacheClient,
		packs:    packs,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

// GetProblem returns the full problem with hidden cases attached.
func (r *SQLProblemRepository) GetProblem(ctx context.Context, problemID int64) (*model.Problem, error) {
	if problemID <= 0 {
		return nil, appErr.ValidationError("problem_id", "must be positive")
	}
	record, err := r.GetRecord(ctx, nil, problemID)
	if err != nil {
		if errors.Is(err, ErrProblemNotFound) {
			return nil, appErr.New(appErr.ProblemNotFound).WithDetail("problem_id", problemID)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load problem failed")
	}
	if r.packs == nil {
		return nil, appErr.New(appErr.InternalServerError).WithMessage("case pack store is not initialized")
	}
	hidden, err := r.packs.Load(ctx, record.HiddenPackKey, record.HiddenPackSHA256)
	if err != nil {
		return nil, err
	}
	problem := record.toProblem(hidden)
	if err := problem.Validate(); err != nil {
		return nil, appErr.Wrap(err, appErr.TestCaseInvalid)
	}
	return problem, nil
}

func (r *SQLProblemRepository) GetRecord(ctx context.Context, tx db.Transaction, problemID int64) (*ProblemRecord, error) {
	if r.cache != nil && tx == nil {
		record, err := cache.GetWithCached[*ProblemRecord](
			ctx,
			r.cache,
			problemKey(problemID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(record *ProblemRecord) bool { return record == nil },
			marshalProblemRecord,
			unmarshalProblemRecord,
			func(ctx context.Context) (*ProblemRecord, error) {
				record, err := r.getRecordFromDB(ctx, nil, problemID)
				if err != nil {
					if errors.Is(err, ErrProblemNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return record, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, ErrProblemNotFound
		}
		return record, nil
	}
	return r.getRecordFromDB(ctx, tx, problemID)
}

// Upsert inserts or replaces a problem row and drops its cached copy.
func (r *SQLProblemRepository) Upsert(ctx context.Context, tx db.Transaction, record *ProblemRecord) error {
	if record == nil {
		return errors.New("problem record is nil")
	}
	if record.ID <= 0 {
		return appErr.ValidationError("id", "must be positive")
	}
	cols, err := encodeColumns(record)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestCaseInvalid, "encode problem columns failed")
	}

	query := `
		INSERT INTO problems (id, title, signature, visible_cases, start_code, reference_solution,
			driver_templates, time_limit_ms, memory_limit_kb, hidden_pack_key, hidden_pack_sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)` + upsertClause(r.db.Dialect())
	_, err = db.GetQuerier(r.db, tx).Exec(ctx, query,
		record.ID, record.Title, cols.signature, cols.visible, cols.startCode, cols.reference,
		cols.drivers, record.TimeLimitMs, record.MemoryLimitKb, record.HiddenPackKey, record.HiddenPackSHA256,
	)
	if err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, problemKey(record.ID))
	}
	return nil
}

func upsertClause(dialect db.Dialect) string {
	if dialect == db.DialectPostgres {
		return `
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, signature = EXCLUDED.signature,
			visible_cases = EXCLUDED.visible_cases, start_code = EXCLUDED.start_code,
			reference_solution = EXCLUDED.reference_solution, driver_templates = EXCLUDED.driver_templates,
			time_limit_ms = EXCLUDED.time_limit_ms, memory_limit_kb = EXCLUDED.memory_limit_kb,
			hidden_pack_key = EXCLUDED.hidden_pack_key, hidden_pack_sha256 = EXCLUDED.hidden_pack_sha256,
			updated_at = CURRENT_TIMESTAMP`
	}
	return `
		ON DUPLICATE KEY UPDATE title = VALUES(title), signature = VALUES(signature),
			visible_cases = VALUES(visible_cases), start_code = VALUES(start_code),
			reference_solution = VALUES(reference_solution), driver_templates = VALUES(driver_templates),
			time_limit_ms = VALUES(time_limit_ms), memory_limit_kb = VALUES(memory_limit_kb),
			hidden_pack_key = VALUES(hidden_pack_key), hidden_pack_sha256 = VALUES(hidden_pack_sha256),
			updated_at = CURRENT_TIMESTAMP`
}

func (r *SQLProblemRepository) getRecordFromDB(ctx context.Context, tx db.Transaction, problemID int64) (*ProblemRecord, error) {
	query := `
		SELECT id, title, signature, visible_cases, start_code, reference_solution, driver_templates,
			time_limit_ms, memory_limit_kb, hidden_pack_key, hidden_pack_sha256, updated_at
		FROM problems
		WHERE id = ?`

	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, problemID)
	record, err := scanProblemRecord(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	return record, nil
}

func problemKey(problemID int64) string {
	return problemKeyPrefix + strconv.FormatInt(problemID, 10)
}

func marshalProblemRecord(record *ProblemRecord) string {
	payload, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalProblemRecord(data string) (*ProblemRecord, error) {
	if data == "" {
		return nil, nil
	}
	var record ProblemRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func scanProblemRecord(scanner db.Scanner) (*ProblemRecord, error) {
	var (
		record ProblemRecord
		cols   jsonColumns
	)
	err := scanner.Scan(
		&record.ID,
		&record.Title,
		&cols.signature,
		&cols.visible,
		&cols.startCode,
		&cols.reference,
		&cols.drivers,
		&record.TimeLimitMs,
		&record.MemoryLimitKb,
		&record.HiddenPackKey,
		&record.HiddenPackSHA256,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := cols.decodeInto(&record); err != nil {
		return nil, err
	}
	return &record, nil
}
