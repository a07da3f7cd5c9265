package service

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/mq"
	"interviewoj/internal/judge/model"
	appErr "interviewoj/pkg/errors"
	"interviewoj/pkg/utils/logger"
)

const solvedKeyPrefix = "user:solved:"

// solvedBuiltMember marks a solved set as rebuilt from history. Problem ids
// are positive, so it never collides with a real member. Keeping the marker
// inside the set means an evicted set also loses its marker.
const solvedBuiltMember = "0"

// SubmissionJudgedEvent is published once per recorded submit-mode submission.
type SubmissionJudgedEvent struct {
	SubmissionID string           `json:"submission_id"`
	UserID       string           `json:"user_id"`
	ProblemID    int64            `json:"problem_id"`
	Language     model.Language   `json:"language"`
	Mode         model.Mode       `json:"mode"`
	Status       model.StatusKind `json:"status"`
	Passed       int              `json:"passed"`
	Total        int              `json:"total"`
	RuntimeMs    int64            `json:"runtime_ms"`
	MemoryKb     int64            `json:"memory_kb"`
	CreatedAt    time.Time        `json:"created_at"`
}

func newJudgedEvent(sub *model.Submission) SubmissionJudgedEvent {
	return SubmissionJudgedEvent{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		ProblemID:    sub.ProblemID,
		Language:     sub.Language,
		Mode:         sub.Mode,
		Status:       sub.Status,
		Passed:       sub.PassedCount,
		Total:        sub.TotalCount,
		RuntimeMs:    sub.RuntimeMs,
		MemoryKb:     sub.MemoryKb,
		CreatedAt:    sub.CreatedAt,
	}
}

// publishJudged never fails the request; the history row is already durable.
func (s *SubmitService) publishJudged(ctx context.Context, sub *model.Submission) {
	event := newJudgedEvent(sub)
	if s.events == nil {
		if s.tracker != nil {
			if err := s.tracker.Record(ctx, event); err != nil {
				logger.Warn(ctx, "record solved problem failed", zap.String("submission_id", sub.ID), zap.Error(err))
			}
		}
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		logger.Warn(ctx, "encode judged event failed", zap.String("submission_id", sub.ID), zap.Error(err))
		return
	}
	message := mq.NewMessage(sub.ID, sub.UserID, body)
	message.SetHeader("status", sub.Status.String())

	ctxMQ := withTimeout(ctx, s.timeouts.MQ)
	defer ctxMQ.cancel()
	if err := s.events.Publish(ctxMQ.ctx, s.judgedTopic, message); err != nil {
		logger.Warn(ctx, "publish judged event failed",
			zap.String("submission_id", sub.ID),
			zap.String("topic", s.judgedTopic),
			zap.Error(err),
		)
	}
}

// SolvedSource rebuilds a user's solved set from durable history.
type SolvedSource interface {
	SolvedProblemIDs(ctx context.Context, userID string) ([]int64, error)
}

// SolvedTracker keeps user:solved:<userId> sets in Redis from judged events.
type SolvedTracker struct {
	cache  cache.Cache
	source SolvedSource
}

func NewSolvedTracker(cacheClient cache.Cache, source SolvedSource) *SolvedTracker {
	return &SolvedTracker{cache: cacheClient, source: source}
}

// HandleMessage is the mq handler for the judged topic.
func (t *SolvedTracker) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var event SubmissionJudgedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return appErr.Wrapf(err, appErr.InvalidParams, "decode judged event failed")
	}
	return t.Record(ctx, event)
}

// Record adds the event's problem to the user's solved set when it was an accepted submit.
// A set that was never rebuilt from history is rebuilt first so it stays complete.
func (t *SolvedTracker) Record(ctx context.Context, event SubmissionJudgedEvent) error {
	if event.UserID == "" || event.ProblemID <= 0 {
		return appErr.ValidationError("event", "user_id and problem_id are required")
	}
	if event.Mode != model.ModeSubmit || event.Status != model.Accepted || event.Passed != event.Total {
		return nil
	}
	key := solvedKey(event.UserID)
	if t.source != nil {
		built, err := t.cache.SIsMember(ctx, key, solvedBuiltMember)
		if err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "read solved set failed")
		}
		if !built {
			if _, err := t.rebuild(ctx, event.UserID); err != nil {
				return err
			}
		}
	}
	if err := t.cache.SAdd(ctx, key, event.ProblemID); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "add solved problem failed")
	}
	return nil
}

// Solved returns the user's solved problem ids in ascending order. A set
// without the rebuilt marker is reloaded from history when a source is configured.
func (t *SolvedTracker) Solved(ctx context.Context, userID string) ([]int64, error) {
	members, err := t.cache.SMembers(ctx, solvedKey(userID))
	if err != nil {
		logger.Warn(ctx, "read solved set failed", zap.String("user_id", userID), zap.Error(err))
		members = nil
	}
	built := false
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if m == solvedBuiltMember {
			built = true
			continue
		}
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if !built && t.source != nil {
		return t.rebuild(ctx, userID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// rebuild loads the solved ids from history and writes them with the marker.
func (t *SolvedTracker) rebuild(ctx context.Context, userID string) ([]int64, error) {
	ids, err := t.source.SolvedProblemIDs(ctx, userID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "list solved problems failed")
	}
	values := make([]interface{}, 0, len(ids)+1)
	values = append(values, solvedBuiltMember)
	for _, id := range ids {
		values = append(values, id)
	}
	if err := t.cache.SAdd(ctx, solvedKey(userID), values...); err != nil {
		logger.Warn(ctx, "rebuild solved set failed", zap.String("user_id", userID), zap.Error(err))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func solvedKey(userID string) string {
	return solvedKeyPrefix + userID
}
