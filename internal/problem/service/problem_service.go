package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"interviewoj/internal/judge/model"
	"interviewoj/internal/problem/repository"
	pkgerrors "interviewoj/pkg/errors"
)

// ProblemView is what a solver may see before submitting. Hidden cases,
// reference solutions and driver templates never leave the server.
type ProblemView struct {
	ID               int64                     `json:"id"`
	Title            string                    `json:"title"`
	Signature        model.Signature           `json:"signature"`
	VisibleTestCases []model.TestCase          `json:"visible_test_cases"`
	StartCode        map[model.Language]string `json:"start_code"`
	Languages        []model.Language          `json:"languages"`
	TimeLimitMs      int64                     `json:"time_limit_ms"`
	MemoryLimitKb    int64                     `json:"memory_limit_kb"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// ProblemService handles problem queries.
type ProblemService struct {
	repo      repository.ProblemRepository
	languages []model.Language
}

// NewProblemService creates a new ProblemService. languages is the set the
// judge accepts; start code for any other language is not shown.
func NewProblemService(repo repository.ProblemRepository, languages []model.Language) *ProblemService {
	sorted := append([]model.Language(nil), languages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &ProblemService{repo: repo, languages: sorted}
}

// GetProblem returns the public view of a problem.
func (s *ProblemService) GetProblem(ctx context.Context, problemID int64) (*ProblemView, error) {
	if problemID <= 0 {
		return nil, pkgerrors.New(pkgerrors.InvalidParams)
	}

	record, err := s.repo.GetRecord(ctx, nil, problemID)
	if err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return nil, pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return nil, pkgerrors.Wrapf(err, pkgerrors.DatabaseError, "get problem failed")
	}

	startCode := make(map[model.Language]string, len(s.languages))
	for _, lang := range s.languages {
		if code, ok := record.StartCode[lang]; ok {
			startCode[lang] = code
		}
	}
	return &ProblemView{
		ID:               record.ID,
		Title:            record.Title,
		Signature:        record.Signature,
		VisibleTestCases: record.VisibleTestCases,
		StartCode:        startCode,
		Languages:        s.languages,
		TimeLimitMs:      record.TimeLimitMs,
		MemoryLimitKb:    record.MemoryLimitKb,
		UpdatedAt:        record.UpdatedAt,
	}, nil
}
