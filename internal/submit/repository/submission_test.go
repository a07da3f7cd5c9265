package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/db/dbtest"
	"interviewoj/internal/judge/model"
	pkgrepo "interviewoj/pkg/repository"
)

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	return c
}

func submissionRow(id string, createdAt time.Time) []interface{} {
	return []interface{}{
		id, "u-1", int64(7), "cpp", "int main(){}", "submit", "Wrong Answer",
		3, 5, int64(12), int64(2048), "", []byte(nil), createdAt,
	}
}

func TestCreateAssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()
	fake := &dbtest.FakeDB{}
	repo := NewSubmissionRepository(fake, nil).(*SQLSubmissionRepository)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 6789, time.UTC)
	repo.now = func() time.Time { return fixed }

	sub := &model.Submission{
		UserID:      "u-1",
		ProblemID:   7,
		Language:    model.LanguageJava,
		Code:        "class Solution {}",
		Mode:        model.ModeRun,
		Status:      model.RuntimeError,
		PassedCount: 1,
		TotalCount:  2,
		CaseResults: []model.CaseResult{{Stdin: "1", Status: model.Accepted}},
	}
	id, err := repo.Create(context.Background(), nil, sub)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" || sub.ID != id {
		t.Fatalf("expected generated id, got %q / %q", id, sub.ID)
	}
	if !sub.CreatedAt.Equal(fixed.Truncate(time.Microsecond)) {
		t.Fatalf("unexpected created_at %v", sub.CreatedAt)
	}
	execs := fake.Execs()
	if len(execs) != 1 || len(execs[0].Args) != 14 {
		t.Fatalf("unexpected insert: %+v", execs)
	}
	if execs[0].Args[6] != "Runtime Error" || execs[0].Args[5] != "run" {
		t.Fatalf("status or mode not stored by name: %v", execs[0].Args)
	}
	if b, ok := execs[0].Args[12].([]byte); !ok || !strings.Contains(string(b), `"stdin":"1"`) {
		t.Fatalf("case results not encoded: %v", execs[0].Args[12])
	}
}

func TestCreateValidates(t *testing.T) {
	t.Parallel()
	repo := NewSubmissionRepository(&dbtest.FakeDB{}, nil)
	tests := []struct {
		name string
		sub  *model.Submission
	}{
		{name: "nil", sub: nil},
		{name: "no user", sub: &model.Submission{ProblemID: 1, Language: model.LanguageCPP, Mode: model.ModeRun}},
		{name: "no problem", sub: &model.Submission{UserID: "u", Language: model.LanguageCPP, Mode: model.ModeRun}},
		{name: "no language", sub: &model.Submission{UserID: "u", ProblemID: 1, Mode: model.ModeRun}},
		{name: "bad mode", sub: &model.Submission{UserID: "u", ProblemID: 1, Language: model.LanguageCPP, Mode: "x"}},
	}
	for _, tt := range tests {
		if _, err := repo.Create(context.Background(), nil, tt.sub); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestGetByIDUsesCache(t *testing.T) {
	t.Parallel()
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fake := &dbtest.FakeDB{OnQuery: func(query string, args []interface{}) ([][]interface{}, error) {
		if args[0] == "missing" {
			return nil, nil
		}
		return [][]interface{}{submissionRow("s-1", created)}, nil
	}}
	repo := NewSubmissionRepository(fake, newTestCache(t))

	for i := 0; i < 2; i++ {
		sub, err := repo.GetByID(context.Background(), nil, "s-1")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if sub.Status != model.WrongAnswer || sub.PassedCount != 3 || !sub.CreatedAt.Equal(created) {
			t.Fatalf("unexpected submission: %+v", sub)
		}
	}
	if _, err := repo.GetByID(context.Background(), nil, "missing"); err != ErrSubmissionNotFound {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
	if got := len(fake.Queries()); got != 2 {
		t.Fatalf("expected one query per distinct id, got %d", got)
	}
}

func TestListForUserCachesAndInvalidates(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := [][]interface{}{
		submissionRow("s-2", base.Add(time.Minute)),
		submissionRow("s-1", base),
	}
	fake := &dbtest.FakeDB{OnQuery: func(query string, args []interface{}) ([][]interface{}, error) {
		if !strings.Contains(query, "ORDER BY created_at DESC, id DESC") {
			t.Errorf("history must be most recent first: %s", query)
		}
		return rows, nil
	}}
	repo := NewSubmissionRepository(fake, newTestCache(t))
	var opts pkgrepo.ListOptions
	opts.SetPagination(1, 10)

	for i := 0; i < 2; i++ {
		items, err := repo.ListForUser(context.Background(), "u-1", 7, opts)
		if err != nil {
			t.Fatalf("ListForUser: %v", err)
		}
		if len(items) != 2 || items[0].ID != "s-2" {
			t.Fatalf("unexpected page: %+v", items)
		}
	}
	if got := len(fake.Queries()); got != 1 {
		t.Fatalf("expected second page read from cache, got %d queries", got)
	}

	_, err := repo.Create(context.Background(), nil, &model.Submission{
		UserID: "u-1", ProblemID: 7, Language: model.LanguageCPP, Mode: model.ModeSubmit, Status: model.Accepted,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.ListForUser(context.Background(), "u-1", 7, opts); err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if got := len(fake.Queries()); got != 2 {
		t.Fatalf("expected cache to be invalidated by Create, got %d queries", got)
	}

	last := fake.Queries()[1]
	if last.Args[2] != 10 || last.Args[3] != 0 {
		t.Fatalf("unexpected limit/offset: %v", last.Args)
	}
}

func TestListForUserRejectsBadOptions(t *testing.T) {
	t.Parallel()
	repo := NewSubmissionRepository(&dbtest.FakeDB{}, nil)
	if _, err := repo.ListForUser(context.Background(), "u", 1, pkgrepo.ListOptions{Limit: 1000}); err == nil {
		t.Fatalf("expected limit error")
	}
	if _, err := repo.ListForUser(context.Background(), "", 1, pkgrepo.ListOptions{}); err == nil {
		t.Fatalf("expected user error")
	}
}

func TestRuntimePercentile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		total, slower int64
		want          float64
	}{
		{total: 0, slower: 0, want: 0},
		{total: 4, slower: 3, want: 75},
		{total: 3, slower: 1, want: 33.33},
	}
	for _, tt := range tests {
		tt := tt
		fake := &dbtest.FakeDB{OnQuery: func(query string, args []interface{}) ([][]interface{}, error) {
			if args[3] != "submit" || args[4] != "Accepted" {
				t.Errorf("percentile must only count accepted submissions: %v", args)
			}
			return [][]interface{}{{tt.total, tt.slower}}, nil
		}}
		repo := NewSubmissionRepository(fake, nil)
		got, err := repo.RuntimePercentile(context.Background(), 7, model.LanguageCPP, 10)
		if err != nil {
			t.Fatalf("RuntimePercentile: %v", err)
		}
		if got != tt.want {
			t.Fatalf("RuntimePercentile(total=%d, slower=%d) = %v, want %v", tt.total, tt.slower, got, tt.want)
		}
	}
}

func TestSolvedProblemIDs(t *testing.T) {
	t.Parallel()
	fake := &dbtest.FakeDB{OnQuery: func(string, []interface{}) ([][]interface{}, error) {
		return [][]interface{}{{int64(1)}, {int64(4)}}, nil
	}}
	repo := NewSubmissionRepository(fake, nil)
	ids, err := repo.SolvedProblemIDs(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("SolvedProblemIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 4 {
		t.Fatalf("unexpected ids %v", ids)
	}
}
