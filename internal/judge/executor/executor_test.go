package executor

import (
	"context"
	"testing"
	"time"

	"interviewoj/internal/judge/model"
)

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
		{40, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Fatalf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
	if got := (Backoff{}).Delay(3); got != 0 {
		t.Fatalf("zero backoff Delay = %v, want 0", got)
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Sleep(ctx, time.Minute) {
		t.Fatalf("Sleep should report interruption")
	}
	if !Sleep(context.Background(), time.Millisecond) {
		t.Fatalf("Sleep should complete")
	}
}

func TestInternalResult(t *testing.T) {
	t.Parallel()

	r := InternalResult(model.ExecutionUnit{Stdin: "1", ExpectedOutput: "2"}, ReasonDeadline)
	if r.Status != model.InternalError || r.Stdin != "1" || r.ExpectedOutput != "2" || r.Message != ReasonDeadline {
		t.Fatalf("unexpected result %+v", r)
	}
}
