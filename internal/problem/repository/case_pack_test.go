package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"interviewoj/internal/judge/model"
	appErr "interviewoj/pkg/errors"
)

func TestCasePackEncodeDecode(t *testing.T) {
	t.Parallel()
	payload, sum, err := EncodeCasePack(hiddenCases)
	if err != nil {
		t.Fatalf("EncodeCasePack: %v", err)
	}
	if len(sum) != 64 {
		t.Fatalf("expected hex sha256, got %q", sum)
	}
	got, err := DecodeCasePack(payload)
	if err != nil {
		t.Fatalf("DecodeCasePack: %v", err)
	}
	if len(got) != len(hiddenCases) || got[1].Input != "0 0" {
		t.Fatalf("unexpected cases: %+v", got)
	}
}

func TestDecodeCasePackRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := DecodeCasePack([]byte("not zstd"))
	if !appErr.Is(err, appErr.CasePackCorrupt) {
		t.Fatalf("expected CasePackCorrupt, got %v", err)
	}
}

func TestCasePackStoreEvictsOldest(t *testing.T) {
	t.Parallel()
	store := newMemoryStorage()
	packs := NewCasePackStore(store, "cases", time.Minute, 2)
	ctx := context.Background()
	sums := map[string]string{}
	for _, key := range []string{"a", "b", "c"} {
		sum, err := packs.Save(ctx, key, []model.TestCase{{Input: key, Output: key}})
		if err != nil {
			t.Fatalf("Save(%s): %v", key, err)
		}
		sums[key] = sum
	}

	if _, err := packs.Load(ctx, "c", sums["c"]); err != nil {
		t.Fatalf("Load(c): %v", err)
	}
	if store.getCount() != 0 {
		t.Fatalf("recent pack should come from memory")
	}
	if _, err := packs.Load(ctx, "a", sums["a"]); err != nil {
		t.Fatalf("Load(a): %v", err)
	}
	if store.getCount() != 1 {
		t.Fatalf("evicted pack should be downloaded again, got %d downloads", store.getCount())
	}
}

func TestCasePackStoreExpires(t *testing.T) {
	t.Parallel()
	store := newMemoryStorage()
	packs := NewCasePackStore(store, "cases", 10*time.Millisecond, 4)
	ctx := context.Background()
	sum, err := packs.Save(ctx, "k", hiddenCases)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := packs.Load(ctx, "k", sum); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.getCount() != 1 {
		t.Fatalf("expired entry should be reloaded, got %d downloads", store.getCount())
	}
}

func TestCasePackStoreRequiresKey(t *testing.T) {
	t.Parallel()
	packs := NewCasePackStore(newMemoryStorage(), "cases", time.Minute, 1)
	if _, err := packs.Load(context.Background(), "", ""); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
}

func TestCasePackStoreRejectsOversizedPack(t *testing.T) {
	t.Parallel()
	store := newMemoryStorage()
	ctx := context.Background()
	payload, sum, err := EncodeCasePack(hiddenCases)
	if err != nil {
		t.Fatalf("EncodeCasePack: %v", err)
	}
	if _, err := NewCasePackStore(store, "cases", time.Minute, 4).Save(ctx, "k", hiddenCases); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tight := NewCasePackStore(store, "cases", time.Minute, 4)
	tight.maxBytes = int64(len(payload)) - 1
	_, err = tight.Load(ctx, "k", sum)
	if !appErr.Is(err, appErr.CasePackCorrupt) || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected too large error, got %v", err)
	}

	exact := NewCasePackStore(store, "cases", time.Minute, 4)
	exact.maxBytes = int64(len(payload))
	if _, err := exact.Load(ctx, "k", sum); err != nil {
		t.Fatalf("pack at the limit should load: %v", err)
	}
}
