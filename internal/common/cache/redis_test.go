package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, server
}

func TestRedisCacheOps(t *testing.T) {
	t.Parallel()
	c, server := newTestCache(t)
	ctx := context.Background()

	if v, err := c.Get(ctx, "missing"); err != nil || v != "" {
		t.Fatalf("missing key should read as empty, got %q %v", v, err)
	}
	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := c.Get(ctx, "k"); v != "v" {
		t.Fatalf("unexpected value %q", v)
	}
	server.FastForward(2 * time.Minute)
	if v, _ := c.Get(ctx, "k"); v != "" {
		t.Fatalf("key should have expired, got %q", v)
	}

	for i := 1; i <= 3; i++ {
		n, err := c.Incr(ctx, "counter")
		if err != nil || n != int64(i) {
			t.Fatalf("incr %d: got %d %v", i, n, err)
		}
	}
	if err := c.Expire(ctx, "counter", time.Second); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if ttl := server.TTL("counter"); ttl != time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	if err := c.SAdd(ctx, "set", "1", "2", "2"); err != nil {
		t.Fatalf("sadd: %v", err)
	}
	if err := c.SAdd(ctx, "set"); err != nil {
		t.Fatalf("empty sadd should be a no-op: %v", err)
	}
	members, _ := c.SMembers(ctx, "set")
	if len(members) != 2 {
		t.Fatalf("unexpected members %v", members)
	}
	if ok, _ := c.SIsMember(ctx, "set", "2"); !ok {
		t.Fatalf("expected member")
	}
	if err := c.Del(ctx, "set", "counter"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if server.Exists("set") || server.Exists("counter") {
		t.Fatalf("keys should be deleted")
	}
}

func TestGetWithCached(t *testing.T) {
	t.Parallel()
	c, server := newTestCache(t)
	ctx := context.Background()

	loads := 0
	load := func(value int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) {
			loads++
			return value, nil
		}
	}
	get := func(key string, fn func(context.Context) (int, error)) (int, error) {
		return GetWithCached[int](ctx, c, key, time.Minute, 10*time.Second,
			func(v int) bool { return v == 0 },
			strconv.Itoa,
			strconv.Atoi,
			fn,
		)
	}

	if v, err := get("present", load(7)); err != nil || v != 7 {
		t.Fatalf("first read: %d %v", v, err)
	}
	if v, _ := get("present", load(8)); v != 7 || loads != 1 {
		t.Fatalf("second read should hit cache, got %d after %d loads", v, loads)
	}

	if v, _ := get("absent", load(0)); v != 0 {
		t.Fatalf("expected zero value, got %d", v)
	}
	if raw, _ := server.Get("absent"); raw != NullCacheValue {
		t.Fatalf("miss should be cached as null marker, got %q", raw)
	}
	if _, _ = get("absent", load(9)); loads != 2 {
		t.Fatalf("cached miss should not reload, loads=%d", loads)
	}

	boom := errors.New("db down")
	if _, err := get("failing", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("loader error should propagate, got %v", err)
	}
	if server.Exists("failing") {
		t.Fatalf("failed load must not be cached")
	}
}

func TestJitterTTL(t *testing.T) {
	t.Parallel()
	for i := 0; i < 50; i++ {
		got := JitterTTL(time.Minute)
		if got > time.Minute || got < 54*time.Second {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
	if JitterTTL(0) != 0 || JitterTTL(5*time.Nanosecond) != 5*time.Nanosecond {
		t.Fatalf("tiny ttl should be returned unchanged")
	}
}
