package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) *redisLimiter {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return &redisLimiter{client: client, limit: limit, window: window}
}

func TestNoOpLimiterAlwaysAllows(t *testing.T) {
	l := NoOpLimiter{}
	res, err := l.Allow(context.Background(), "any-client")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Fatal("expected NoOpLimiter to always allow")
	}
}

func TestRedisLimiterAllowsWithinLimit(t *testing.T) {
	l := newTestLimiter(t, 3, time.Minute)
	for i := 0; i < 3; i++ {
		res, err := l.Allow(context.Background(), "client-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestRedisLimiterRejectsOverLimit(t *testing.T) {
	l := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()
	l.Allow(ctx, "client-b")
	l.Allow(ctx, "client-b")
	res, err := l.Allow(ctx, "client-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Fatal("expected third request over limit=2 to be rejected")
	}
	if res.ResetSecs <= 0 {
		t.Fatalf("expected positive reset time, got %d", res.ResetSecs)
	}
}

func TestRedisLimiterKeysAreIndependent(t *testing.T) {
	l := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	res1, _ := l.Allow(ctx, "client-c")
	res2, _ := l.Allow(ctx, "client-d")
	if !res1.Allowed || !res2.Allowed {
		t.Fatal("independent clients should each get their own window")
	}
}
