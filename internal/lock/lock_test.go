package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	h, err := l.Lock(ctx, "portfolio:main", time.Minute)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := l.Lock(ctx, "portfolio:main", time.Minute); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second lock err=%v want ErrNotAcquired", err)
	}
	if _, err := l.Lock(ctx, "portfolio:other", time.Minute); err != nil {
		t.Fatalf("other key: %v", err)
	}
	if err := h.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := l.Lock(ctx, "portfolio:main", time.Minute); err != nil {
		t.Fatalf("relock: %v", err)
	}
}

func TestLocalExpiredLockCanBeTaken(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.nowFn = func() time.Time { return base }
	stale, err := l.Lock(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	l.nowFn = func() time.Time { return base.Add(2 * time.Second) }
	if _, err := l.Lock(ctx, "k", time.Second); err != nil {
		t.Fatalf("takeover: %v", err)
	}
	// the stale holder must not release the new owner's lock
	_ = stale.Unlock(ctx)
	if _, err := l.Lock(ctx, "k", time.Second); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("err=%v want ErrNotAcquired", err)
	}
}
