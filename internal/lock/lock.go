package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotAcquired = errors.New("lock: not acquired")

// Locker acquires a named lock. Lock returns ErrNotAcquired when another holder owns it.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (Handle, error)
}

type Handle interface {
	Unlock(ctx context.Context) error
}

// Local is an in-process Locker. A lock whose ttl has passed may be taken over.
type Local struct {
	mu    sync.Mutex
	held  map[string]localEntry
	nowFn func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

func NewLocal() *Local {
	return &Local{held: map[string]localEntry{}, nowFn: time.Now}
}

func (l *Local) Lock(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if cur, ok := l.held[key]; ok && (cur.expires.IsZero() || now.Before(cur.expires)) {
		return nil, ErrNotAcquired
	}
	entry := localEntry{token: uuid.NewString()}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}
	l.held[key] = entry
	return &localHandle{owner: l, key: key, token: entry.token}, nil
}

type localHandle struct {
	owner *Local
	key   string
	token string
}

func (h *localHandle) Unlock(ctx context.Context) error {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	if cur, ok := h.owner.held[h.key]; ok && cur.token == h.token {
		delete(h.owner.held, h.key)
	}
	return nil
}
