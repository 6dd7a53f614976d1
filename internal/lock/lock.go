// Package lock provides per-key mutual exclusion for sync runs, in process or across instances.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHeld is returned by Acquire when another holder owns the key
var ErrHeld = errors.New("lock is held")

// Lease is an acquired lock. Releasing twice is a no-op.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker grants exclusive, expiring leases on string keys without waiting
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// MemoryLocker is a Locker for single-instance deployments and tests
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryEntry
	clock func() time.Time
}

type memoryEntry struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), clock: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if e, ok := l.held[key]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return nil, ErrHeld
	}

	entry := memoryEntry{token: uuid.NewString()}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}
	l.held[key] = entry
	return &memoryLease{locker: l, key: key, token: entry.token}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
	once   sync.Once
}

func (m *memoryLease) Release(context.Context) error {
	m.once.Do(func() {
		m.locker.mu.Lock()
		defer m.locker.mu.Unlock()
		// an expired lease must not free a lock someone else now holds
		if e, ok := m.locker.held[m.key]; ok && e.token == m.token {
			delete(m.locker.held, m.key)
		}
	})
	return nil
}
