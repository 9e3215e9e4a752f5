package redis

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is the single-process fallback used when REDIS_ADDR is unset.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]time.Time)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, resource string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expires, held := l.locks[resource]; held && time.Now().Before(expires) {
		return nil, ErrLockHeld
	}
	expires := time.Now().Add(ttl)
	l.locks[resource] = expires

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.locks[resource].Equal(expires) {
			delete(l.locks, resource)
		}
	}, nil
}

type memoryEntry struct {
	value   string
	expires time.Time
}

type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryIdempotencyStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expires) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryIdempotencyStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{value: value, expires: time.Now().Add(ttl)}
	return nil
}
