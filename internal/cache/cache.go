package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a key→serialized-value store with per-entry expiry.
//
// Get reports absent for missing and expired keys alike; it never returns a
// stale value. Invalidate on an absent key is a no-op. Implementations may
// fail (a remote backend outage) — callers are expected to treat a Get error
// as a miss and a Set/Invalidate error as acceptable staleness.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// entry is one cached value. A zero ExpireAt never expires.
type entry struct {
	value    []byte
	expireAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// Memory is a thread-safe in-memory Cache. Expired entries are treated as
// absent on access and physically removed by a background sweep (Run).
type Memory struct {
	mu   sync.RWMutex
	data map[string]*entry
	now  func() time.Time // injectable for deterministic tests
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]*entry),
		now:  time.Now,
	}
}

// Get returns the value for key if present and not expired.
// An expired entry is removed lazily and reported as absent.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock — a concurrent Set may have replaced it.
		if cur, ok := m.data[key]; ok && cur == e {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key, overwriting any prior entry. The entry expires
// ttl after the call; a non-positive ttl stores a non-expiring entry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &entry{value: value}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

// Invalidate removes key unconditionally. Removing an absent key is a no-op.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of entries currently held, including expired ones
// not yet swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Sweep removes all expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is cancelled.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
