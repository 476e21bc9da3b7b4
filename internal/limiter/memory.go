package limiter

import (
	"sync"
	"time"
)

type windowEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and
// tests. Counters live in a fixed window armed on the first increment.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry

	now         func() time.Time
	stopCleanup chan struct{}
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		entries:     make(map[string]*windowEntry),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go ms.cleanup()

	return ms
}

func (ms *MemoryStore) IncrementAttempts(key string, windowSeconds int) (int64, int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()

	entry, exists := ms.entries[key]
	if !exists || !entry.expiresAt.After(now) {
		entry = &windowEntry{expiresAt: now.Add(time.Duration(windowSeconds) * time.Second)}
		ms.entries[key] = entry
	}

	entry.count++

	remaining := entry.expiresAt.Sub(now)
	retryAfter := int((remaining + time.Second - 1) / time.Second)

	return entry.count, retryAfter, nil
}

// cleanup drops expired windows so abandoned keys do not accumulate.
func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.removeExpired()
		case <-ms.stopCleanup:
			return
		}
	}
}

func (ms *MemoryStore) removeExpired() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for key, entry := range ms.entries {
		if !entry.expiresAt.After(now) {
			delete(ms.entries, key)
		}
	}
}

func (ms *MemoryStore) Close() error {
	close(ms.stopCleanup)
	return nil
}
