package signal

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry keeps presence in process memory. Used in lite mode and
// tests; multi-instance deployments use the Redis registry.
type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	clock   func() time.Time
}

func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// WithClock overrides the clock for testing.
func (r *MemoryRegistry) WithClock(clock func() time.Time) *MemoryRegistry {
	r.clock = clock
	return r
}

func (r *MemoryRegistry) Heartbeat(_ context.Context, userID string) error {
	r.mu.Lock()
	r.entries[userID] = r.clock().Add(r.ttl)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Offline(_ context.Context, userID string) error {
	r.mu.Lock()
	delete(r.entries, userID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Online(_ context.Context) ([]string, error) {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	var online []string
	for id, expiry := range r.entries {
		if expiry.After(now) {
			online = append(online, id)
		} else {
			// Expired entries are reaped lazily on read.
			delete(r.entries, id)
		}
	}
	return online, nil
}

func (r *MemoryRegistry) IsOnline(_ context.Context, userID string) (bool, error) {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	expiry, ok := r.entries[userID]
	if !ok {
		return false, nil
	}
	if !expiry.After(now) {
		delete(r.entries, userID)
		return false, nil
	}
	return true, nil
}
