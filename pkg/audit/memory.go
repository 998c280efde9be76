package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory audit sink that both implements Logger and
// supports time-range queries for export. Suitable for lite mode and tests;
// production deployments pair it with the stdout logger via Tee.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	event := buildEvent(ctx, eventType, action, resource, metadata)
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// Query returns events in [start, end]. Zero bounds are open.
func (s *MemoryStore) Query(start, end time.Time) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if !start.IsZero() && e.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && e.Timestamp.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of recorded events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Tee fans a record out to multiple loggers. The first error wins but all
// loggers are attempted.
type Tee []Logger

func (t Tee) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	var firstErr error
	for _, l := range t {
		if err := l.Record(ctx, eventType, action, resource, metadata); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
