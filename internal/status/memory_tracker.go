package status

import (
	"context"
	"sync"
	"time"
)

// MemoryTracker keeps states in process memory. Used when no Redis is configured.
type MemoryTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Entry
	counts  map[string]int64
}

// NewMemoryTracker creates a tracker whose entries expire after ttl.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
		counts:  make(map[string]int64),
	}
}

// Record stores the latest state for requestID.
func (m *MemoryTracker) Record(_ context.Context, requestID string, state State, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictLocked(now)
	m.entries[requestID] = Entry{
		RequestID: requestID,
		State:     state,
		Detail:    detail,
		UpdatedAt: now,
	}
	if state.Terminal() {
		m.counts[string(state)]++
	}
	return nil
}

// Lookup returns the latest state for requestID.
func (m *MemoryTracker) Lookup(_ context.Context, requestID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[requestID]
	if !ok || m.now().Sub(e.UpdatedAt) > m.ttl {
		return nil, ErrNotFound
	}
	return &e, nil
}

// Stats returns terminal state counters.
func (m *MemoryTracker) Stats(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]int64{
		string(StateCompleted): m.counts[string(StateCompleted)],
		string(StateFailed):    m.counts[string(StateFailed)],
	}, nil
}

// Close is a no-op.
func (m *MemoryTracker) Close() error {
	return nil
}

func (m *MemoryTracker) evictLocked(now time.Time) {
	for id, e := range m.entries {
		if now.Sub(e.UpdatedAt) > m.ttl {
			delete(m.entries, id)
		}
	}
}
