package campaign

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
// Guarded updates run under one lock, matching the Postgres store's
// single-statement atomicity.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[string]Campaign
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]Campaign{}, clock: time.Now}
}

// Put seeds or replaces a campaign. Test/setup helper standing in for the
// out-of-scope send path.
func (s *MemoryStore) Put(c Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock().UTC()
	}
	c.UpdatedAt = s.clock().UTC()
	s.byID[c.ID] = c
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) CompareAndUpdateCounters(ctx context.Context, id string, delta CounterDelta) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if c.Status != StatusSending {
		return false, nil
	}
	if c.CounterTotal() >= c.ContactCount {
		return false, nil
	}

	sent := clamp(c.SentCount+delta.Sent, c.ContactCount)
	delivered := clamp(c.DeliveredCount+delta.Delivered, c.ContactCount)
	failed := clamp(c.FailedCount+delta.Failed, c.ContactCount)

	// All-or-nothing: a partially-capped update would silently shift counts
	// between buckets, so the whole delta is discarded instead.
	if sent+delivered+failed > c.ContactCount {
		return false, nil
	}

	c.SentCount = sent
	c.DeliveredCount = delivered
	c.FailedCount = failed
	c.ActualCostMinor += delta.CostMinor
	c.Progress = ProgressFor(c.CounterTotal(), c.ContactCount)
	c.UpdatedAt = s.clock().UTC()
	s.byID[id] = c
	return true, nil
}

func (s *MemoryStore) Finalize(ctx context.Context, id string, tally FinalTally) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if c.Status != StatusSending {
		return false, nil
	}

	c.SentCount = clamp(tally.Sent, c.ContactCount)
	c.DeliveredCount = clamp(tally.Delivered, c.ContactCount)
	c.FailedCount = clamp(tally.Failed, c.ContactCount)
	if c.CounterTotal() > c.ContactCount {
		// Authoritative tally exceeding the physical bound means upstream
		// seeded more messages than contacts; prefer the bound.
		c.FailedCount = clamp(c.ContactCount-c.SentCount-c.DeliveredCount, c.ContactCount)
	}
	c.ActualCostMinor = tally.CostMinor
	c.Progress = 100
	c.Status = StatusCompleted
	now := s.clock().UTC()
	c.CompletedAt = &now
	c.UpdatedAt = now
	s.byID[id] = c
	return true, nil
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
