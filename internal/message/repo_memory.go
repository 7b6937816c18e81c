package message

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
// Compare-and-set semantics match the Postgres store: the guarded update
// happens under one lock, so only one racer can win per transition.
type MemoryStore struct {
	mu    sync.Mutex
	byID  map[string]Message
	byKey map[string]string // provider key -> id
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  map[string]Message{},
		byKey: map[string]string{},
		clock: time.Now,
	}
}

// Put seeds or replaces a message. Test/setup helper standing in for the
// out-of-scope send path.
func (s *MemoryStore) Put(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.clock().UTC()
	}
	m.UpdatedAt = s.clock().UTC()
	s.byID[m.ID] = m
	if m.ProviderMessageID != "" {
		s.byKey[m.ProviderMessageID] = m.ID
	}
}

// Get returns a copy by id. Test helper.
func (s *MemoryStore) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	return m, ok
}

func (s *MemoryStore) FindByProviderKey(ctx context.Context, key string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return Message{}, ErrNotFound
	}
	m, ok := s.byID[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, id string, expectFrom Status, upd StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status != expectFrom {
		return false, nil
	}

	m.Status = upd.NewStatus
	if m.DeliveredAt == nil && upd.DeliveredAt != nil {
		m.DeliveredAt = upd.DeliveredAt
	}
	if m.FailedAt == nil && upd.FailedAt != nil {
		m.FailedAt = upd.FailedAt
	}
	rep := upd.Report
	m.LastReport = &rep
	m.UpdatedAt = s.clock().UTC()
	s.byID[id] = m
	return true, nil
}

func (s *MemoryStore) CountByStatus(ctx context.Context, campaignID string) (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[Status]int{}
	for _, m := range s.byID {
		if m.CampaignID != campaignID {
			continue
		}
		out[m.Status]++
	}
	return out, nil
}

func (s *MemoryStore) SumCostByStatus(ctx context.Context, campaignID string, status Status) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum int64
	for _, m := range s.byID {
		if m.CampaignID != campaignID || m.Status != status {
			continue
		}
		sum += m.CostMinor
	}
	return sum, nil
}
