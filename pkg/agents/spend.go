// Package agents implements the budget and permission gateway that sits
// between workflows and the tools they call on a team's behalf.
package agents

import (
	"context"
	"sync"
	"time"
)

// SpendStore tracks accumulated agent spend per UTC day and month. There is
// no reservation step: callers check the totals and debit afterwards, so two
// concurrent calls can both pass a nearly-exhausted cap. Caps are advisory
// cost controls, not hard accounting.
type SpendStore interface {
	DailySpent(ctx context.Context, agentID string, day time.Time) (int64, error)
	MonthlySpent(ctx context.Context, agentID string, month time.Time) (int64, error)
	AddSpend(ctx context.Context, agentID string, at time.Time, cents int64) error

	// ResetDay zeroes the daily counter, used by the scheduled midnight
	// reset. Monthly counters roll over by key and never need resetting.
	ResetDay(ctx context.Context, agentID string, day time.Time) error

	Close() error
}

const (
	dayKeyFormat   = "2006-01-02"
	monthKeyFormat = "2006-01"
)

// MemorySpendStore keeps counters in process memory, for development and
// tests.
type MemorySpendStore struct {
	mu    sync.RWMutex
	daily map[string]int64
	month map[string]int64
}

func NewMemorySpendStore() *MemorySpendStore {
	return &MemorySpendStore{
		daily: make(map[string]int64),
		month: make(map[string]int64),
	}
}

func (s *MemorySpendStore) DailySpent(_ context.Context, agentID string, day time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.daily[agentID+":"+day.UTC().Format(dayKeyFormat)], nil
}

func (s *MemorySpendStore) MonthlySpent(_ context.Context, agentID string, month time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.month[agentID+":"+month.UTC().Format(monthKeyFormat)], nil
}

func (s *MemorySpendStore) AddSpend(_ context.Context, agentID string, at time.Time, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at = at.UTC()
	s.daily[agentID+":"+at.Format(dayKeyFormat)] += cents
	s.month[agentID+":"+at.Format(monthKeyFormat)] += cents

	return nil
}

func (s *MemorySpendStore) ResetDay(_ context.Context, agentID string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.daily, agentID+":"+day.UTC().Format(dayKeyFormat))

	return nil
}

func (s *MemorySpendStore) Close() error {
	return nil
}
