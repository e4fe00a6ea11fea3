package usage

import (
	"context"
	"sync"
	"time"

	"github.com/joelbyler272/naturescripts-sub001/pkg/enum"
)

// MemoryStore keeps counters in process memory. It is meant for local runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	tiers  map[string]enum.Tier
	counts map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tiers:  make(map[string]enum.Tier),
		counts: make(map[string]int),
	}
}

func memoryCountKey(userID string, weekStart time.Time) string {
	return userID + ":" + WeekKey(weekStart)
}

func (m *MemoryStore) GetTier(_ context.Context, userID string) (enum.Tier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiers[userID], nil
}

func (m *MemoryStore) SetTier(_ context.Context, userID string, tier enum.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tiers[userID] = tier
	return nil
}

func (m *MemoryStore) GetWeeklyCount(_ context.Context, userID string, weekStart time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[memoryCountKey(userID, weekStart)], nil
}

func (m *MemoryStore) IncrementWeeklyCount(_ context.Context, userID string, weekStart time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryCountKey(userID, weekStart)
	m.counts[key]++
	return m.counts[key], nil
}

func (m *MemoryStore) IncrementWeeklyCountBelow(_ context.Context, userID string, weekStart time.Time, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryCountKey(userID, weekStart)
	if m.counts[key] >= limit {
		return m.counts[key], false, nil
	}
	m.counts[key]++
	return m.counts[key], true, nil
}
