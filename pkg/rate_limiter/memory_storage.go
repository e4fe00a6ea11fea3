package rate_limiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStorage owns the in-process counter tables, one per policy key, and their sweepers.
// Counters are per process: several replicas each count their own traffic.
type MemoryStorage struct {
	mu      sync.Mutex
	tables  map[string]*table
	now     func() time.Time
	sweep   bool
	onSweep func(policy Policy, removed int)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type MemoryOption func(m *MemoryStorage)

func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStorage) {
		m.now = now
	}
}

// WithoutSweeper disables the background cleanup goroutines.
func WithoutSweeper() MemoryOption {
	return func(m *MemoryStorage) {
		m.sweep = false
	}
}

func WithSweepObserver(fn func(policy Policy, removed int)) MemoryOption {
	return func(m *MemoryStorage) {
		m.onSweep = fn
	}
}

func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryStorage{
		tables: make(map[string]*table),
		now:    time.Now,
		sweep:  true,
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Configure returns a limiter over the shared table of the policy, creating it on first use.
func (m *MemoryStorage) Configure(policy Policy) (RateLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStorageClosed
	}

	key := policy.Key()
	t, ok := m.tables[key]
	if !ok {
		t = &table{
			policy:  policy,
			entries: make(map[string]Entry),
		}
		m.tables[key] = t
		slog.Debug("created rate limit table", "policy", key)

		if m.sweep {
			m.wg.Add(1)
			go m.runSweeper(t)
		}
	}

	return &FixedWindow{table: t, now: m.now}, nil
}

func (m *MemoryStorage) runSweeper(t *table) {
	defer m.wg.Done()

	ticker := time.NewTicker(t.policy.Window)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			removed := t.sweep(m.now())
			if removed > 0 {
				slog.Debug("swept expired rate limit entries", "policy", t.policy.Key(), "removed", removed)
			}
			if m.onSweep != nil {
				m.onSweep(t.policy, removed)
			}
		}
	}
}

// Sweep removes expired entries from every table and returns how many were removed.
func (m *MemoryStorage) Sweep() int {
	m.mu.Lock()
	tables := make([]*table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.Unlock()

	var (
		now     = m.now()
		removed int
	)
	for _, t := range tables {
		removed += t.sweep(now)
	}
	return removed
}

// Close stops the sweepers and waits for them to exit. Limiters already handed out keep working.
func (m *MemoryStorage) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

type table struct {
	mu      sync.Mutex
	policy  Policy
	entries map[string]Entry
}

func (t *table) hit(identifier string, now time.Time) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	limit := t.policy.MaxRequests
	entry, ok := t.entries[identifier]
	if !ok || !now.Before(entry.ResetTime) {
		t.entries[identifier] = Entry{
			Count:     1,
			ResetTime: now.Add(t.policy.Window),
		}
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1}
	}

	if entry.Count >= limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: entry.ResetTime.Sub(now)}
	}

	entry.Count++
	t.entries[identifier] = entry
	return Result{Allowed: true, Limit: limit, Remaining: limit - entry.Count}
}

func (t *table) get(identifier string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[identifier]
	return entry, ok
}

func (t *table) delete(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, identifier)
}

func (t *table) sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for identifier, entry := range t.entries {
		if !now.Before(entry.ResetTime) {
			delete(t.entries, identifier)
			removed++
		}
	}
	return removed
}

func (t *table) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
