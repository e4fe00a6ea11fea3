package rate_limiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryStorage(t *testing.T, clock *fakeClock) *MemoryStorage {
	m := NewMemoryStorage(WithClock(clock.Now), WithoutSweeper())
	t.Cleanup(m.Close)
	return m
}

func configure(t *testing.T, m *MemoryStorage, window time.Duration, maxRequests int) RateLimiter {
	rl, err := m.Configure(Policy{Window: window, MaxRequests: maxRequests})
	require.NoError(t, err)
	return rl
}

func TestMemoryStorage_Configure_RejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name          string
		policy        Policy
		expectedError error
	}{
		{
			name:          "zero window",
			policy:        Policy{Window: 0, MaxRequests: 3},
			expectedError: ErrInvalidWindow,
		},
		{
			name:          "negative window",
			policy:        Policy{Window: -time.Second, MaxRequests: 3},
			expectedError: ErrInvalidWindow,
		},
		{
			name:          "sub millisecond window",
			policy:        Policy{Window: time.Microsecond, MaxRequests: 3},
			expectedError: ErrInvalidWindow,
		},
		{
			name:          "zero max requests",
			policy:        Policy{Window: time.Minute, MaxRequests: 0},
			expectedError: ErrInvalidMaxRequests,
		},
		{
			name:          "negative max requests",
			policy:        Policy{Window: time.Minute, MaxRequests: -1},
			expectedError: ErrInvalidMaxRequests,
		},
	}

	m := newTestMemoryStorage(t, newFakeClock())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, err := m.Configure(tt.policy)
			require.ErrorIs(t, err, tt.expectedError)
			assert.Nil(t, rl)
		})
	}
}

func TestFixedWindow_Check_Scenario(t *testing.T) {
	clock := newFakeClock()
	rl := configure(t, newTestMemoryStorage(t, clock), 60*time.Second, 3)
	ctx := context.Background()

	for i, wantRemaining := range []int{2, 1, 0} {
		res, err := rl.Check(ctx, "ip-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d", i+1)
		assert.Equal(t, wantRemaining, res.Remaining, "call %d", i+1)
		assert.Equal(t, int64(0), res.RetryAfterMs(), "call %d", i+1)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := rl.Check(ctx, "ip-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, int64(60000), res.RetryAfterMs())

	clock.Advance(60 * time.Second)

	res, err = rl.Check(ctx, "ip-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)

	entry, ok, err := rl.Peek(ctx, "ip-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, entry.Count)
}

func TestFixedWindow_Check_NeverAllowsMoreThanMaxRequestsPerWindow(t *testing.T) {
	tests := []struct {
		maxRequests int
		calls       int
	}{
		{maxRequests: 1, calls: 10},
		{maxRequests: 5, calls: 5},
		{maxRequests: 5, calls: 50},
		{maxRequests: 100, calls: 250},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d calls=%d", tt.maxRequests, tt.calls), func(t *testing.T) {
			clock := newFakeClock()
			rl := configure(t, newTestMemoryStorage(t, clock), time.Minute, tt.maxRequests)

			allowed := 0
			for i := 0; i < tt.calls; i++ {
				res, err := rl.Check(context.Background(), "user-1")
				require.NoError(t, err)
				if res.Allowed {
					allowed++
				}
				clock.Advance(time.Millisecond)
			}

			assert.Equal(t, min(tt.calls, tt.maxRequests), allowed)
		})
	}
}

func TestFixedWindow_Check_DenialIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	rl := configure(t, newTestMemoryStorage(t, clock), time.Minute, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := rl.Check(ctx, "user-1")
		require.NoError(t, err)
	}

	before, _, _ := rl.Peek(ctx, "user-1")

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		res, err := rl.Check(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
	}

	after, _, _ := rl.Peek(ctx, "user-1")
	assert.Equal(t, before, after, "denied checks must not mutate the entry")

	res, _ := rl.Check(ctx, "user-1")
	assert.Equal(t, 55*time.Second, res.RetryAfter, "blocked caller polling does not extend the window")
}

func TestFixedWindow_Check_RolloverExtendsResetTime(t *testing.T) {
	clock := newFakeClock()
	rl := configure(t, newTestMemoryStorage(t, clock), time.Minute, 1)
	ctx := context.Background()

	_, _ = rl.Check(ctx, "user-1")
	first, _, _ := rl.Peek(ctx, "user-1")

	clock.Advance(90 * time.Second)
	res, _ := rl.Check(ctx, "user-1")
	require.True(t, res.Allowed)

	second, _, _ := rl.Peek(ctx, "user-1")
	assert.True(t, second.ResetTime.After(first.ResetTime))
	assert.Equal(t, 1, second.Count)
}

func TestFixedWindow_Reset(t *testing.T) {
	clock := newFakeClock()
	rl := configure(t, newTestMemoryStorage(t, clock), time.Minute, 2)
	ctx := context.Background()

	_, _ = rl.Check(ctx, "user-1")
	_, _ = rl.Check(ctx, "user-1")
	res, _ := rl.Check(ctx, "user-1")
	require.False(t, res.Allowed)

	require.NoError(t, rl.Reset(ctx, "user-1"))

	_, ok, _ := rl.Peek(ctx, "user-1")
	assert.False(t, ok)

	res, _ = rl.Check(ctx, "user-1")
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	require.NoError(t, rl.Reset(ctx, "never-seen"), "reset of a missing entry is a no-op")
}

func TestFixedWindow_Check_EmptyIdentifierFallsBackToUnknown(t *testing.T) {
	rl := configure(t, newTestMemoryStorage(t, newFakeClock()), time.Minute, 2)
	ctx := context.Background()

	_, _ = rl.Check(ctx, "")
	_, _ = rl.Check(ctx, "   ")

	entry, ok, _ := rl.Peek(ctx, UnknownIdentifier)
	require.True(t, ok)
	assert.Equal(t, 2, entry.Count)
}

func TestMemoryStorage_Configure_SharesTablesPerPolicy(t *testing.T) {
	m := newTestMemoryStorage(t, newFakeClock())
	ctx := context.Background()

	a := configure(t, m, time.Minute, 2)
	b := configure(t, m, time.Minute, 2)
	other := configure(t, m, time.Minute, 3)

	_, _ = a.Check(ctx, "user-1")
	res, _ := b.Check(ctx, "user-1")
	assert.Equal(t, 0, res.Remaining, "identical policies share counters")

	res, _ = other.Check(ctx, "user-1")
	assert.Equal(t, 2, res.Remaining, "different policies never collide")

	assert.Len(t, m.tables, 2)
}

func TestMemoryStorage_Sweep(t *testing.T) {
	clock := newFakeClock()
	m := newTestMemoryStorage(t, clock)
	ctx := context.Background()

	short := configure(t, m, time.Second, 5)
	long := configure(t, m, time.Hour, 5)

	for i := 0; i < 10; i++ {
		_, _ = short.Check(ctx, fmt.Sprintf("ip-%d", i))
	}
	_, _ = long.Check(ctx, "ip-0")

	assert.Equal(t, 0, m.Sweep(), "nothing expired yet")

	clock.Advance(time.Second)
	_, _ = short.Check(ctx, "ip-0")

	assert.Equal(t, 9, m.Sweep(), "only expired entries are removed")

	_, ok, _ := short.Peek(ctx, "ip-0")
	assert.True(t, ok, "entry renewed before the sweep survives")
	_, ok, _ = long.Peek(ctx, "ip-0")
	assert.True(t, ok)
}

func TestMemoryStorage_SweeperRunsInBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	var swept atomic.Int64
	m := NewMemoryStorage(WithSweepObserver(func(_ Policy, removed int) {
		swept.Add(int64(removed))
	}))

	rl, err := m.Configure(Policy{Window: 20 * time.Millisecond, MaxRequests: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _ = rl.Check(context.Background(), fmt.Sprintf("ip-%d", i))
	}

	require.Eventually(t, func() bool {
		return swept.Load() == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, rl.(*FixedWindow).table.size())

	m.Close()
	m.Close()

	_, err = m.Configure(Policy{Window: time.Second, MaxRequests: 1})
	require.ErrorIs(t, err, ErrStorageClosed)
}

func TestFixedWindow_Check_ConcurrentSafe(t *testing.T) {
	var (
		maxRequests = 50
		goroutines  = 200
		allowed     atomic.Int64
		wg          sync.WaitGroup
	)

	rl := configure(t, newTestMemoryStorage(t, newFakeClock()), time.Minute, maxRequests)

	for i := 0; i < goroutines; i++ {
		wg.Go(func() {
			res, err := rl.Check(context.Background(), "shared")
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int64(maxRequests), allowed.Load())

	entry, ok, _ := rl.Peek(context.Background(), "shared")
	require.True(t, ok)
	assert.Equal(t, maxRequests, entry.Count)
}

func TestResult_RetryAfterMs_RoundsUp(t *testing.T) {
	assert.Equal(t, int64(0), Result{}.RetryAfterMs())
	assert.Equal(t, int64(1), Result{RetryAfter: 10 * time.Microsecond}.RetryAfterMs())
	assert.Equal(t, int64(1500), Result{RetryAfter: 1500 * time.Millisecond}.RetryAfterMs())
}
