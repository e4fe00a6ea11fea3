package usage

import (
	"context"
	"time"

	"github.com/joelbyler272/naturescripts-sub001/pkg/enum"
)

// Store persists per-user weekly counters keyed by (user id, ISO week start) and user tiers.
// IncrementWeeklyCount must be a single atomic operation on the store side.
// IncrementWeeklyCountBelow increments only while the counter is below limit, in one atomic step,
// and returns the resulting count either way. limit is always positive.
type Store interface {
	GetTier(ctx context.Context, userID string) (enum.Tier, error)
	SetTier(ctx context.Context, userID string, tier enum.Tier) error
	GetWeeklyCount(ctx context.Context, userID string, weekStart time.Time) (int, error)
	IncrementWeeklyCount(ctx context.Context, userID string, weekStart time.Time) (int, error)
	IncrementWeeklyCountBelow(ctx context.Context, userID string, weekStart time.Time, limit int) (int, bool, error)
}
