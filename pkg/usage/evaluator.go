package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joelbyler272/naturescripts-sub001/pkg/enum"
)

// Evaluator decides whether a user may start another consultation this week.
type Evaluator struct {
	store           Store
	freeWeeklyLimit int
	loc             *time.Location
	now             func() time.Time
}

type Option func(e *Evaluator)

func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

func NewEvaluator(store Store, freeWeeklyLimit int, opts ...Option) (*Evaluator, error) {
	if store == nil {
		return nil, errors.New("usage store is required")
	}
	if freeWeeklyLimit < 0 {
		return nil, fmt.Errorf("free weekly limit must not be negative, got %d", freeWeeklyLimit)
	}

	e := &Evaluator{
		store:           store,
		freeWeeklyLimit: freeWeeklyLimit,
		loc:             time.UTC,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

func (e *Evaluator) WeeklyLimit(tier enum.Tier) int {
	if tier == enum.Pro {
		return Unlimited
	}
	return e.freeWeeklyLimit
}

// CurrentWeekStart is the bucket every read and increment addresses right now.
func (e *Evaluator) CurrentWeekStart() time.Time {
	return WeekStart(e.now(), e.loc)
}

func (e *Evaluator) CheckCanConsult(ctx context.Context, userID string) (Status, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return Status{}, err
	}

	tier, err := e.store.GetTier(ctx, userID)
	if err != nil {
		return Status{}, storeErr("read tier", err)
	}

	weekStart := e.CurrentWeekStart()
	count, err := e.store.GetWeeklyCount(ctx, userID, weekStart)
	if err != nil {
		return Status{}, storeErr("read weekly count", err)
	}

	limit := e.WeeklyLimit(tier)
	return Status{
		CurrentCount: count,
		WeeklyLimit:  limit,
		Remaining:    remaining(count, limit),
		Tier:         tier,
		CanConsult:   canConsult(count, limit),
	}, nil
}

// IncrementUsage records one consultation in the current week. It reports the new count and
// whether another consultation fits; it never lifts the cap.
func (e *Evaluator) IncrementUsage(ctx context.Context, userID string) (Increment, error) {
	userID, err := normalizeUserID(userID)
	if err != nil {
		return Increment{}, err
	}

	tier, err := e.store.GetTier(ctx, userID)
	if err != nil {
		return Increment{}, storeErr("read tier", err)
	}

	weekStart := e.CurrentWeekStart()
	count, err := e.store.IncrementWeeklyCount(ctx, userID, weekStart)
	if err != nil {
		return Increment{}, storeErr("increment weekly count", err)
	}

	slog.Debug("consultation usage incremented", "user_id", userID, "week", WeekKey(weekStart), "count", count)

	return Increment{
		Count:      count,
		CanConsult: canConsult(count, e.WeeklyLimit(tier)),
	}, nil
}

// Consume counts one consultation only if it still fits the user's weekly limit. The returned
// Status reflects the counter after the call; consumed is false when the limit was already reached.
func (e *Evaluator) Consume(ctx context.Context, userID string) (status Status, consumed bool, err error) {
	userID, err = normalizeUserID(userID)
	if err != nil {
		return Status{}, false, err
	}

	tier, err := e.store.GetTier(ctx, userID)
	if err != nil {
		return Status{}, false, storeErr("read tier", err)
	}

	weekStart := e.CurrentWeekStart()
	limit := e.WeeklyLimit(tier)

	var count int
	switch {
	case limit == Unlimited:
		count, err = e.store.IncrementWeeklyCount(ctx, userID, weekStart)
		consumed = err == nil
	case limit == 0:
		count, err = e.store.GetWeeklyCount(ctx, userID, weekStart)
	default:
		count, consumed, err = e.store.IncrementWeeklyCountBelow(ctx, userID, weekStart, limit)
	}
	if err != nil {
		return Status{}, false, storeErr("consume weekly count", err)
	}

	slog.Debug("consultation usage consumed", "user_id", userID, "week", WeekKey(weekStart), "count", count, "consumed", consumed)

	return Status{
		CurrentCount: count,
		WeeklyLimit:  limit,
		Remaining:    remaining(count, limit),
		Tier:         tier,
		CanConsult:   canConsult(count, limit),
	}, consumed, nil
}

func normalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUserID
	}
	return userID, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}
