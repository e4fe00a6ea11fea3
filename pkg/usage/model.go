package usage

import (
	"errors"

	"github.com/joelbyler272/naturescripts-sub001/pkg/enum"
)

// Unlimited is the weekly limit and remaining count reported for unbounded tiers.
const Unlimited = -1

var (
	// ErrStore wraps every failure talking to the counter store. It never means "limit reached".
	ErrStore         = errors.New("usage store failure")
	ErrInvalidUserID = errors.New("user id is required")
)

type Status struct {
	CurrentCount int       `json:"current_count"`
	WeeklyLimit  int       `json:"weekly_limit"`
	Remaining    int       `json:"remaining"`
	Tier         enum.Tier `json:"tier"`
	CanConsult   bool      `json:"can_consult"`
}

type Increment struct {
	Count      int  `json:"count"`
	CanConsult bool `json:"can_consult"`
}

func canConsult(count, limit int) bool {
	return limit == Unlimited || count < limit
}

func remaining(count, limit int) int {
	if limit == Unlimited {
		return Unlimited
	}
	return max(0, limit-count)
}
