package rate_limiter

import (
	"context"
)

// RateLimiter is a limiter bound to one Policy.
type RateLimiter interface {
	Check(ctx context.Context, identifier string) (Result, error)
	Reset(ctx context.Context, identifier string) error
	Peek(ctx context.Context, identifier string) (Entry, bool, error)
	Policy() Policy
}

// Configurer hands out limiters for a policy.
type Configurer interface {
	Configure(policy Policy) (RateLimiter, error)
}
