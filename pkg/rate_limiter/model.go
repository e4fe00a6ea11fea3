package rate_limiter

import (
	"errors"
	"fmt"
	"time"
)

// UnknownIdentifier is used when the caller could not resolve a user id or client address.
const UnknownIdentifier = "unknown"

var (
	ErrInvalidWindow      = errors.New("rate limiter window must be at least one millisecond")
	ErrInvalidMaxRequests = errors.New("rate limiter max requests must be greater than zero")
	ErrUnknownPolicy      = errors.New("unknown rate limit policy")
	ErrStorageClosed      = errors.New("rate limiter storage is closed")
)

// Policy is a fixed-window rule. Limiters built from equal policies share counters.
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

func (p Policy) Validate() error {
	if p.Window.Milliseconds() <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWindow, p.Window)
	}

	if p.MaxRequests <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxRequests, p.MaxRequests)
	}

	return nil
}

// Key identifies the counter table of the policy.
func (p Policy) Key() string {
	return fmt.Sprintf("%d:%d", p.Window.Milliseconds(), p.MaxRequests)
}

type Entry struct {
	Count     int       `json:"count"`
	ResetTime time.Time `json:"reset_time"`
}

type Result struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"-"`
}

// RetryAfterMs rounds up so a denied result never reports zero.
func (r Result) RetryAfterMs() int64 {
	if r.RetryAfter <= 0 {
		return 0
	}
	return int64((r.RetryAfter + time.Millisecond - 1) / time.Millisecond)
}
