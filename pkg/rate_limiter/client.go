package rate_limiter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joelbyler272/naturescripts-sub001/pkg/config"
)

// Client maps endpoint classes (policy names from the config file) to their limiters.
type Client struct {
	rateLimiters map[string]RateLimiter
}

// New configures one limiter per named rate limit. Misconfigured policies fail here, not at check time.
func New(storage Configurer, rateLimits map[string]config.RateLimitConfig) (*Client, error) {
	c := &Client{
		rateLimiters: make(map[string]RateLimiter, len(rateLimits)),
	}

	for name, rl := range rateLimits {
		limiter, err := storage.Configure(Policy{
			Window:      rl.Window,
			MaxRequests: rl.MaxRequests,
		})
		if err != nil {
			return nil, fmt.Errorf("rate limit %q: %w", name, err)
		}
		c.rateLimiters[name] = limiter
	}

	return c, nil
}

func (c *Client) limiter(policyName string) (RateLimiter, error) {
	rl, ok := c.rateLimiters[policyName]
	if !ok {
		rl, ok = c.rateLimiters[config.DefaultRateLimitKey]
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, policyName)
	}
	return rl, nil
}

// HasPolicy reports whether policyName is configured explicitly.
func (c *Client) HasPolicy(policyName string) bool {
	_, ok := c.rateLimiters[policyName]
	return ok
}

func (c *Client) CheckRateLimit(ctx context.Context, identifier, policyName string) (Result, error) {
	rl, err := c.limiter(policyName)
	if err != nil {
		return Result{}, err
	}

	res, err := rl.Check(ctx, identifier)
	if err != nil {
		slog.Error("rate limit check failed", "identifier", identifier, "policy", policyName, "error", err)
		return Result{}, err
	}

	return res, nil
}

func (c *Client) Reset(ctx context.Context, identifier, policyName string) error {
	rl, err := c.limiter(policyName)
	if err != nil {
		return err
	}
	return rl.Reset(ctx, identifier)
}

func (c *Client) Peek(ctx context.Context, identifier, policyName string) (Entry, bool, error) {
	rl, err := c.limiter(policyName)
	if err != nil {
		return Entry{}, false, err
	}
	return rl.Peek(ctx, identifier)
}
