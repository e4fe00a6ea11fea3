package rate_limiter

import (
	"context"
	"strings"
	"time"
)

// FixedWindow is the in-memory limiter handed out by MemoryStorage. It never returns an error.
type FixedWindow struct {
	table *table
	now   func() time.Time
}

func normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return UnknownIdentifier
	}
	return identifier
}

// Check counts one request for identifier. A denied request leaves the entry untouched.
func (fw *FixedWindow) Check(_ context.Context, identifier string) (Result, error) {
	return fw.table.hit(normalizeIdentifier(identifier), fw.now()), nil
}

func (fw *FixedWindow) Reset(_ context.Context, identifier string) error {
	fw.table.delete(normalizeIdentifier(identifier))
	return nil
}

func (fw *FixedWindow) Peek(_ context.Context, identifier string) (Entry, bool, error) {
	entry, ok := fw.table.get(normalizeIdentifier(identifier))
	return entry, ok, nil
}

func (fw *FixedWindow) Policy() Policy {
	return fw.table.policy
}
