package ratelimit

import (
	"context"
	"time"
)

// CounterStore keeps the hit timestamps of each key.
type CounterStore interface {
	// Increment records one hit on key at the given time.
	Increment(ctx context.Context, key string, at time.Time) error
	// Prune forgets the hits on key that happened before the given time.
	Prune(ctx context.Context, key string, before time.Time) error
	Count(ctx context.Context, key string) (int, error)
}
