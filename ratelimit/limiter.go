// Package ratelimit caps how often one client address may hit an endpoint
// within a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/mbolis/quick-forms/fault"
)

type Limiter struct {
	Store  CounterStore
	Scope  string
	Window time.Duration
	Max    int
	Now    func() time.Time

	// serializes prune/count/record within the process
	mu sync.Mutex
}

func New(store CounterStore, scope string, limit int, window time.Duration) *Limiter {
	return &Limiter{Store: store, Scope: scope, Window: window, Max: limit, Now: time.Now}
}

// Allow records a hit for addr, or fails with a rate limited fault when addr
// already used up its window.
func (l *Limiter) Allow(ctx context.Context, addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	key := l.Scope + ":" + addr

	if err := l.Store.Prune(ctx, key, now.Add(-l.Window)); err != nil {
		return fault.Internal("ratelimit.prune", err)
	}
	n, err := l.Store.Count(ctx, key)
	if err != nil {
		return fault.Internal("ratelimit.count", err)
	}
	if n >= l.Max {
		return fault.RateLimited(l.RetryAfter())
	}
	if err := l.Store.Increment(ctx, key, now); err != nil {
		return fault.Internal("ratelimit.increment", err)
	}
	return nil
}

// RetryAfter is the window length in whole seconds, rounded up.
func (l *Limiter) RetryAfter() int {
	return int((l.Window + time.Second - 1) / time.Second)
}
