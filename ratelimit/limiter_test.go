package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mbolis/quick-forms/fault"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func stores() map[string]func(t *testing.T) CounterStore {
	return map[string]func(t *testing.T) CounterStore{
		"memory": func(t *testing.T) CounterStore {
			return NewMemoryStore()
		},
		"redis": func(t *testing.T) CounterStore {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return NewRedisStore(client, time.Hour)
		},
	}
}

func newLimiter(store CounterStore, limit int, window time.Duration) (*Limiter, *clock) {
	c := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := New(store, "test", limit, window)
	l.Now = c.Now
	return l, c
}

func TestLimiter_SlidingWindow(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, c := newLimiter(newStore(t), 2, 1000*time.Millisecond)

			for i := 0; i < 2; i++ {
				if err := l.Allow(ctx, "1.2.3.4"); err != nil {
					t.Fatalf("call %d: unexpected error: %v", i+1, err)
				}
				c.Advance(100 * time.Millisecond)
			}

			err := l.Allow(ctx, "1.2.3.4")
			fe := fault.As(err)
			if fe.Kind != fault.KindRateLimited {
				t.Fatalf("third call: expected rate limited, got %v", err)
			}
			if fe.RetryAfter != 1 {
				t.Errorf("expected retry after 1s, got %d", fe.RetryAfter)
			}

			if err := l.Allow(ctx, "5.6.7.8"); err != nil {
				t.Errorf("other addresses have their own window: %v", err)
			}

			// the first hit leaves the window, the second is still in it
			c.Advance(850 * time.Millisecond)
			if err := l.Allow(ctx, "1.2.3.4"); err != nil {
				t.Errorf("expected a slot once the first hit expired: %v", err)
			}
			if err := l.Allow(ctx, "1.2.3.4"); !fault.Is(err, fault.KindRateLimited) {
				t.Errorf("expected the window to be full again, got %v", err)
			}
		})
	}
}

func TestLimiter_RefusedCallsAreNotRecorded(t *testing.T) {
	for name, newStore := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			l, c := newLimiter(store, 1, time.Minute)

			if err := l.Allow(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < 5; i++ {
				c.Advance(10 * time.Second)
				if err := l.Allow(ctx, "a"); err == nil {
					t.Fatalf("call %d should be refused", i+2)
				}
			}
			if n, _ := store.Count(ctx, "test:a"); n != 1 {
				t.Errorf("refused calls must not extend the window, got %d hits", n)
			}

			c.Advance(11 * time.Second)
			if err := l.Allow(ctx, "a"); err != nil {
				t.Errorf("expected window to have slid past the only hit: %v", err)
			}
		})
	}
}

func TestLimiter_ScopesAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	signin := New(store, "signin", 1, time.Minute)
	submit := New(store, "submit", 1, time.Minute)
	ctx := context.Background()

	if err := signin.Allow(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := submit.Allow(ctx, "a"); err != nil {
		t.Errorf("scopes must not share counters: %v", err)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newLimiter(NewMemoryStore(), 10, time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(ctx, "a") == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("expected exactly 10 calls through, got %d", allowed)
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		window time.Duration
		want   int
	}{
		{1000 * time.Millisecond, 1},
		{1500 * time.Millisecond, 2},
		{15 * time.Minute, 900},
		{time.Hour, 3600},
	}
	for _, tt := range tests {
		l := New(NewMemoryStore(), "x", 1, tt.window)
		if got := l.RetryAfter(); got != tt.want {
			t.Errorf("RetryAfter(%s) = %d, want %d", tt.window, got, tt.want)
		}
	}
}

func TestMemoryStore_PruneDropsIdleKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Increment(ctx, "k", at)
	s.Prune(ctx, "k", at.Add(time.Second))

	if _, ok := s.hits["k"]; ok {
		t.Error("expected key to be dropped once empty")
	}
}
