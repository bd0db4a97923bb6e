package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares hits between processes: one sorted set per key, scored
// by hit time in milliseconds.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	seq    atomic.Uint64
}

// NewRedisStore expires idle keys after ttl, which should be at least the
// longest window the store serves.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:", ttl: ttl}
}

// ConnectRedis parses a redis:// URL and checks the server answers.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Increment(ctx context.Context, key string, at time.Time) error {
	k := s.prefix + key
	// members must be unique or hits in the same millisecond collapse
	member := strconv.FormatInt(at.UnixNano(), 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixMilli()), Member: member})
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Prune(ctx context.Context, key string, before time.Time) error {
	upper := "(" + strconv.FormatInt(before.UnixMilli(), 10)
	return s.client.ZRemRangeByScore(ctx, s.prefix+key, "-inf", upper).Err()
}

func (s *RedisStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.client.ZCard(ctx, s.prefix+key).Result()
	return int(n), err
}
