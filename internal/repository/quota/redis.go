package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyTTL outlives the day a counter belongs to so lookups near midnight in
// any zone still see it.
const keyTTL = 48 * time.Hour

// RedisStore keeps counts in keys tgsearch:quota:{day}:{owner}.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func quotaKey(ownerID, day string) string {
	return fmt.Sprintf("tgsearch:quota:%s:%s", day, ownerID)
}

func (s *RedisStore) DailyRunCount(ctx context.Context, ownerID, day string) (int, error) {
	n, err := s.client.Get(ctx, quotaKey(ownerID, day)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get daily runs: %w", err)
	}
	return n, nil
}

func (s *RedisStore) IncrementDailyRunCount(ctx context.Context, ownerID, day string) error {
	key := quotaKey(ownerID, day)
	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, keyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment daily runs: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
