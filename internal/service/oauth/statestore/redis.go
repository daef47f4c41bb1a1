package statestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "oauth:state:"

// RedisStore keeps pending states in redis with a native TTL, shared across
// instances. The begin and the callback of one oauth flow may then land on
// different processes.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	err := s.client.Set(ctx, redisKeyPrefix+state, "pending", ttl).Err()
	if err != nil {
		return fmt.Errorf("persist oauth state: %w", err)
	}
	return nil
}

// Consume removes the state and reports whether it was pending.
// GETDEL makes lookup and removal one atomic step.
func (s *RedisStore) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, redisKeyPrefix+state).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("consume oauth state: %w", err)
	}
}
