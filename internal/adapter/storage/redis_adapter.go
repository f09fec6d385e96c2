package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockroom/allocator/internal/core/domain"
)

const (
	locationKeyPrefix = "location:"
	requestKeyPrefix  = "request:"

	// Duplicate request tokens are rejected for this long after the first
	// request.
	idempotencyKeyTTL = 10 * time.Minute
)

type RedisAdapter struct {
	client   *redis.Client
	cacheTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, cacheTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, cacheTTL: cacheTTL}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, requestKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) GetLocation(ctx context.Context, locationID string) ([]domain.Lot, bool, error) {
	raw, err := r.client.Get(ctx, locationKeyPrefix+locationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var lots []domain.Lot
	if err := json.Unmarshal(raw, &lots); err != nil {
		// Unreadable entry: treat as a miss so the caller refills it.
		return nil, false, nil
	}

	return lots, true, nil
}

func (r *RedisAdapter) SetLocation(ctx context.Context, locationID string, lots []domain.Lot) error {
	raw, err := json.Marshal(lots)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, locationKeyPrefix+locationID, raw, r.cacheTTL).Err()
}

func (r *RedisAdapter) InvalidateLocation(ctx context.Context, locationID string) error {
	return r.client.Del(ctx, locationKeyPrefix+locationID).Err()
}
