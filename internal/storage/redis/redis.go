package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// AllowCodeRequest opens a cooldown window for the (email, device) pair.
// SETNX is atomic, so only the first caller inside the window gets true;
// everyone else waits for the key to expire.
func (r *RedisRepo) AllowCodeRequest(ctx context.Context, email string, deviceID uuid.UUID, window time.Duration) (bool, error) {
	const op = "storage.redis.AllowCodeRequest"

	key := fmt.Sprintf("code:cooldown:%s:%s", email, deviceID)

	allowed, err := r.client.SetNX(ctx, key, "requested", window).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return allowed, nil
}

// ResetCodeRequest drops the cooldown, used when a request failed after the
// window was already claimed.
func (r *RedisRepo) ResetCodeRequest(ctx context.Context, email string, deviceID uuid.UUID) error {
	const op = "storage.redis.ResetCodeRequest"

	key := fmt.Sprintf("code:cooldown:%s:%s", email, deviceID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) Close() {
	r.client.Close()
}
