package redis

import (
	"context"
	"fmt"
	"time"

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

	return NewWithClient(client), nil
}

func NewWithClient(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

// Allow reserves key for ttl using SETNX. It returns false together with the
// remaining wait while an earlier reservation is still alive.
func (r *RedisRepo) Allow(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	const op = "storage.redis.Allow"

	key = cooldownKey(key)

	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		return true, 0, nil
	}

	left, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%s: %w", op, err)
	}
	if left < 0 {
		left = ttl
	}

	return false, left, nil
}

// Reset drops a reservation, e.g. when the guarded action failed.
func (r *RedisRepo) Reset(ctx context.Context, key string) error {
	const op = "storage.redis.Reset"

	if err := r.client.Del(ctx, cooldownKey(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepo) Close() {
	r.client.Close()
}

func cooldownKey(key string) string {
	return "cooldown:" + key
}
