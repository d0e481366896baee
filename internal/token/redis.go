package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "fd:tokens:"

// RedisBackend keeps one hash per client. With a non-zero ttl the hash
// expires after it has not been written for that long.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) hashKey(clientID string) string {
	return redisKeyPrefix + clientID
}

func (b *RedisBackend) Get(ctx context.Context, clientID string, key Key) (string, error) {
	value, err := b.client.HGet(ctx, b.hashKey(clientID), string(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return value, nil
}

func (b *RedisBackend) Set(ctx context.Context, clientID string, key Key, value string) error {
	hk := b.hashKey(clientID)
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hk, string(key), value)
		if b.ttl > 0 {
			pipe.Expire(ctx, hk, b.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, clientID string, key Key) error {
	if err := b.client.HDel(ctx, b.hashKey(clientID), string(key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
