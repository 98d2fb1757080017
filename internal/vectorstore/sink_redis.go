package vectorstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshot stores the snapshot under a single Redis key.
type RedisSnapshot struct {
	client *redis.Client
	key    string
}

func NewRedisSnapshot(client *redis.Client, key string) *RedisSnapshot {
	if key == "" {
		key = "gomemory:vectors"
	}
	return &RedisSnapshot{client: client, key: key}
}

func (r *RedisSnapshot) Location() string { return "redis:" + r.key }

func (r *RedisSnapshot) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	return data, err
}

func (r *RedisSnapshot) Write(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func (r *RedisSnapshot) Size(ctx context.Context) (int64, error) {
	n, err := r.client.StrLen(ctx, r.key).Result()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrSnapshotNotFound
	}
	return n, nil
}
