package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "docintake"

// Redis stores each value as a JSON object under docintake:{collection}:{key}.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// DialRedis parses url, connects and pings.
func DialRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client}, nil
}

func redisKey(collection, key string) string {
	return redisKeyPrefix + ":" + collection + ":" + key
}

// Put writes fields as JSON.
func (r *Redis) Put(ctx context.Context, collection, key string, fields map[string]string) error {
	data, err := json.Marshal(clone(fields))
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, key, err)
	}
	if err := r.client.Set(ctx, redisKey(collection, key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get reads and decodes the JSON stored for key.
func (r *Redis) Get(ctx context.Context, collection, key string) (map[string]string, error) {
	data, err := r.client.Get(ctx, redisKey(collection, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s/%s: %w", collection, key, err)
	}
	fields := map[string]string{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return fields, nil
}

// Health pings the server.
func (r *Redis) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
