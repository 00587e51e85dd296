package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"todo-lifecycle/internal/models"
	"todo-lifecycle/pkg/logger"
)

// listsKey is a hash with one field per cached list.
const listsKey = "todos:lists"

// NewClient parses url, applies the pool size and pings the server.
func NewClient(ctx context.Context, url string, poolSize int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info(ctx, "Redis client initialized", "pool_size", opts.PoolSize)
	return client, nil
}

// TodoCache caches todo lists in Redis. A TodoCache without a client misses
// on every read and ignores writes, so callers never need to check for Redis.
type TodoCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTodoCache(client *redis.Client, ttl time.Duration) *TodoCache {
	return &TodoCache{client: client, ttl: ttl}
}

// GetList returns (nil, false) on miss or error.
func (c *TodoCache) GetList(ctx context.Context, list string) ([]models.Todo, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	b, err := c.client.HGet(ctx, listsKey, list).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get todos failed", "error", err, "list", list)
		return nil, false
	}
	var todos []models.Todo
	if err := json.Unmarshal(b, &todos); err != nil {
		logger.Debug(ctx, "Redis unmarshal todos failed", "error", err, "list", list)
		return nil, false
	}
	return todos, true
}

func (c *TodoCache) SetList(ctx context.Context, list string, todos []models.Todo) {
	if c == nil || c.client == nil {
		return
	}
	b, err := json.Marshal(todos)
	if err != nil {
		logger.Debug(ctx, "Marshal todos for cache failed", "error", err)
		return
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, listsKey, list, b)
		if c.ttl > 0 {
			pipe.Expire(ctx, listsKey, c.ttl)
		}
		return nil
	})
	if err != nil {
		logger.Debug(ctx, "Redis set todos failed", "error", err, "list", list)
	}
}

// Invalidate drops every cached list so the next read goes to the store.
func (c *TodoCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, listsKey).Err(); err != nil {
		logger.Debug(ctx, "Redis invalidate todos failed", "error", err)
	}
}
