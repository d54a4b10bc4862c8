package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"restaurant_booking_backend/pkg/utils"
)

// NewRedisClient connects to Redis. It returns nil when addr is empty or the server does not answer,
// and callers fall back to in-memory structures.
func NewRedisClient(ctx context.Context, addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		utils.LogWarn("redis unavailable, using in-memory dedup", map[string]interface{}{"addr": addr, "error": err.Error()})
		_ = client.Close()
		return nil
	}
	utils.LogInfo("connected to redis", map[string]interface{}{"addr": addr})
	return client
}

// RedisDeduper shares processed event ids across instances with SET NX.
type RedisDeduper struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// NewRedisDeduper creates a deduper storing keys under prefix.
func NewRedisDeduper(client *redis.Client, window time.Duration, prefix string) *RedisDeduper {
	if prefix == "" {
		prefix = "booking:event:"
	}
	return &RedisDeduper{client: client, window: window, prefix: prefix}
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	ok, err := d.client.SetNX(ctx, d.prefix+id, 1, d.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX %s: %w", id, err)
	}
	return ok, nil
}
