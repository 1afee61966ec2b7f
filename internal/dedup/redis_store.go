// Package dedup remembers recently ingested transcript ids so at-least-once
// webhook deliveries do not duplicate task rows.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 7 * 24 * time.Hour

// RedisGuard implements the replay guard using Redis.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisGuard creates a Redis-backed replay guard.
func NewRedisGuard(redisURL string) (*RedisGuard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisGuard{
		client: client,
		prefix: "transcript:",
		ttl:    defaultTTL,
	}, nil
}

// NewRedisGuardWithClient creates a guard from an existing Redis client.
func NewRedisGuardWithClient(client *redis.Client) *RedisGuard {
	return &RedisGuard{
		client: client,
		prefix: "transcript:",
		ttl:    defaultTTL,
	}
}

func (g *RedisGuard) key(transcriptID string) string {
	return g.prefix + transcriptID
}

// Seen reports whether a transcript id was marked within the retention window.
func (g *RedisGuard) Seen(ctx context.Context, transcriptID string) (bool, error) {
	exists, err := g.client.Exists(ctx, g.key(transcriptID)).Result()
	if err != nil {
		return false, fmt.Errorf("check transcript id: %w", err)
	}
	return exists > 0, nil
}

// Mark records a transcript id with the retention TTL.
func (g *RedisGuard) Mark(ctx context.Context, transcriptID string) error {
	if err := g.client.Set(ctx, g.key(transcriptID), time.Now().UTC().Format(time.RFC3339), g.ttl).Err(); err != nil {
		return fmt.Errorf("mark transcript id: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// Ping checks if Redis is reachable.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
