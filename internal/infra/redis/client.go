// Package redis persists the verified auth snapshot so a restarted client
// can keep operating offline within the snapshot TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/shield/internal/core/domain"
)

const snapshotKey = "shield:auth:snapshot"

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps Redis operations for snapshot persistence.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Save stores the snapshot with an expiry matching its ExpiresAt, so redis
// can never serve a tuple past its TTL.
func (c *Client) Save(ctx context.Context, snap domain.CachedPrincipalSnapshot) error {
	ttl := time.Until(snap.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.rdb.Set(ctx, snapshotKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load fetches the persisted snapshot if one exists.
func (c *Client) Load(ctx context.Context) (domain.CachedPrincipalSnapshot, bool, error) {
	payload, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CachedPrincipalSnapshot{}, false, nil
	}
	if err != nil {
		return domain.CachedPrincipalSnapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap domain.CachedPrincipalSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.CachedPrincipalSnapshot{}, false, fmt.Errorf("invalid snapshot payload: %w", err)
	}
	return snap, true, nil
}

// Delete removes the persisted snapshot (logout, security events).
func (c *Client) Delete(ctx context.Context) error {
	if err := c.rdb.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
