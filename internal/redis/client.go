package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/auctionalerts/auction-alert-system/internal/config"
	"github.com/auctionalerts/auction-alert-system/internal/models"
)

// Client wraps the Redis client with alert-specific operations
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Tracking token resolution

// SetTokenRedirect caches the redirect URL for a tracking token so repeat
// clicks skip the database.
func (c *Client) SetTokenRedirect(ctx context.Context, token, url string, ttl time.Duration) error {
	key := fmt.Sprintf("alert:token:%s:url", token)
	return c.rdb.Set(ctx, key, url, ttl).Err()
}

// GetTokenRedirect retrieves a cached redirect URL for a token.
func (c *Client) GetTokenRedirect(ctx context.Context, token string) (string, error) {
	key := fmt.Sprintf("alert:token:%s:url", token)
	return c.rdb.Get(ctx, key).Result()
}

// Outcome stats snapshot

// SetOutcomeStats caches the latest aggregated outcome stats with TTL.
func (c *Client) SetOutcomeStats(ctx context.Context, windowDays int, stats *models.OutcomeStats, ttl time.Duration) error {
	key := fmt.Sprintf("outcomes:stats:%dd", windowDays)
	jsonData, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome stats: %w", err)
	}
	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

// GetOutcomeStats retrieves cached outcome stats.
func (c *Client) GetOutcomeStats(ctx context.Context, windowDays int) (*models.OutcomeStats, error) {
	key := fmt.Sprintf("outcomes:stats:%dd", windowDays)
	jsonData, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var stats models.OutcomeStats
	if err := json.Unmarshal(jsonData, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome stats: %w", err)
	}
	return &stats, nil
}

// Generic operations

// Set stores a value with optional TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a string value
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Delete removes a key
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// IsMiss reports whether err is a cache miss rather than a real failure.
func IsMiss(err error) bool {
	return err == redis.Nil
}
