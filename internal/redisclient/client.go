package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock takes a short advisory lock, used to narrow the window between
// a conflict check and the matching write on one property. The database's
// exclusion constraint remains the real guarantee.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases an advisory lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// MarkEventSeen caches a processed webhook event id with a TTL so duplicate
// deliveries can be skipped without a database round trip.
func (c *Client) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("webhook-event:%s", eventID), "1", ttl).Err()
}

// WasEventSeen checks the processed-event cache. A miss is not authoritative;
// callers fall back to the processed_events table.
func (c *Client) WasEventSeen(ctx context.Context, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf("webhook-event:%s", eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CacheCheckoutSession stores the provider session reference for a booking so
// a pending checkout can be surfaced to the client on reload.
func (c *Client) CacheCheckoutSession(ctx context.Context, bookingID int64, sessionRef string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("checkout:%d", bookingID), sessionRef, ttl).Err()
}

// GetCheckoutSession retrieves a cached checkout session reference, returning
// "" when absent or expired.
func (c *Client) GetCheckoutSession(ctx context.Context, bookingID int64) (string, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("checkout:%d", bookingID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}
