package redisclient

import (
	"context"
	"encoding/json"
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

// SetScanSession pins an operator session to the order it currently has
// open for scanning. The TTL bounds how long a forgotten session can keep
// routing scans to a stale order.
func (c *Client) SetScanSession(ctx context.Context, sessionID, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("scansession:%s", sessionID), orderID, ttl).Err()
}

// GetScanSession returns the order id the session has open, or "" when
// no session exists.
func (c *Client) GetScanSession(ctx context.Context, sessionID string) (string, error) {
	orderID, err := c.rdb.Get(ctx, fmt.Sprintf("scansession:%s", sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// ClearScanSession drops the session's open order.
func (c *Client) ClearScanSession(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("scansession:%s", sessionID)).Err()
}

// CacheOrderView stores a merged order view as JSON with a TTL. Postgres
// stays authoritative; the cache only serves cross-restart reads.
func (c *Client) CacheOrderView(ctx context.Context, orderID string, view interface{}, ttl time.Duration) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal order view: %w", err)
	}
	return c.rdb.Set(ctx, fmt.Sprintf("orderview:%s", orderID), data, ttl).Err()
}

// GetCachedOrderView loads a cached order view into dest. Returns false
// when the view is not cached.
func (c *Client) GetCachedOrderView(ctx context.Context, orderID string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("orderview:%s", orderID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal order view: %w", err)
	}
	return true, nil
}

// InvalidateOrderView drops a cached order view.
func (c *Client) InvalidateOrderView(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("orderview:%s", orderID)).Err()
}
