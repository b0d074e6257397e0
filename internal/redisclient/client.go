package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

// ErrLockNotAcquired indicates the workflow lock is held elsewhere
var ErrLockNotAcquired = errors.New("lock not acquired")

// Client wraps Redis for the two concerns the service needs: the
// cross-instance workflow lock and a part-quantity cache for cheap reads.
type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
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

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock acquires a named lock with a TTL, retrying briefly. The
// returned token must be passed to ReleaseLock.
func (c *Client) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, error) {
	key := fmt.Sprintf("lock:%s", name)
	token := uuid.New().String()

	for attempt := 0; attempt < 5; attempt++ {
		ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("lock %s: %w", name, err)
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLockNotAcquired, name)
}

// ReleaseLock releases a lock if it is still held by token. Releasing a
// lock that expired or was taken over is a no-op.
func (c *Client) ReleaseLock(ctx context.Context, name, token string) error {
	key := fmt.Sprintf("lock:%s", name)
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{key}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// CachePartQuantity records a part's on-hand quantity for cheap reads
func (c *Client) CachePartQuantity(ctx context.Context, partID string, quantity int) error {
	return c.rdb.HSet(ctx, "parts:quantity", partID, quantity).Err()
}

// GetPartQuantity returns the cached quantity for a part
func (c *Client) GetPartQuantity(ctx context.Context, partID string) (int, bool, error) {
	val, err := c.rdb.HGet(ctx, "parts:quantity", partID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	qty, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cached quantity for part %s: %w", partID, err)
	}
	return qty, true, nil
}

// SyncPartQuantities replaces the whole quantity cache in one pipeline
func (c *Client) SyncPartQuantities(ctx context.Context, quantities map[string]int) error {
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, "parts:quantity")
	for partID, qty := range quantities {
		pipe.HSet(ctx, "parts:quantity", partID, qty)
	}
	_, err := pipe.Exec(ctx)
	return err
}
