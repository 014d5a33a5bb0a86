package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const statusKey = "social-agent:auth_status"

// NewCache connects to Redis; callers tolerate a nil client (cache disabled).
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// AuthStatusCache keeps the aggregate per-platform auth status for a short TTL so
// the status endpoint doesn't hit every platform's identity endpoint on each poll.
// A miss always triggers the live verification round-trips.
type AuthStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAuthStatusCache(client *redis.Client) *AuthStatusCache {
	return &AuthStatusCache{client: client, ttl: 30 * time.Second}
}

func (c *AuthStatusCache) Get(ctx context.Context) (map[string]bool, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, statusKey).Bytes()
	if err != nil {
		return nil, false
	}
	status := map[string]bool{}
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, false
	}
	return status, true
}

func (c *AuthStatusCache) Set(ctx context.Context, status map[string]bool) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(status)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, statusKey, data, c.ttl).Err()
}

// Invalidate drops the cached aggregate, used after a successful token exchange.
func (c *AuthStatusCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, statusKey).Err()
}
