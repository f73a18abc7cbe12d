package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/vaxpulse/pkg/config"
)

// connectTimeout bounds the startup ping
const connectTimeout = 3 * time.Second

// Client is the Redis connection shared by the payload cache and the fetch limiter.
//
// A disabled Client (REDIS_ENABLED=false, or NewDisabled) is a valid value, not an error:
// Cache reads miss and writes succeed without effect, RateLimiter always allows,
// Redis returns nil and Close does nothing. Callers never branch on nil.
// ⭐ SSOT: Redis 연결은 여기서만 관리
type Client struct {
	rdb *redis.Client // nil when disabled
}

// NewDisabled returns an inert client
func NewDisabled() *Client {
	return &Client{}
}

// New connects to Redis when REDIS_ENABLED is set and returns an inert client otherwise.
// An enabled but unreachable server is an error.
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return NewDisabled(), nil
	}

	rdb := redis.NewClient(options(cfg.Redis))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed (%s): %w", rdb.Options().Addr, err)
	}

	return &Client{rdb: rdb}, nil
}

func options(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// Enabled reports whether commands reach a Redis server
func (c *Client) Enabled() bool {
	return c.rdb != nil
}

// Addr returns the server address, empty when disabled
func (c *Client) Addr() string {
	if !c.Enabled() {
		return ""
	}
	return c.rdb.Options().Addr
}

// Close closes the connection. No-op when disabled.
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

// Redis returns the underlying client, nil when disabled
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
