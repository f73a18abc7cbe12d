package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// waitInterval is the polling step of Wait while the window is full
const waitInterval = 100 * time.Millisecond

// slidingWindow admits a request when fewer than limit members remain in the window.
// Returns {allowed, remaining}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// RateLimiter is a sliding-window request budget shared by every process using the
// same Redis. On a disabled client every request is allowed.
// ⭐ SSOT: replica 간 공유 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
	now    func() time.Time
	seq    atomic.Uint64
}

// RateLimitConfig is one budget: at most Limit requests per Window under Key
type RateLimitConfig struct {
	Key    string
	Limit  int
	Window time.Duration
}

// FetchRateLimit is the budget of bulk downloads from one source URL
func FetchRateLimit(url string, limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Key:    "fetch:" + url,
		Limit:  limit,
		Window: window,
	}
}

// NewRateLimiter creates a limiter whose keys live under prefix
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *RateLimiter) key(cfg RateLimitConfig) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
}

// Allow records one request if the budget has room.
// Returns (allowed, remaining, error).
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() || cfg.Limit <= 0 {
		return true, cfg.Limit, nil
	}

	now := r.now()
	nowMs := now.UnixMilli()
	windowStart := nowMs - cfg.Window.Milliseconds()
	// unique per call so two requests in the same millisecond both count
	member := fmt.Sprintf("%d:%d", now.UnixNano(), r.seq.Add(1))

	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{r.key(cfg)},
		nowMs,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
		member,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(result))
	}

	return result[0] == 1, int(result[1]), nil
}

// Wait blocks until the budget admits a request or ctx ends
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		timer.Reset(waitInterval)
	}
}
