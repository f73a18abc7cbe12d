package owid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wonny/vaxpulse/internal/contracts"
	"github.com/wonny/vaxpulse/pkg/httputil"
	"github.com/wonny/vaxpulse/pkg/logger"
	"github.com/wonny/vaxpulse/pkg/redis"
)

// FetchLimiter is a download budget shared across replicas.
// *redis.RateLimiter satisfies it.
type FetchLimiter interface {
	Wait(ctx context.Context, cfg redis.RateLimitConfig) error
}

// Client downloads the OWID bulk vaccinations dataset
// ⭐ SSOT: 외부 bulk source 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	timeout    time.Duration

	limiter     FetchLimiter
	limit       int
	limitWindow time.Duration
}

// NewClient creates a new bulk-source client. Every fetch is bounded by timeout.
func NewClient(httpClient *httputil.Client, log *logger.Logger, timeout time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		timeout:    timeout,
	}
}

// WithFetchLimit allows at most limit downloads of the same URL per window,
// counted across every process sharing the limiter
func (c *Client) WithFetchLimit(limiter FetchLimiter, limit int, window time.Duration) *Client {
	c.limiter = limiter
	c.limit = limit
	c.limitWindow = window
	return c
}

// Fetch downloads and parses the payload at url.
// Network errors, timeouts and non-2xx answers match contracts.ErrExternalFetchFailed;
// an unusable payload matches contracts.ErrMalformedExternalPayload.
func (c *Client) Fetch(ctx context.Context, url string) ([]contracts.DailyRecord, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()

	if c.limiter != nil {
		budget := redis.FetchRateLimit(url, c.limit, c.limitWindow)
		if err := c.limiter.Wait(ctx, budget); err != nil {
			return nil, fmt.Errorf("%w: GET %s: shared fetch budget: %w", contracts.ErrExternalFetchFailed, url, err)
		}
	}

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", contracts.ErrExternalFetchFailed, url, err)
	}
	defer resp.Body.Close()

	if !httputil.IsSuccess(resp.StatusCode) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: GET %s: unexpected status code %d: %s",
			contracts.ErrExternalFetchFailed, url, resp.StatusCode, string(body))
	}

	payload, err := Parse(resp.Body)
	if err != nil {
		if errors.Is(err, contracts.ErrMalformedExternalPayload) {
			return nil, fmt.Errorf("GET %s: %w", url, err)
		}
		return nil, fmt.Errorf("%w: GET %s: %w", contracts.ErrExternalFetchFailed, url, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"url":      url,
		"records":  len(payload.Rows),
		"dropped":  payload.Dropped,
		"duration": time.Since(start),
	}).Info("Fetched external payload")

	return payload.Records(), nil
}
