package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/vaxpulse/internal/contracts"
	"github.com/wonny/vaxpulse/pkg/logger"
	"github.com/wonny/vaxpulse/pkg/redis"
)

// DefaultCacheTTL is the freshness window of a fetched external payload
const DefaultCacheTTL = 600 * time.Second

// Clock returns the current time
type Clock func() time.Time

// SharedStore is an optional second cache level shared between replicas.
// *redis.Cache satisfies it.
type SharedStore interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// FetchFunc downloads and parses one payload
type FetchFunc func(ctx context.Context) ([]contracts.DailyRecord, error)

// cacheEntry is replaced as a whole, never mutated in place
type cacheEntry struct {
	FetchedAt time.Time               `json:"fetched_at"`
	Records   []contracts.DailyRecord `json:"records"`
}

// PayloadCache keeps parsed external payloads for a fixed freshness window.
// Concurrent refreshes of the same key share one fetch.
// ⭐ SSOT: fallback payload 캐시는 여기서만
type PayloadCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	clock   Clock
	group   singleflight.Group
	shared  SharedStore
	logger  *logger.Logger
}

// NewPayloadCache creates a cache with the given TTL. A nil clock means time.Now.
func NewPayloadCache(ttl time.Duration, clock Clock, log *logger.Logger) *PayloadCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &PayloadCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		clock:   clock,
		logger:  log,
	}
}

// WithSharedStore adds a second cache level (Redis) behind the in-memory one
func (c *PayloadCache) WithSharedStore(store SharedStore) *PayloadCache {
	c.shared = store
	return c
}

// TTL returns the freshness window
func (c *PayloadCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the payload cached under key while it is fresh; otherwise it calls fetch.
// hit reports whether the payload came from cache. A failed fetch leaves the previous
// entry untouched.
//
// Callers of the same key share one fetch. The shared fetch does not inherit the
// cancellation of whichever caller started it; fetch must bound itself. A caller whose
// ctx ends stops waiting and gets ctx.Err(), the others still receive the payload.
func (c *PayloadCache) Get(ctx context.Context, key string, fetch FetchFunc) (records []contracts.DailyRecord, hit bool, err error) {
	if entry, ok := c.fresh(key); ok {
		return entry.Records, true, nil
	}

	type result struct {
		records []contracts.DailyRecord
		hit     bool
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// another flight may have refreshed the entry meanwhile
		if entry, ok := c.fresh(key); ok {
			return result{records: entry.Records, hit: true}, nil
		}

		if entry, ok := c.loadShared(flightCtx, key); ok {
			c.store(key, entry)
			return result{records: entry.Records, hit: true}, nil
		}

		fetched, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}

		entry := &cacheEntry{FetchedAt: c.clock(), Records: fetched}
		c.store(key, entry)
		c.saveShared(flightCtx, key, entry)

		return result{records: fetched}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		res := r.Val.(result)
		return res.records, res.hit, nil
	}
}

// Invalidate drops the entry for key from both cache levels.
// The next Get downloads the payload again.
func (c *PayloadCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.shared == nil {
		return nil
	}
	if err := c.shared.Delete(ctx, redis.PayloadKey(key)); err != nil {
		return fmt.Errorf("invalidate shared payload %s: %w", key, err)
	}
	return nil
}

func (c *PayloadCache) fresh(key string) (*cacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.isFresh(entry) {
		return nil, false
	}
	return entry, true
}

func (c *PayloadCache) isFresh(entry *cacheEntry) bool {
	return c.clock().Sub(entry.FetchedAt) < c.ttl
}

func (c *PayloadCache) store(key string, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// loadShared reads the shared level. Errors there only cost a download.
func (c *PayloadCache) loadShared(ctx context.Context, key string) (*cacheEntry, bool) {
	if c.shared == nil {
		return nil, false
	}

	var entry cacheEntry
	found, err := c.shared.Get(ctx, redis.PayloadKey(key), &entry)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Shared payload cache read failed")
		return nil, false
	}
	if !found || !c.isFresh(&entry) {
		return nil, false
	}

	c.logger.WithField("key", key).Debug("Payload served from shared cache")
	return &entry, true
}

func (c *PayloadCache) saveShared(ctx context.Context, key string, entry *cacheEntry) {
	if c.shared == nil {
		return
	}

	if err := c.shared.Set(ctx, redis.PayloadKey(key), entry, c.ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Shared payload cache write failed")
	}
}
