package source

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vaxpulse/internal/contracts"
	"github.com/wonny/vaxpulse/pkg/logger"
)

// fakeClock is advanced by hand
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func day(s string) time.Time {
	t, err := time.Parse(contracts.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(country, iso, date string, total int64) contracts.DailyRecord {
	return contracts.DailyRecord{Country: country, IsoCode: iso, Date: day(date), CumulativeTotal: contracts.Int64Ptr(total)}
}

// countingFetch returns records and counts its calls
func countingFetch(records []contracts.DailyRecord, err error) (FetchFunc, *int32) {
	var calls int32
	return func(ctx context.Context) ([]contracts.DailyRecord, error) {
		atomic.AddInt32(&calls, 1)
		return records, err
	}, &calls
}

const testURL = "https://example.test/vaccinations.csv"

func TestPayloadCache_ReusesWithinTTL(t *testing.T) {
	clock := newFakeClock()
	cache := NewPayloadCache(600*time.Second, clock.Now, logger.Nop())
	payload := []contracts.DailyRecord{rec("Wakanda", "WAK", "2023-01-10", 100)}
	fetch, calls := countingFetch(payload, nil)

	got, hit, err := cache.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, payload, got)

	clock.Advance(599 * time.Second)
	got, hit, err = cache.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload, got)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	// after expiry exactly one new fetch
	clock.Advance(2 * time.Second)
	_, hit, err = cache.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	_, _, err = cache.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestPayloadCache_KeysAreIndependent(t *testing.T) {
	cache := NewPayloadCache(time.Minute, newFakeClock().Now, logger.Nop())
	fetch, calls := countingFetch(nil, nil)

	_, _, err := cache.Get(context.Background(), "a", fetch)
	require.NoError(t, err)
	_, _, err = cache.Get(context.Background(), "b", fetch)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestPayloadCache_FailureKeepsPreviousEntry(t *testing.T) {
	clock := newFakeClock()
	cache := NewPayloadCache(time.Minute, clock.Now, logger.Nop())
	payload := []contracts.DailyRecord{rec("Wakanda", "WAK", "2023-01-10", 100)}

	good, _ := countingFetch(payload, nil)
	_, _, err := cache.Get(context.Background(), testURL, good)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	boom := errors.New("connection reset")
	bad, badCalls := countingFetch([]contracts.DailyRecord{rec("Partial", "PRT", "2023-01-01", 1)}, boom)
	_, _, err = cache.Get(context.Background(), testURL, bad)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), atomic.LoadInt32(badCalls))

	// stale entry is still the last good payload; a new success replaces it
	fresh := []contracts.DailyRecord{rec("Wakanda", "WAK", "2023-02-10", 150)}
	next, _ := countingFetch(fresh, nil)
	got, hit, err := cache.Get(context.Background(), testURL, next)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, fresh, got)
}

func TestPayloadCache_ConcurrentRefreshSharesOneFetch(t *testing.T) {
	cache := NewPayloadCache(time.Minute, newFakeClock().Now, logger.Nop())

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]contracts.DailyRecord, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []contracts.DailyRecord{rec("Wakanda", "WAK", "2023-01-10", 100)}, nil
	}

	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			started.Done()
			_, _, err := cache.Get(context.Background(), testURL, fetch)
			assert.NoError(t, err)
		}()
	}

	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestPayloadCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	cache := NewPayloadCache(time.Minute, newFakeClock().Now, logger.Nop())
	payload := []contracts.DailyRecord{rec("Wakanda", "WAK", "2023-01-10", 100)}

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) ([]contracts.DailyRecord, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		select {
		case <-release:
			return payload, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := cache.Get(firstCtx, testURL, fetch)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		records []contracts.DailyRecord
		err     error
	}
	second := make(chan outcome, 1)
	go func() {
		records, _, err := cache.Get(context.Background(), testURL, fetch)
		second <- outcome{records: records, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, payload, got.records)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// the shared fetch completed and was cached for later callers
	records, hit, err := cache.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, payload, records)
}

func TestPayloadCache_Invalidate(t *testing.T) {
	cache := NewPayloadCache(time.Minute, newFakeClock().Now, logger.Nop())
	fetch, calls := countingFetch(nil, nil)

	_, _, _ = cache.Get(context.Background(), testURL, fetch)
	require.NoError(t, cache.Invalidate(context.Background(), testURL))
	_, _, _ = cache.Get(context.Background(), testURL, fetch)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestPayloadCache_InvalidateDropsSharedEntry(t *testing.T) {
	clock := newFakeClock()
	shared := newMemoryStore()
	payload := []contracts.DailyRecord{rec("Wakanda", "WAK", "2023-01-10", 100)}

	first := NewPayloadCache(time.Minute, clock.Now, logger.Nop()).WithSharedStore(shared)
	fetch, calls := countingFetch(payload, nil)
	_, _, err := first.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)

	require.NoError(t, first.Invalidate(context.Background(), testURL))

	second := NewPayloadCache(time.Minute, clock.Now, logger.Nop()).WithSharedStore(shared)
	_, hit, err := second.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestPayloadCache_InvalidateSharedError(t *testing.T) {
	shared := newMemoryStore()
	shared.err = errors.New("redis down")
	cache := NewPayloadCache(time.Minute, newFakeClock().Now, logger.Nop()).WithSharedStore(shared)

	err := cache.Invalidate(context.Background(), testURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestNewPayloadCache_Defaults(t *testing.T) {
	cache := NewPayloadCache(0, nil, logger.Nop())
	assert.Equal(t, DefaultCacheTTL, cache.TTL())
}

// memoryStore is a SharedStore backed by a map, JSON-encoded like Redis
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (s *memoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = raw
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.data, key)
	return nil
}

func TestPayloadCache_SharedStoreServesOtherReplica(t *testing.T) {
	clock := newFakeClock()
	shared := newMemoryStore()
	payload := []contracts.DailyRecord{rec("Wakanda", "WAK", "2023-01-10", 100)}

	first := NewPayloadCache(time.Minute, clock.Now, logger.Nop()).WithSharedStore(shared)
	fetch, calls := countingFetch(payload, nil)
	_, _, err := first.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)

	second := NewPayloadCache(time.Minute, clock.Now, logger.Nop()).WithSharedStore(shared)
	got, hit, err := second.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	require.Len(t, got, 1)
	assert.Equal(t, "Wakanda", got[0].Country)
	assert.Equal(t, int64(100), *got[0].CumulativeTotal)

	// a stale shared entry is not trusted
	clock.Advance(2 * time.Minute)
	third := NewPayloadCache(time.Minute, clock.Now, logger.Nop()).WithSharedStore(shared)
	_, hit, err = third.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestPayloadCache_SharedStoreErrorsFallThrough(t *testing.T) {
	shared := newMemoryStore()
	shared.err = errors.New("redis: connection refused")

	cache := NewPayloadCache(time.Minute, newFakeClock().Now, logger.Nop()).WithSharedStore(shared)
	fetch, calls := countingFetch([]contracts.DailyRecord{rec("Wakanda", "WAK", "2023-01-10", 100)}, nil)

	got, _, err := cache.Get(context.Background(), testURL, fetch)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}
