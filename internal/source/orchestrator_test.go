package source

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vaxpulse/internal/contracts"
	"github.com/wonny/vaxpulse/pkg/logger"
)

// fakePrimary answers from fixed rows or fails with err
type fakePrimary struct {
	records []contracts.DailyRecord
	manu    []contracts.ManufacturerRow
	err     error
}

func (p *fakePrimary) Countries(ctx context.Context) ([]string, error) {
	if p.err != nil {
		return nil, p.err
	}
	var names []string
	seen := map[string]bool{}
	for _, r := range p.records {
		if !seen[r.Country] {
			seen[r.Country] = true
			names = append(names, r.Country)
		}
	}
	return names, nil
}

func (p *fakePrimary) VaccinationSeries(ctx context.Context, country string) ([]contracts.DailyRecord, error) {
	if p.err != nil {
		return nil, p.err
	}
	return forCountry(p.records, country), nil
}

func (p *fakePrimary) LastUpdated(ctx context.Context, country string) (*time.Time, error) {
	if p.err != nil {
		return nil, p.err
	}
	var latest *time.Time
	for _, r := range forCountry(p.records, country) {
		if r.HasTotal() && (latest == nil || r.Date.After(*latest)) {
			d := r.Date
			latest = &d
		}
	}
	return latest, nil
}

func (p *fakePrimary) AllVaccinations(ctx context.Context, from, to time.Time) ([]contracts.DailyRecord, error) {
	if p.err != nil {
		return nil, p.err
	}
	var out []contracts.DailyRecord
	for _, r := range p.records {
		if inRange(r.Date, from, to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *fakePrimary) ManufacturerRows(ctx context.Context, country string) ([]contracts.ManufacturerRow, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.manu, nil
}

// fakeFetcher serves a fixed payload and counts downloads
type fakeFetcher struct {
	records []contracts.DailyRecord
	err     error
	calls   int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]contracts.DailyRecord, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.records, f.err
}

func (f *fakeFetcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

var errConnRefused = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

func externalPayload() []contracts.DailyRecord {
	return []contracts.DailyRecord{
		rec("Wakanda", "WAK", "2023-01-10", 100),
		rec("Wakanda", "WAK", "2023-02-05", 150),
		rec("Atlantis", "ATL", "2023-01-15", 40),
		{Country: "Atlantis", IsoCode: "ATL", Date: day("2023-02-20")},
	}
}

func newTestOrchestrator(primary Primary, fetcher *fakeFetcher, opts Options) *Orchestrator {
	if opts.ExternalURL == "" {
		opts.ExternalURL = testURL
	}
	cache := NewPayloadCache(DefaultCacheTTL, newFakeClock().Now, logger.Nop())
	return NewOrchestrator(primary, fetcher, cache, opts, logger.Nop())
}

func TestOrchestrator_PrimaryAnswers(t *testing.T) {
	primary := &fakePrimary{records: []contracts.DailyRecord{rec("Wakanda", "WAK", "2023-01-10", 100)}}
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(primary, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: true})

	got, origin, err := o.Series(context.Background(), "Wakanda")
	require.NoError(t, err)
	assert.Equal(t, contracts.OriginPrimary, origin)
	assert.Len(t, got, 1)
	assert.Equal(t, 0, fetcher.Calls())
}

// Scenario D: empty primary answer with fallback disabled is an empty result, not an error
func TestOrchestrator_EmptyWithoutFallback(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{}, fetcher, Options{FallbackEnabled: false, FallbackOnEmpty: true})

	got, origin, err := o.Series(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, contracts.OriginPrimary, origin)
	assert.Equal(t, 0, fetcher.Calls())
}

// Scenario E: primary down, fallback enabled, external source unreachable
func TestOrchestrator_PrimaryDownExternalUnreachable(t *testing.T) {
	cause := fmt.Errorf("%w: GET %s: dial tcp: lookup example.test: no such host", contracts.ErrExternalFetchFailed, testURL)
	fetcher := &fakeFetcher{err: cause}
	o := newTestOrchestrator(&fakePrimary{err: errConnRefused}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: true})

	_, origin, err := o.Series(context.Background(), "Wakanda")
	require.Error(t, err)
	assert.Equal(t, contracts.OriginFallback, origin)
	assert.True(t, errors.Is(err, contracts.ErrExternalFetchFailed))
	assert.False(t, errors.Is(err, contracts.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "no such host")

	var se *contracts.SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, OpSeries, se.Op)
	assert.Equal(t, "Wakanda", se.Country)
}

func TestOrchestrator_PrimaryDownWithoutFallback(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{err: errConnRefused}, fetcher, Options{FallbackEnabled: false})

	_, _, err := o.Countries(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrSourceUnavailable))
	assert.True(t, errors.Is(err, errConnRefused))
	assert.Equal(t, 0, fetcher.Calls())
}

func TestOrchestrator_MalformedFallbackPayload(t *testing.T) {
	fetcher := &fakeFetcher{err: &contracts.MalformedPayloadError{Missing: []string{"iso_code"}}}
	o := newTestOrchestrator(&fakePrimary{err: errConnRefused}, fetcher, Options{FallbackEnabled: true})

	_, _, err := o.WorldRecords(context.Background(), time.Time{}, time.Time{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrMalformedExternalPayload))
	assert.Contains(t, err.Error(), "iso_code")
}

func TestOrchestrator_FallbackOnEmpty(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: true})

	got, origin, err := o.Series(context.Background(), "Wakanda")
	require.NoError(t, err)
	assert.Equal(t, contracts.OriginFallback, origin)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "Wakanda", r.Country)
	}
}

func TestOrchestrator_FallbackOnEmptyDisabled(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: false})

	got, origin, err := o.Series(context.Background(), "Wakanda")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, contracts.OriginPrimary, origin)
	assert.Equal(t, 0, fetcher.Calls())

	// failures still fall back
	o = newTestOrchestrator(&fakePrimary{err: errConnRefused}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: false})
	got, origin, err = o.Series(context.Background(), "Wakanda")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, contracts.OriginFallback, origin)
}

func TestOrchestrator_FallbackReusesCachedPayload(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{err: errConnRefused}, fetcher, Options{FallbackEnabled: true})

	_, _, err := o.Countries(context.Background())
	require.NoError(t, err)
	_, _, err = o.Series(context.Background(), "Atlantis")
	require.NoError(t, err)
	_, _, err = o.LastUpdated(context.Background(), "Wakanda")
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.Calls())
}

func TestOrchestrator_NoPrimaryConfigured(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(nil, fetcher, Options{FallbackEnabled: true})

	names, origin, err := o.Countries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.OriginFallback, origin)
	assert.Equal(t, []string{"Atlantis", "Wakanda"}, names)

	_, _, err = o.Manufacturers(context.Background(), "Wakanda")
	assert.True(t, errors.Is(err, contracts.ErrSourceUnavailable))
}

func TestOrchestrator_LastUpdatedFallback(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: true})

	got, origin, err := o.LastUpdated(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, contracts.OriginFallback, origin)
	require.NotNil(t, got)
	// 2023-02-20 has no total
	assert.Equal(t, day("2023-01-15"), *got)

	got, _, err = o.LastUpdated(context.Background(), "Genovia")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOrchestrator_WorldRecordsRange(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: true})

	got, origin, err := o.WorldRecords(context.Background(), day("2023-02-01"), day("2023-02-28"))
	require.NoError(t, err)
	assert.Equal(t, contracts.OriginFallback, origin)
	assert.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, time.February, r.Date.Month())
	}
}

func TestOrchestrator_ManufacturersNeverFallBack(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{err: errConnRefused}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: true})

	_, origin, err := o.Manufacturers(context.Background(), "Wakanda")
	require.Error(t, err)
	assert.Equal(t, contracts.OriginPrimary, origin)
	assert.True(t, errors.Is(err, contracts.ErrSourceUnavailable))

	// empty stays empty
	o = newTestOrchestrator(&fakePrimary{}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: true})
	rows, _, err := o.Manufacturers(context.Background(), "Wakanda")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 0, fetcher.Calls())
}

func TestOrchestrator_QualityNeverFallsBack(t *testing.T) {
	fetcher := &fakeFetcher{records: externalPayload()}
	o := newTestOrchestrator(&fakePrimary{}, fetcher, Options{FallbackEnabled: true, FallbackOnEmpty: true})

	records, origin, err := o.QualityRecords(context.Background(), "Wakanda")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, contracts.OriginPrimary, origin)
	assert.Equal(t, 0, fetcher.Calls())
}
