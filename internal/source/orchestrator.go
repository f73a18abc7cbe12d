// Package source decides which data source answers a KPI request.
//
// The primary store is always asked first. When it fails, or answers with no rows, and
// fallback is enabled, the external bulk dataset is used instead through a time-boxed
// cache. Manufacturer and quality lookups never fall back.
package source

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/wonny/vaxpulse/internal/contracts"
	"github.com/wonny/vaxpulse/internal/kpi"
	"github.com/wonny/vaxpulse/pkg/config"
	"github.com/wonny/vaxpulse/pkg/logger"
)

// Operation names used in errors and logs
const (
	OpCountries     = "countries"
	OpSeries        = "series"
	OpLastUpdated   = "last_updated"
	OpWorld         = "world_map"
	OpManufacturers = "manufacturers"
	OpQuality       = "quality"
)

var errNoPrimary = errors.New("primary store not configured")

// Primary is the primary-store query capability
type Primary interface {
	Countries(ctx context.Context) ([]string, error)
	VaccinationSeries(ctx context.Context, country string) ([]contracts.DailyRecord, error)
	// LastUpdated returns nil when the country has no reported total
	LastUpdated(ctx context.Context, country string) (*time.Time, error)
	// AllVaccinations returns every country's rows; zero bounds are open
	AllVaccinations(ctx context.Context, from, to time.Time) ([]contracts.DailyRecord, error)
	ManufacturerRows(ctx context.Context, country string) ([]contracts.ManufacturerRow, error)
}

// Fetcher downloads the external bulk dataset
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]contracts.DailyRecord, error)
}

// Options are the fallback toggles
type Options struct {
	ExternalURL     string
	FallbackEnabled bool
	// FallbackOnEmpty makes an empty primary answer fall back too (only with FallbackEnabled)
	FallbackOnEmpty bool
}

// OptionsFromConfig extracts the fallback toggles from the app config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ExternalURL:     cfg.Source.ExternalURL,
		FallbackEnabled: cfg.Source.FallbackEnabled,
		FallbackOnEmpty: cfg.Source.FallbackOnEmpty,
	}
}

// Orchestrator runs the primary/fallback protocol for each data request
// ⭐ SSOT: primary → fallback 전환 판단은 여기서만
type Orchestrator struct {
	primary Primary
	fetcher Fetcher
	cache   *PayloadCache
	opts    Options
	logger  *logger.Logger
}

// NewOrchestrator creates an orchestrator. primary may be nil when no store is configured;
// every primary query then counts as failed.
func NewOrchestrator(primary Primary, fetcher Fetcher, cache *PayloadCache, opts Options, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		primary: primary,
		fetcher: fetcher,
		cache:   cache,
		opts:    opts,
		logger:  log,
	}
}

// Options returns the active fallback toggles
func (o *Orchestrator) Options() Options {
	return o.opts
}

// Countries lists country names in ascending order
func (o *Orchestrator) Countries(ctx context.Context) ([]string, contracts.Origin, error) {
	return resolve(ctx, o, OpCountries, "",
		func(ctx context.Context, p Primary) ([]string, error) {
			return p.Countries(ctx)
		},
		func(v []string) bool { return len(v) == 0 },
		func(records []contracts.DailyRecord) []string {
			names := lo.Uniq(lo.Map(records, func(r contracts.DailyRecord, _ int) string {
				return r.Country
			}))
			sort.Strings(names)
			return names
		},
	)
}

// Series returns the daily vaccination rows of one country
func (o *Orchestrator) Series(ctx context.Context, country string) ([]contracts.DailyRecord, contracts.Origin, error) {
	return resolve(ctx, o, OpSeries, country,
		func(ctx context.Context, p Primary) ([]contracts.DailyRecord, error) {
			return p.VaccinationSeries(ctx, country)
		},
		func(v []contracts.DailyRecord) bool { return len(v) == 0 },
		func(records []contracts.DailyRecord) []contracts.DailyRecord {
			return forCountry(records, country)
		},
	)
}

// LastUpdated returns the latest date with a reported total, or nil when there is none
func (o *Orchestrator) LastUpdated(ctx context.Context, country string) (*time.Time, contracts.Origin, error) {
	return resolve(ctx, o, OpLastUpdated, country,
		func(ctx context.Context, p Primary) (*time.Time, error) {
			return p.LastUpdated(ctx, country)
		},
		func(v *time.Time) bool { return v == nil },
		func(records []contracts.DailyRecord) *time.Time {
			latest, ok := kpi.LatestDate(forCountry(records, country))
			if !ok {
				return nil
			}
			return &latest
		},
	)
}

// WorldRecords returns every country's rows within [from, to]. Zero bounds are open.
func (o *Orchestrator) WorldRecords(ctx context.Context, from, to time.Time) ([]contracts.DailyRecord, contracts.Origin, error) {
	return resolve(ctx, o, OpWorld, "",
		func(ctx context.Context, p Primary) ([]contracts.DailyRecord, error) {
			return p.AllVaccinations(ctx, from, to)
		},
		func(v []contracts.DailyRecord) bool { return len(v) == 0 },
		func(records []contracts.DailyRecord) []contracts.DailyRecord {
			return lo.Filter(records, func(r contracts.DailyRecord, _ int) bool {
				return inRange(r.Date, from, to)
			})
		},
	)
}

// Manufacturers returns the manufacturer rows of one country. The bulk source has no
// manufacturer breakdown, so there is no fallback.
func (o *Orchestrator) Manufacturers(ctx context.Context, country string) ([]contracts.ManufacturerRow, contracts.Origin, error) {
	if o.primary == nil {
		return nil, contracts.OriginPrimary, contracts.NewSourceError(contracts.ErrSourceUnavailable, OpManufacturers, country, errNoPrimary)
	}

	rows, err := o.primary.ManufacturerRows(ctx, country)
	if err != nil {
		return nil, contracts.OriginPrimary, contracts.NewSourceError(contracts.ErrSourceUnavailable, OpManufacturers, country, err)
	}
	return rows, contracts.OriginPrimary, nil
}

// QualityRecords returns the primary store's own rows of one country. Quality is
// measured against the primary store only, so there is no fallback.
func (o *Orchestrator) QualityRecords(ctx context.Context, country string) ([]contracts.DailyRecord, contracts.Origin, error) {
	if o.primary == nil {
		return nil, contracts.OriginPrimary, contracts.NewSourceError(contracts.ErrSourceUnavailable, OpQuality, country, errNoPrimary)
	}

	records, err := o.primary.VaccinationSeries(ctx, country)
	if err != nil {
		return nil, contracts.OriginPrimary, contracts.NewSourceError(contracts.ErrSourceUnavailable, OpQuality, country, err)
	}
	return records, contracts.OriginPrimary, nil
}

// resolve asks the primary store and falls back to the external payload when allowed
func resolve[T any](
	ctx context.Context,
	o *Orchestrator,
	op, country string,
	query func(context.Context, Primary) (T, error),
	empty func(T) bool,
	derive func([]contracts.DailyRecord) T,
) (T, contracts.Origin, error) {
	var zero T

	var (
		value T
		err   error
	)
	if o.primary == nil {
		err = errNoPrimary
	} else {
		value, err = query(ctx, o.primary)
	}

	switch {
	case err == nil && !empty(value):
		return value, contracts.OriginPrimary, nil
	case err == nil && !(o.opts.FallbackEnabled && o.opts.FallbackOnEmpty):
		return value, contracts.OriginPrimary, nil
	case err != nil && !o.opts.FallbackEnabled:
		return zero, contracts.OriginPrimary, contracts.NewSourceError(contracts.ErrSourceUnavailable, op, country, err)
	}

	transition := o.logger.WithFields(map[string]interface{}{
		"op":      op,
		"country": country,
		"url":     o.opts.ExternalURL,
	})
	if err != nil {
		transition.WithError(err).Warn("Primary store failed, switching to fallback source")
	} else {
		transition.WithField("reason", "empty").Info("Primary store returned no rows, switching to fallback source")
	}

	records, hit, ferr := o.fallback(ctx)
	if ferr != nil {
		kind := contracts.ErrExternalFetchFailed
		if errors.Is(ferr, contracts.ErrMalformedExternalPayload) {
			kind = contracts.ErrMalformedExternalPayload
		}
		return zero, contracts.OriginFallback, contracts.NewSourceError(kind, op, country, ferr)
	}

	transition.WithFields(map[string]interface{}{
		"cache_hit": hit,
		"records":   len(records),
	}).Debug("Fallback source answered")

	return derive(records), contracts.OriginFallback, nil
}

func (o *Orchestrator) fallback(ctx context.Context) ([]contracts.DailyRecord, bool, error) {
	url := o.opts.ExternalURL
	return o.cache.Get(ctx, url, func(ctx context.Context) ([]contracts.DailyRecord, error) {
		return o.fetcher.Fetch(ctx, url)
	})
}

func forCountry(records []contracts.DailyRecord, country string) []contracts.DailyRecord {
	return lo.Filter(records, func(r contracts.DailyRecord, _ int) bool {
		return r.Country == country
	})
}

func inRange(date, from, to time.Time) bool {
	if !from.IsZero() && date.Before(from) {
		return false
	}
	if !to.IsZero() && date.After(to) {
		return false
	}
	return true
}
