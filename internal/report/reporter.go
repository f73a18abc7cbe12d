// Package report produces one KPI output per call by combining the data source with
// the pure KPI engine. Every result carries the origin that served it.
package report

import (
	"context"
	"time"

	"github.com/wonny/vaxpulse/internal/contracts"
	"github.com/wonny/vaxpulse/internal/kpi"
)

// DataSource is the primary/fallback data access the reports read from.
// *source.Orchestrator satisfies it.
type DataSource interface {
	Countries(ctx context.Context) ([]string, contracts.Origin, error)
	Series(ctx context.Context, country string) ([]contracts.DailyRecord, contracts.Origin, error)
	LastUpdated(ctx context.Context, country string) (*time.Time, contracts.Origin, error)
	WorldRecords(ctx context.Context, from, to time.Time) ([]contracts.DailyRecord, contracts.Origin, error)
	Manufacturers(ctx context.Context, country string) ([]contracts.ManufacturerRow, contracts.Origin, error)
	QualityRecords(ctx context.Context, country string) ([]contracts.DailyRecord, contracts.Origin, error)
}

// Reporter builds KPI outputs
// ⭐ SSOT: KPI 산출물 조립은 여기서만
type Reporter struct {
	source DataSource
}

// NewReporter creates a new reporter
func NewReporter(source DataSource) *Reporter {
	return &Reporter{source: source}
}

// Countries lists the available countries
func (r *Reporter) Countries(ctx context.Context) ([]string, contracts.Origin, error) {
	return r.source.Countries(ctx)
}

// MonthlyGrowth returns the month-end totals and growth rates of a country
func (r *Reporter) MonthlyGrowth(ctx context.Context, country string) ([]contracts.GrowthPoint, contracts.Origin, error) {
	records, origin, err := r.source.Series(ctx, country)
	if err != nil {
		return nil, origin, err
	}
	return kpi.MonthlyGrowth(records), origin, nil
}

// ManufacturerShare returns the top manufacturers at the country's latest reporting date
func (r *Reporter) ManufacturerShare(ctx context.Context, country string) ([]contracts.ManufacturerSnapshotPoint, contracts.Origin, error) {
	rows, origin, err := r.source.Manufacturers(ctx, country)
	if err != nil {
		return nil, origin, err
	}
	return kpi.ManufacturerShare(rows, kpi.TopManufacturers), origin, nil
}

// Summary condenses the monthly growth series of a country
func (r *Reporter) Summary(ctx context.Context, country string) (contracts.KPISummary, contracts.Origin, error) {
	points, origin, err := r.MonthlyGrowth(ctx, country)
	if err != nil {
		return contracts.KPISummary{}, origin, err
	}
	return kpi.Summarize(points), origin, nil
}

// Quality measures the completeness of the primary store's series of a country
func (r *Reporter) Quality(ctx context.Context, country string) (contracts.QualitySummary, contracts.Origin, error) {
	records, origin, err := r.source.QualityRecords(ctx, country)
	if err != nil {
		return contracts.QualitySummary{Country: country}, origin, err
	}
	return kpi.Quality(country, records), origin, nil
}

// LastUpdated returns the latest date with a reported total, or nil
func (r *Reporter) LastUpdated(ctx context.Context, country string) (*time.Time, contracts.Origin, error) {
	return r.source.LastUpdated(ctx, country)
}

// WorldMap returns one value per country for metric over [from, to]. Zero bounds are open.
// An unknown metric is rejected before any source is queried.
func (r *Reporter) WorldMap(ctx context.Context, metric string, from, to time.Time) ([]contracts.WorldPoint, contracts.Origin, error) {
	m, err := kpi.ParseMetric(metric)
	if err != nil {
		return nil, "", err
	}

	records, origin, err := r.source.WorldRecords(ctx, from, to)
	if err != nil {
		return nil, origin, err
	}

	points, err := kpi.World(records, m)
	if err != nil {
		return nil, origin, err
	}
	return points, origin, nil
}
