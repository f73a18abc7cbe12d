package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"github.com/wonny/vaxpulse/internal/external/owid"
	"github.com/wonny/vaxpulse/pkg/logger"
)

// DefaultSourceName is recorded on every location row
const DefaultSourceName = "Our World in Data"

// LoadResult reports what a reload wrote
type LoadResult struct {
	Locations     int64
	Vaccinations  int64
	Manufacturers int64
	Duration      time.Duration
}

// Loader replaces the primary store's content with parsed bulk files
// ⭐ SSOT: primary store 적재는 이 구조체에서만 (offline batch)
type Loader struct {
	db         *pgxpool.Pool
	logger     *logger.Logger
	sourceName string
}

// NewLoader creates a new loader
func NewLoader(db *pgxpool.Pool, log *logger.Logger) *Loader {
	return &Loader{
		db:         db,
		logger:     log,
		sourceName: DefaultSourceName,
	}
}

// Reload truncates and refills all tables in one transaction, so running it twice with
// the same input leaves the same content. manufacturers may be nil.
func (l *Loader) Reload(ctx context.Context, sourceURL string, vaccinations *owid.Payload, manufacturers *owid.ManufacturerPayload) (*LoadResult, error) {
	start := time.Now()

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE vaccination_by_manu, vaccination, location`); err != nil {
		return nil, fmt.Errorf("truncate tables: %w", err)
	}

	locations := Locations(vaccinations.Rows)
	result := &LoadResult{}

	result.Locations, err = tx.CopyFrom(ctx,
		pgx.Identifier{"location"},
		[]string{"country_name", "iso_code", "last_observation_date", "source_name", "source_url"},
		pgx.CopyFromSlice(len(locations), func(i int) ([]any, error) {
			loc := locations[i]
			return []any{loc.Country, loc.IsoCode, loc.LastObservation, l.sourceName, sourceURL}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("copy locations: %w", err)
	}

	rows := vaccinations.Rows
	result.Vaccinations, err = tx.CopyFrom(ctx,
		pgx.Identifier{"vaccination"},
		[]string{"location", "iso_code", "date", "total_vaccinations", "people_vaccinated", "people_fully_vaccinated", "total_boosters"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{r.Country, r.IsoCode, r.Date, r.CumulativeTotal, r.PeopleVaccinated, r.PeopleFullyVaccinated, r.TotalBoosters}, nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("copy vaccinations: %w", err)
	}

	if manufacturers != nil {
		manu := manufacturers.Rows
		result.Manufacturers, err = tx.CopyFrom(ctx,
			pgx.Identifier{"vaccination_by_manu"},
			[]string{"country_name", "date", "vaccine", "total_vaccinations"},
			pgx.CopyFromSlice(len(manu), func(i int) ([]any, error) {
				m := manu[i]
				return []any{m.Country, m.Date, m.Vaccine, m.Total}, nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("copy manufacturers: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	result.Duration = time.Since(start)

	l.logger.WithFields(map[string]interface{}{
		"locations":     result.Locations,
		"vaccinations":  result.Vaccinations,
		"manufacturers": result.Manufacturers,
		"duration":      result.Duration,
	}).Info("Primary store reloaded")

	return result, nil
}

// Location is one derived row of the location table
type Location struct {
	Country         string
	IsoCode         string
	LastObservation time.Time
}

// Locations derives one location per country: its latest iso code and observation date
func Locations(rows []owid.Row) []Location {
	byCountry := lo.GroupBy(rows, func(r owid.Row) string { return r.Country })

	locations := make([]Location, 0, len(byCountry))
	for country, group := range byCountry {
		latest := lo.MaxBy(group, func(a, b owid.Row) bool { return a.Date.After(b.Date) })
		locations = append(locations, Location{
			Country:         country,
			IsoCode:         latest.IsoCode,
			LastObservation: latest.Date,
		})
	}

	sort.Slice(locations, func(i, j int) bool {
		return locations[i].Country < locations[j].Country
	})
	return locations
}
