// Package store is the PostgreSQL primary store: read queries for the KPI engine,
// the bulk loader and the embedded schema.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/vaxpulse/internal/contracts"
)

// Repository answers primary-store queries. Every query is parameterized.
// ⭐ SSOT: primary store 조회는 이 구조체에서만
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Countries lists country names in ascending order
func (r *Repository) Countries(ctx context.Context) ([]string, error) {
	query := `
		SELECT country_name
		FROM location
		ORDER BY country_name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan countries: %w", err)
	}

	return names, nil
}

// VaccinationSeries returns one country's daily rows ordered by date
func (r *Repository) VaccinationSeries(ctx context.Context, country string) ([]contracts.DailyRecord, error) {
	query := `
		SELECT location, COALESCE(iso_code, ''), date, total_vaccinations
		FROM vaccination
		WHERE location = $1
		ORDER BY date
	`

	rows, err := r.db.Query(ctx, query, country)
	if err != nil {
		return nil, fmt.Errorf("query vaccination series for %s: %w", country, err)
	}

	records, err := collectDailyRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("scan vaccination series for %s: %w", country, err)
	}

	return records, nil
}

// LastUpdated returns the latest date with a reported total, or nil when there is none
func (r *Repository) LastUpdated(ctx context.Context, country string) (*time.Time, error) {
	query := `
		SELECT MAX(date)
		FROM vaccination
		WHERE location = $1
		  AND total_vaccinations IS NOT NULL
	`

	var latest *time.Time
	if err := r.db.QueryRow(ctx, query, country).Scan(&latest); err != nil {
		return nil, fmt.Errorf("query last updated for %s: %w", country, err)
	}

	return latest, nil
}

// AllVaccinations returns every country's rows within [from, to]. Zero bounds are open.
func (r *Repository) AllVaccinations(ctx context.Context, from, to time.Time) ([]contracts.DailyRecord, error) {
	query := `
		SELECT location, COALESCE(iso_code, ''), date, total_vaccinations
		FROM vaccination
		WHERE ($1::date IS NULL OR date >= $1::date)
		  AND ($2::date IS NULL OR date <= $2::date)
		ORDER BY location, date
	`

	rows, err := r.db.Query(ctx, query, nullableDate(from), nullableDate(to))
	if err != nil {
		return nil, fmt.Errorf("query all vaccinations: %w", err)
	}

	records, err := collectDailyRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("scan all vaccinations: %w", err)
	}

	return records, nil
}

// ManufacturerRows returns one country's manufacturer breakdown rows
func (r *Repository) ManufacturerRows(ctx context.Context, country string) ([]contracts.ManufacturerRow, error) {
	query := `
		SELECT country_name, vaccine, date, total_vaccinations
		FROM vaccination_by_manu
		WHERE country_name = $1
		ORDER BY date, vaccine
	`

	rows, err := r.db.Query(ctx, query, country)
	if err != nil {
		return nil, fmt.Errorf("query manufacturers for %s: %w", country, err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.ManufacturerRow, error) {
		var m contracts.ManufacturerRow
		err := row.Scan(&m.Country, &m.Vaccine, &m.Date, &m.Total)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan manufacturers for %s: %w", country, err)
	}

	return result, nil
}

func collectDailyRecords(rows pgx.Rows) ([]contracts.DailyRecord, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (contracts.DailyRecord, error) {
		var rec contracts.DailyRecord
		err := row.Scan(&rec.Country, &rec.IsoCode, &rec.Date, &rec.CumulativeTotal)
		return rec, err
	})
}

func nullableDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
