package kpi

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/wonny/vaxpulse/internal/contracts"
)

// TopManufacturers caps the per-country manufacturer share view
const TopManufacturers = 15

// SelectLatest keeps, for every country, only the rows dated at that country's
// latest date. The latest date is taken over all rows of the country; rows for
// which present returns false are dropped afterwards. Input order is preserved.
func SelectLatest[T any](
	rows []T,
	country func(T) string,
	date func(T) time.Time,
	present func(T) bool,
) []T {
	if len(rows) == 0 {
		return nil
	}

	latest := make(map[string]time.Time)
	for _, row := range rows {
		c, d := country(row), date(row)
		if cur, ok := latest[c]; !ok || d.After(cur) {
			latest[c] = d
		}
	}

	return lo.Filter(rows, func(row T, _ int) bool {
		return date(row).Equal(latest[country(row)]) && present(row)
	})
}

// LatestManufacturers returns the manufacturer rows at each country's latest date
func LatestManufacturers(rows []contracts.ManufacturerRow) []contracts.ManufacturerSnapshotPoint {
	selected := SelectLatest(rows,
		func(r contracts.ManufacturerRow) string { return r.Country },
		func(r contracts.ManufacturerRow) time.Time { return r.Date },
		func(r contracts.ManufacturerRow) bool { return r.Total != nil },
	)

	return lo.Map(selected, func(r contracts.ManufacturerRow, _ int) contracts.ManufacturerSnapshotPoint {
		return contracts.ManufacturerSnapshotPoint{
			Country: r.Country,
			Vaccine: r.Vaccine,
			Total:   *r.Total,
			AsOf:    r.Date,
		}
	})
}

// ManufacturerShare builds the per-country manufacturer view: latest snapshot,
// descending by total, at most limit entries. Ties keep relation order.
func ManufacturerShare(rows []contracts.ManufacturerRow, limit int) []contracts.ManufacturerSnapshotPoint {
	points := LatestManufacturers(rows)

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Total > points[j].Total
	})

	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}

	return points
}

// LatestDate returns the most recent date of the records of one country that
// carry a total. ok is false when there is none.
func LatestDate(records []contracts.DailyRecord) (time.Time, bool) {
	valid := lo.Filter(records, func(r contracts.DailyRecord, _ int) bool {
		return r.HasTotal()
	})
	if len(valid) == 0 {
		return time.Time{}, false
	}

	latest := lo.MaxBy(valid, func(a, b contracts.DailyRecord) bool {
		return a.Date.After(b.Date)
	})
	return latest.Date, true
}
