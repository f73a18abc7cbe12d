// Package kpi turns raw cumulative vaccination records into month-end snapshots,
// month-over-month growth, manufacturer shares, completeness metrics and the
// cross-country world view. Everything here is pure: no I/O, no shared state.
package kpi

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/wonny/vaxpulse/internal/contracts"
)

type monthKey struct {
	country string
	month   time.Time
}

// MonthEnd reduces daily cumulative records to one point per (country, month).
// The month value is the maximum of the month's reported totals; cumulative
// counters are never summed. Records without a total are ignored and months
// without any reported total produce no point. Output is ordered by country,
// then month ascending. No valid record yields an empty (nil) result.
// ⭐ SSOT: 월말 스냅샷 계산은 이 함수에서만
func MonthEnd(records []contracts.DailyRecord) []contracts.MonthEndPoint {
	valid := lo.Filter(records, func(r contracts.DailyRecord, _ int) bool {
		return r.HasTotal()
	})
	if len(valid) == 0 {
		return nil
	}

	maxes := make(map[monthKey]int64)
	for _, r := range valid {
		key := monthKey{country: r.Country, month: contracts.FirstOfMonth(r.Date)}
		if cur, ok := maxes[key]; !ok || *r.CumulativeTotal > cur {
			maxes[key] = *r.CumulativeTotal
		}
	}

	points := make([]contracts.MonthEndPoint, 0, len(maxes))
	for key, total := range maxes {
		points = append(points, contracts.MonthEndPoint{
			Country: key.country,
			Month:   key.month,
			Total:   total,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Country != points[j].Country {
			return points[i].Country < points[j].Country
		}
		return points[i].Month.Before(points[j].Month)
	})

	return points
}

// MonthEndByCountry normalizes a multi-country relation, keyed by country.
// Countries without a single valid record are absent from the map.
func MonthEndByCountry(records []contracts.DailyRecord) map[string][]contracts.MonthEndPoint {
	byCountry := lo.GroupBy(MonthEnd(records), func(p contracts.MonthEndPoint) string {
		return p.Country
	})
	return byCountry
}
