package kpi

import (
	"github.com/wonny/vaxpulse/internal/contracts"
)

// Growth computes the month-over-month ratio for an ordered month-end series.
// The ratio is (total - previous) / previous, not a percentage. It is nil for the
// first point of each country and whenever the previous total is zero. Negative
// growth (data corrections) is kept as-is. Output has the same length and order.
func Growth(points []contracts.MonthEndPoint) []contracts.GrowthPoint {
	if len(points) == 0 {
		return nil
	}

	out := make([]contracts.GrowthPoint, len(points))
	for i, p := range points {
		out[i] = contracts.GrowthPoint{
			Country: p.Country,
			Month:   p.Month,
			Total:   p.Total,
		}

		if i == 0 || points[i-1].Country != p.Country {
			continue
		}

		prev := points[i-1].Total
		if prev == 0 {
			continue
		}

		rate := float64(p.Total-prev) / float64(prev)
		out[i].GrowthRate = &rate
	}

	return out
}

// MonthlyGrowth normalizes raw records and computes their growth series
func MonthlyGrowth(records []contracts.DailyRecord) []contracts.GrowthPoint {
	return Growth(MonthEnd(records))
}
