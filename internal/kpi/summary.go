package kpi

import (
	"github.com/wonny/vaxpulse/internal/contracts"
)

// Summarize condenses a monthly growth series: latest total, latest growth and
// as-of month come from the last point, peak growth is the largest non-null rate.
// An empty series yields an all-null summary.
func Summarize(points []contracts.GrowthPoint) contracts.KPISummary {
	var summary contracts.KPISummary
	if len(points) == 0 {
		return summary
	}

	last := points[len(points)-1]
	total := last.Total
	asOf := last.Month
	summary.LatestTotal = &total
	summary.AsOf = &asOf
	if last.GrowthRate != nil {
		summary.LatestGrowthRate = contracts.Float64Ptr(*last.GrowthRate)
	}

	for _, p := range points {
		if p.GrowthRate == nil {
			continue
		}
		if summary.PeakGrowthRate == nil || *p.GrowthRate > *summary.PeakGrowthRate {
			summary.PeakGrowthRate = contracts.Float64Ptr(*p.GrowthRate)
		}
	}

	return summary
}
