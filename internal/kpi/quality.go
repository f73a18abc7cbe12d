package kpi

import (
	"time"

	"github.com/samber/lo"

	"github.com/wonny/vaxpulse/internal/contracts"
)

// Quality estimates the completeness of one country's raw series.
//
//   - observed months: distinct months with at least one record, null totals included
//   - expected months: inclusive month span between the earliest and latest record
//   - missing months:  expected - observed, never negative
//   - null rate:       share of records without a total, 0 for an empty series
func Quality(country string, records []contracts.DailyRecord) contracts.QualitySummary {
	summary := contracts.QualitySummary{Country: country}
	if len(records) == 0 {
		return summary
	}

	months := lo.Uniq(lo.Map(records, func(r contracts.DailyRecord, _ int) time.Time {
		return contracts.FirstOfMonth(r.Date)
	}))
	summary.ObservedMonths = len(months)

	first := lo.MinBy(months, func(a, b time.Time) bool { return a.Before(b) })
	last := lo.MaxBy(months, func(a, b time.Time) bool { return a.After(b) })
	summary.ExpectedMonths = MonthSpan(first, last)

	summary.MissingMonths = max(summary.ExpectedMonths-summary.ObservedMonths, 0)

	nulls := lo.CountBy(records, func(r contracts.DailyRecord) bool {
		return !r.HasTotal()
	})
	summary.NullRateTotal = float64(nulls) / float64(len(records))

	return summary
}

// MonthSpan counts calendar months from the month of from to the month of to, inclusive.
// Returns 0 when to precedes from.
func MonthSpan(from, to time.Time) int {
	fy, fm, _ := from.UTC().Date()
	ty, tm, _ := to.UTC().Date()
	span := (ty-fy)*12 + int(tm-fm) + 1
	return max(span, 0)
}
