package kpi

import (
	"sort"

	"github.com/samber/lo"

	"github.com/wonny/vaxpulse/internal/contracts"
)

// Metric selects the value plotted on the world map
type Metric string

const (
	MetricLatestTotal  Metric = "latest_total"
	MetricLatestGrowth Metric = "latest_growth"
)

// ParseMetric validates a caller-supplied metric name
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricLatestTotal, MetricLatestGrowth:
		return m, nil
	default:
		return "", contracts.InvalidMetric(s)
	}
}

// World builds one point per country from a multi-country relation.
//
// latest_total:  the last month-end total of the country
// latest_growth: the last non-null month-over-month growth of the country
//
// Aggregate entities and rows without an iso code are ignored. Countries with no
// qualifying point are omitted. Output is ordered by country name.
// ⭐ SSOT: 국가 비교 (world map) 계산은 이 함수에서만
func World(records []contracts.DailyRecord, metric Metric) ([]contracts.WorldPoint, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	countries := lo.Filter(records, func(r contracts.DailyRecord, _ int) bool {
		return r.IsoCode != "" && !contracts.IsAggregate(r.IsoCode)
	})

	byCountry := lo.GroupBy(countries, func(r contracts.DailyRecord) string {
		return r.Country
	})

	points := make([]contracts.WorldPoint, 0, len(byCountry))
	for country, rows := range byCountry {
		value, ok := worldValue(rows, metric)
		if !ok {
			continue
		}

		points = append(points, contracts.WorldPoint{
			Country: country,
			IsoCode: isoCode(rows),
			Value:   value,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Country < points[j].Country
	})

	return points, nil
}

func worldValue(rows []contracts.DailyRecord, metric Metric) (float64, bool) {
	monthly := MonthEnd(rows)
	if len(monthly) == 0 {
		return 0, false
	}

	if metric == MetricLatestTotal {
		return float64(monthly[len(monthly)-1].Total), true
	}

	withRate := lo.Filter(Growth(monthly), func(p contracts.GrowthPoint, _ int) bool {
		return p.GrowthRate != nil
	})
	if len(withRate) == 0 {
		return 0, false
	}
	return *withRate[len(withRate)-1].GrowthRate, true
}

// isoCode returns the iso code carried by the country's most recent row
func isoCode(rows []contracts.DailyRecord) string {
	latest := lo.MaxBy(rows, func(a, b contracts.DailyRecord) bool {
		return a.Date.After(b.Date)
	})
	return latest.IsoCode
}

// RankWorld returns a copy of points ordered by value, highest first.
// Ties keep country order.
func RankWorld(points []contracts.WorldPoint) []contracts.WorldPoint {
	ranked := append([]contracts.WorldPoint(nil), points...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].Country < ranked[j].Country
	})
	return ranked
}
