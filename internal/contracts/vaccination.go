package contracts

import (
	"strings"
	"time"
)

// DateLayout is the date-only ISO layout used on every wire format
const DateLayout = "2006-01-02"

// AggregatePrefix marks iso codes of aggregate entities (World, continents, income groups)
const AggregatePrefix = "OWID_"

// DailyRecord is one observation of a cumulative vaccination counter
// ⭐ SSOT: 원천 데이터 행 (primary store / external source 공통)
type DailyRecord struct {
	Country string    `json:"country"`
	IsoCode string    `json:"iso_code,omitempty"`
	Date    time.Time `json:"date"`
	// CumulativeTotal is nil when the source did not report a value.
	// Absent is not the same as zero.
	CumulativeTotal *int64 `json:"cumulative_total"`
}

// HasTotal reports whether the record carries a value
func (r DailyRecord) HasTotal() bool {
	return r.CumulativeTotal != nil
}

// MonthEndPoint is the month-end snapshot of a cumulative counter
type MonthEndPoint struct {
	Country string    `json:"country"`
	Month   time.Time `json:"month"` // first day of month, UTC
	Total   int64     `json:"total"`
}

// GrowthPoint is a MonthEndPoint with its month-over-month growth ratio
type GrowthPoint struct {
	Country    string    `json:"country" yaml:"country"`
	Month      time.Time `json:"month" yaml:"month"`
	Total      int64     `json:"total" yaml:"total"`
	GrowthRate *float64  `json:"growth_rate" yaml:"growth_rate"` // nil: first month or previous total was zero
}

// ManufacturerRow is one row of the manufacturer breakdown relation
type ManufacturerRow struct {
	Country string    `json:"country" yaml:"country"`
	Vaccine string    `json:"vaccine" yaml:"vaccine"`
	Date    time.Time `json:"date" yaml:"date"`
	Total   *int64    `json:"total" yaml:"total"`
}

// ManufacturerSnapshotPoint is a manufacturer total at the country's latest reporting date
type ManufacturerSnapshotPoint struct {
	Country string    `json:"country" yaml:"country"`
	Vaccine string    `json:"vaccine" yaml:"vaccine"`
	Total   int64     `json:"total" yaml:"total"`
	AsOf    time.Time `json:"as_of" yaml:"as_of"`
}

// QualitySummary describes the completeness of a country's series
type QualitySummary struct {
	Country        string  `json:"country" yaml:"country"`
	ObservedMonths int     `json:"observed_months" yaml:"observed_months"`
	ExpectedMonths int     `json:"expected_months" yaml:"expected_months"`
	MissingMonths  int     `json:"missing_months" yaml:"missing_months"`
	NullRateTotal  float64 `json:"null_rate_total" yaml:"null_rate_total"` // 0.0 ~ 1.0
}

// WorldPoint is one country's value on the world map
type WorldPoint struct {
	Country string  `json:"country" yaml:"country"`
	IsoCode string  `json:"iso_code" yaml:"iso_code"`
	Value   float64 `json:"value" yaml:"value"`
}

// KPISummary condenses a monthly growth series into headline numbers
type KPISummary struct {
	LatestTotal      *int64     `json:"latest_total" yaml:"latest_total"`
	LatestGrowthRate *float64   `json:"latest_growth_rate" yaml:"latest_growth_rate"`
	PeakGrowthRate   *float64   `json:"peak_growth_rate" yaml:"peak_growth_rate"`
	AsOf             *time.Time `json:"as_of" yaml:"as_of"`
}

// Origin tells which source answered a request
type Origin string

const (
	OriginPrimary  Origin = "primary"
	OriginFallback Origin = "fallback"
)

// IsAggregate reports whether an iso code denotes a non-country entity
func IsAggregate(isoCode string) bool {
	return strings.HasPrefix(isoCode, AggregatePrefix)
}

// FirstOfMonth truncates t to the first day of its month (UTC)
func FirstOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Int64Ptr is a convenience for optional totals
func Int64Ptr(v int64) *int64 {
	return &v
}

// Float64Ptr is a convenience for optional ratios
func Float64Ptr(v float64) *float64 {
	return &v
}
