package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"github.com/wonny/vaxpulse/internal/contracts"
	"github.com/wonny/vaxpulse/pkg/logger"
)

// Reports is the KPI output capability. *report.Reporter satisfies it.
type Reports interface {
	Countries(ctx context.Context) ([]string, contracts.Origin, error)
	MonthlyGrowth(ctx context.Context, country string) ([]contracts.GrowthPoint, contracts.Origin, error)
	ManufacturerShare(ctx context.Context, country string) ([]contracts.ManufacturerSnapshotPoint, contracts.Origin, error)
	Summary(ctx context.Context, country string) (contracts.KPISummary, contracts.Origin, error)
	Quality(ctx context.Context, country string) (contracts.QualitySummary, contracts.Origin, error)
	LastUpdated(ctx context.Context, country string) (*time.Time, contracts.Origin, error)
	WorldMap(ctx context.Context, metric string, from, to time.Time) ([]contracts.WorldPoint, contracts.Origin, error)
}

// KPIHandler handles KPI API endpoints
// ⭐ SSOT: KPI API 핸들러는 이 구조체에서만
type KPIHandler struct {
	reports Reports
	logger  *logger.Logger
}

// NewKPIHandler creates a new KPI handler
func NewKPIHandler(reports Reports, log *logger.Logger) *KPIHandler {
	return &KPIHandler{
		reports: reports,
		logger:  log,
	}
}

// GrowthResponse is one month of the monthly growth series
type GrowthResponse struct {
	Month      string   `json:"month"`
	Total      int64    `json:"total"`
	GrowthRate *float64 `json:"growth_rate"`
}

// ShareResponse is one manufacturer of the share snapshot
type ShareResponse struct {
	Vaccine string `json:"vaccine"`
	Total   int64  `json:"total"`
	AsOf    string `json:"as_of"`
}

// SummaryResponse is the headline numbers of a country
type SummaryResponse struct {
	LatestTotal      *int64   `json:"latest_total"`
	LatestGrowthRate *float64 `json:"latest_growth_rate"`
	PeakGrowthRate   *float64 `json:"peak_growth_rate"`
	AsOf             *string  `json:"as_of"`
}

// QualityResponse is the completeness of a country's series
type QualityResponse struct {
	Country        string  `json:"country"`
	Months         int     `json:"months"`
	ExpectedMonths int     `json:"expected_months"`
	MissingMonths  int     `json:"missing_months"`
	NullRateTotal  float64 `json:"null_rate_total"`
}

// LastUpdatedResponse is the latest reported date of a country
type LastUpdatedResponse struct {
	Country     string  `json:"country"`
	LastUpdated *string `json:"last_updated"`
}

// GetCountries returns the country list
// GET /countries
func (h *KPIHandler) GetCountries(w http.ResponseWriter, r *http.Request) {
	countries, origin, err := h.reports.Countries(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if countries == nil {
		countries = []string{}
	}
	h.respond(w, origin, countries)
}

// GetMonthlyGrowth returns month-end totals with their growth rates
// GET /kpi/monthly-growth/{country}
func (h *KPIHandler) GetMonthlyGrowth(w http.ResponseWriter, r *http.Request) {
	points, origin, err := h.reports.MonthlyGrowth(r.Context(), mux.Vars(r)["country"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.respond(w, origin, lo.Map(points, func(p contracts.GrowthPoint, _ int) GrowthResponse {
		return GrowthResponse{
			Month:      p.Month.Format(contracts.DateLayout),
			Total:      p.Total,
			GrowthRate: p.GrowthRate,
		}
	}))
}

// GetManufacturerShare returns the top manufacturers at the latest reporting date
// GET /kpi/manufacturer-share/{country}
func (h *KPIHandler) GetManufacturerShare(w http.ResponseWriter, r *http.Request) {
	points, origin, err := h.reports.ManufacturerShare(r.Context(), mux.Vars(r)["country"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.respond(w, origin, lo.Map(points, func(p contracts.ManufacturerSnapshotPoint, _ int) ShareResponse {
		return ShareResponse{
			Vaccine: p.Vaccine,
			Total:   p.Total,
			AsOf:    p.AsOf.Format(contracts.DateLayout),
		}
	}))
}

// GetSummary returns the KPI summary of a country
// GET /kpi/summary/{country}
func (h *KPIHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, origin, err := h.reports.Summary(r.Context(), mux.Vars(r)["country"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.respond(w, origin, SummaryResponse{
		LatestTotal:      summary.LatestTotal,
		LatestGrowthRate: summary.LatestGrowthRate,
		PeakGrowthRate:   summary.PeakGrowthRate,
		AsOf:             formatDate(summary.AsOf),
	})
}

// GetQuality returns the data-quality summary of a country
// GET /kpi/quality/{country}
func (h *KPIHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	quality, origin, err := h.reports.Quality(r.Context(), mux.Vars(r)["country"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.respond(w, origin, QualityResponse{
		Country:        quality.Country,
		Months:         quality.ObservedMonths,
		ExpectedMonths: quality.ExpectedMonths,
		MissingMonths:  quality.MissingMonths,
		NullRateTotal:  quality.NullRateTotal,
	})
}

// GetLastUpdated returns the latest date with a reported total
// GET /kpi/last-updated/{country}
func (h *KPIHandler) GetLastUpdated(w http.ResponseWriter, r *http.Request) {
	country := mux.Vars(r)["country"]

	latest, origin, err := h.reports.LastUpdated(r.Context(), country)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.respond(w, origin, LastUpdatedResponse{
		Country:     country,
		LastUpdated: formatDate(latest),
	})
}

// GetWorldMap returns one value per country
// GET /kpi/world-map?metric=latest_total|latest_growth&from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *KPIHandler) GetWorldMap(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	metric := query.Get("metric")
	if metric == "" {
		metric = "latest_total"
	}

	from, err := parseDateParam(query.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
		return
	}
	to, err := parseDateParam(query.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
		return
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		respondError(w, http.StatusBadRequest, "'from' must not be after 'to'")
		return
	}

	points, origin, err := h.reports.WorldMap(r.Context(), metric, from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if points == nil {
		points = []contracts.WorldPoint{}
	}
	h.respond(w, origin, points)
}

func (h *KPIHandler) respond(w http.ResponseWriter, origin contracts.Origin, data interface{}) {
	w.Header().Set(DataSourceHeader, string(origin))
	respondJSON(w, http.StatusOK, data)
}

func (h *KPIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	entry := h.logger.WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("KPI request failed")
	} else {
		entry.Warn("KPI request rejected")
	}

	respondError(w, status, err.Error())
}

func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(contracts.DateLayout, s)
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(contracts.DateLayout)
	return &s
}
