// Package dashboard serves cached, owner-scoped rollups of emissions,
// suppliers and recent reports.
package dashboard

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/emissions"
	"github.com/odyssey-erp/odyssey-carbon/internal/reports"
	"github.com/odyssey-erp/odyssey-carbon/internal/suppliers"
)

// EmissionSummaries provides the yearly emission rollup.
type EmissionSummaries interface {
	Summary(ctx context.Context, p auth.Principal, year int) (emissions.Summary, error)
	CurrentYear() int
	ValidYear(year int) bool
}

// SupplierSummaries provides the supplier rollup.
type SupplierSummaries interface {
	Summary(ctx context.Context, owner uuid.UUID) (suppliers.Summary, error)
}

// RecentReports lists the latest report jobs.
type RecentReports interface {
	Recent(ctx context.Context, owner uuid.UUID) ([]reports.Summary, error)
}

// Overview is the payload of GET /dashboard/overview.
type Overview struct {
	Year            int                      `json:"year"`
	TotalEmissions  float64                  `json:"totalEmissions"`
	EmissionSummary []emissions.ScopeSummary `json:"emissionsSummary"`
	SupplierSummary suppliers.Summary        `json:"supplierSummary"`
	RecentReports   []reports.Summary        `json:"recentReports"`
	MonthlyTrend    []emissions.MonthlyTotal `json:"monthlyTrend"`
}

// Chart is a zero-filled twelve month series per scope.
type Chart struct {
	Scope1 [12]float64 `json:"scope1"`
	Scope2 [12]float64 `json:"scope2"`
	Scope3 [12]float64 `json:"scope3"`
}

// Service assembles dashboard views.
type Service struct {
	emissions EmissionSummaries
	suppliers SupplierSummaries
	reports   RecentReports
	cache     *Cache
	logger    *slog.Logger
}

// NewService constructs the dashboard service. cache may be nil.
func NewService(em EmissionSummaries, sup SupplierSummaries, rep RecentReports, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{emissions: em, suppliers: sup, reports: rep, cache: cache, logger: logger}
}

// CurrentYear exposes the reporting year used by the overview.
func (s *Service) CurrentYear() int { return s.emissions.CurrentYear() }

// ValidYear reports whether year is an accepted reporting year.
func (s *Service) ValidYear(year int) bool { return s.emissions.ValidYear(year) }

// Overview returns the current-year dashboard for the principal.
func (s *Service) Overview(ctx context.Context, p auth.Principal) (Overview, error) {
	year := s.emissions.CurrentYear()
	var out Overview
	err := s.cached(ctx, p.UserID, &out, func(ctx context.Context) (any, error) {
		return s.loadOverview(ctx, p, year)
	}, "overview", strconv.Itoa(year))
	return out, err
}

func (s *Service) loadOverview(ctx context.Context, p auth.Principal, year int) (Overview, error) {
	summary, err := s.emissions.Summary(ctx, p, year)
	if err != nil {
		return Overview{}, err
	}
	supplierSummary, err := s.suppliers.Summary(ctx, p.UserID)
	if err != nil {
		return Overview{}, err
	}
	recent, err := s.reports.Recent(ctx, p.UserID)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{
		Year:            year,
		TotalEmissions:  summary.TotalEmissions,
		EmissionSummary: summary.ScopeSummary,
		SupplierSummary: supplierSummary,
		RecentReports:   recent,
		MonthlyTrend:    summary.MonthlyTrends,
	}
	if out.EmissionSummary == nil {
		out.EmissionSummary = []emissions.ScopeSummary{}
	}
	if out.RecentReports == nil {
		out.RecentReports = []reports.Summary{}
	}
	if out.MonthlyTrend == nil {
		out.MonthlyTrend = []emissions.MonthlyTotal{}
	}
	return out, nil
}

// EmissionsChart returns the monthly series of year for the principal.
func (s *Service) EmissionsChart(ctx context.Context, p auth.Principal, year int) (Chart, error) {
	var out Chart
	err := s.cached(ctx, p.UserID, &out, func(ctx context.Context) (any, error) {
		summary, err := s.emissions.Summary(ctx, p, year)
		if err != nil {
			return nil, err
		}
		return BuildChart(summary.MonthlyTrends), nil
	}, "chart", strconv.Itoa(year))
	return out, err
}

// cached reads through the owner's cache and falls back to the loader when
// Redis is unavailable.
func (s *Service) cached(ctx context.Context, owner uuid.UUID, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, owner, parts...)
	if err != nil {
		s.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
		return (*Cache)(nil).FetchJSON(ctx, "", dest, loader)
	}
	var loaderErr error
	wrapped := func(ctx context.Context) (any, error) {
		v, err := loader(ctx)
		loaderErr = err
		return v, err
	}
	err = s.cache.FetchJSON(ctx, key, dest, wrapped)
	if err == nil || loaderErr != nil {
		return err
	}
	s.logger.Warn("dashboard cache unavailable", slog.String("key", key), slog.Any("error", err))
	return (*Cache)(nil).FetchJSON(ctx, key, dest, loader)
}

// BuildChart spreads monthly totals over twelve slots per scope. Totals
// without a month land in January.
func BuildChart(totals []emissions.MonthlyTotal) Chart {
	var c Chart
	for _, t := range totals {
		slot := 0
		if t.Month != nil && *t.Month >= 1 && *t.Month <= 12 {
			slot = *t.Month - 1
		}
		switch t.Scope {
		case emissions.Scope1:
			c.Scope1[slot] += t.TotalCO2e
		case emissions.Scope2:
			c.Scope2[slot] += t.TotalCO2e
		case emissions.Scope3:
			c.Scope3[slot] += t.TotalCO2e
		}
	}
	return c
}
