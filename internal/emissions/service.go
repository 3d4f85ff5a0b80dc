package emissions

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// Store abstracts persistence for the service.
type Store interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	InsertMany(ctx context.Context, recs []Record) ([]Record, error)
	Get(ctx context.Context, owner, id uuid.UUID) (Record, error)
	List(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]Record, int, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, owner, id uuid.UUID) error
	SummaryByScope(ctx context.Context, owner uuid.UUID, year int) ([]ScopeSummary, error)
	MonthlyTotals(ctx context.Context, owner uuid.UUID, year int) ([]MonthlyTotal, error)
}

// Invalidator is notified whenever an owner's records change.
type Invalidator interface {
	Bump(ctx context.Context, owner uuid.UUID) error
}

// Service implements the emission record use cases.
type Service struct {
	store     Store
	cache     Invalidator
	validator *httpx.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the service. cache may be nil.
func NewService(store Store, cache Invalidator, validator *httpx.Validator, logger *slog.Logger) *Service {
	if validator == nil {
		validator = httpx.NewValidator()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, validator: validator, logger: logger, now: time.Now}
}

// WithClock overrides the time source, used in tests.
func (s *Service) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
		s.validator.WithNow(now)
	}
}

// Create validates req and stores a new record for the principal.
func (s *Service) Create(ctx context.Context, p auth.Principal, req CreateRequest) (Record, error) {
	rec, err := s.prepare(p, req, "")
	if err != nil {
		return Record{}, err
	}
	saved, err := s.store.Insert(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.invalidate(ctx, p.UserID)
	return saved, nil
}

// BulkCreate stores every record of req in a single transaction.
func (s *Service) BulkCreate(ctx context.Context, p auth.Principal, req BulkRequest) ([]Record, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(req.Emissions))
	for i, item := range req.Emissions {
		rec, err := s.prepare(p, item, "emissions["+itoa(i)+"].")
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	saved, err := s.store.InsertMany(ctx, recs)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.UserID)
	return saved, nil
}

func (s *Service) prepare(p auth.Principal, req CreateRequest, prefix string) (Record, error) {
	if prefix == "" {
		if err := s.validator.Struct(req); err != nil {
			return Record{}, err
		}
	}
	if err := checkPeriods(req.Entries, prefix); err != nil {
		return Record{}, err
	}
	status := StatusDraft
	if req.Status != "" {
		status = Status(req.Status)
	}
	now := s.now().UTC()
	rec := Record{
		ID:              uuid.New(),
		UserID:          p.UserID,
		Company:         p.Company,
		Scope:           Scope(req.Scope),
		ReportingPeriod: req.ReportingPeriod.period(),
		Entries:         entries(req.Entries),
		Status:          status,
		Methodology:     req.Methodology.methodology(),
		LastModified:    now,
	}
	return RecomputeTotals(rec), nil
}

// Get loads one of the principal's records.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (Record, error) {
	return s.store.Get(ctx, p.UserID, id)
}

// List returns a page of the principal's records.
func (s *Service) List(ctx context.Context, p auth.Principal, filter ListFilter) ([]Record, httpx.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = httpx.DefaultLimit
	}
	recs, total, err := s.store.List(ctx, p.UserID, filter)
	if err != nil {
		return nil, httpx.Pagination{}, err
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, httpx.NewPagination(filter.Page, filter.Limit, total), nil
}

// Update applies req to a record. Published records only accept writes from
// elevated actors, and other actors can only move the status forward.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req UpdateRequest) (Record, error) {
	if err := s.validator.Struct(req); err != nil {
		return Record{}, err
	}
	if err := checkPeriods(req.Entries, ""); err != nil {
		return Record{}, err
	}
	current, err := s.store.Get(ctx, p.UserID, id)
	if err != nil {
		return Record{}, err
	}
	if current.Status == StatusPublished && !p.IsElevated() {
		return Record{}, ErrPublishedImmutable
	}
	next := current
	if req.Scope != nil {
		next.Scope = Scope(*req.Scope)
	}
	if req.ReportingPeriod != nil {
		next.ReportingPeriod = req.ReportingPeriod.period()
	}
	if len(req.Entries) > 0 {
		next.Entries = entries(req.Entries)
	}
	if req.Status != nil {
		status := Status(*req.Status)
		if !p.IsElevated() && !current.Status.Advances(status) {
			return Record{}, ErrStatusRegression
		}
		next.Status = status
	}
	if req.Methodology != nil {
		next.Methodology = req.Methodology.methodology()
	}
	next.LastModified = s.now().UTC()
	saved, err := s.store.Update(ctx, RecomputeTotals(next))
	if err != nil {
		return Record{}, err
	}
	s.invalidate(ctx, p.UserID)
	return saved, nil
}

// Delete removes a record. Published records are only deletable by elevated actors.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	current, err := s.store.Get(ctx, p.UserID, id)
	if err != nil {
		return err
	}
	if current.Status == StatusPublished && !p.IsElevated() {
		return ErrPublishedUndeletable
	}
	if err := s.store.Delete(ctx, p.UserID, id); err != nil {
		return err
	}
	s.invalidate(ctx, p.UserID)
	return nil
}

// Summary returns the yearly rollup of the principal's records.
func (s *Service) Summary(ctx context.Context, p auth.Principal, year int) (Summary, error) {
	scopes, err := s.store.SummaryByScope(ctx, p.UserID, year)
	if err != nil {
		return Summary{}, err
	}
	monthly, err := s.store.MonthlyTotals(ctx, p.UserID, year)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Year: year, ScopeSummary: scopes, MonthlyTrends: monthly}
	for _, sc := range scopes {
		out.TotalEmissions += sc.TotalCO2e
	}
	return out, nil
}

// CurrentYear is the default year of summary queries.
func (s *Service) CurrentYear() int {
	return s.now().Year()
}

// ValidYear reports whether year is an accepted reporting year.
func (s *Service) ValidYear(year int) bool {
	return httpx.ValidReportingYear(year, s.now())
}

func (s *Service) invalidate(ctx context.Context, owner uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, owner); err != nil {
		s.logger.Warn("emissions: cache invalidation failed", slog.String("owner", owner.String()), slog.Any("error", err))
	}
}
