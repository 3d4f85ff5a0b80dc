package suppliers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-carbon/jobs"
)

// Store abstracts persistence for the service.
type Store interface {
	Insert(ctx context.Context, s Supplier) (Supplier, error)
	Get(ctx context.Context, owner, id uuid.UUID) (Supplier, error)
	List(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]Supplier, int, error)
	ListActive(ctx context.Context, owner uuid.UUID) ([]Supplier, error)
	Update(ctx context.Context, s Supplier) (Supplier, error)
	Archive(ctx context.Context, owner, id uuid.UUID) error
	Summarise(ctx context.Context, owner uuid.UUID) (Summary, error)
}

// Mailer queues outbound mail.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Invalidator is notified whenever an owner's suppliers change.
type Invalidator interface {
	Bump(ctx context.Context, owner uuid.UUID) error
}

// InviteRequest is the body of POST /suppliers/{id}/invite.
type InviteRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"max=500"`
}

// Invitation is returned once an invitation has been recorded.
type Invitation struct {
	SupplierName   string    `json:"supplierName"`
	InvitedEmail   string    `json:"invitedEmail"`
	InvitationDate time.Time `json:"invitationDate"`
}

// ServiceConfig wires service dependencies. Mailer and Cache are optional.
type ServiceConfig struct {
	Store     Store
	Mailer    Mailer
	Cache     Invalidator
	Validator *httpx.Validator
	Logger    *slog.Logger
}

// Service implements the supplier use cases.
type Service struct {
	store     Store
	mailer    Mailer
	cache     Invalidator
	validator *httpx.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{store: cfg.Store, mailer: cfg.Mailer, cache: cfg.Cache, validator: cfg.Validator, logger: cfg.Logger, now: time.Now}
	if s.validator == nil {
		s.validator = httpx.NewValidator()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create stores a new active supplier for the principal.
func (s *Service) Create(ctx context.Context, p auth.Principal, doc Document) (Supplier, error) {
	if err := s.validator.Struct(doc); err != nil {
		return Supplier{}, err
	}
	applyDefaults(&doc)
	if doc.EmissionsData.LastUpdated.IsZero() {
		doc.EmissionsData.LastUpdated = httpx.NewDate(s.now())
	}
	rec := RecomputeTotals(Supplier{ID: uuid.New(), UserID: p.UserID, Document: doc, State: StateActive})
	saved, err := s.store.Insert(ctx, rec)
	if err != nil {
		return Supplier{}, err
	}
	s.invalidate(ctx, p.UserID)
	return saved, nil
}

// Get loads one of the principal's suppliers.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (Supplier, error) {
	return s.store.Get(ctx, p.UserID, id)
}

// List returns a page of the principal's active suppliers.
func (s *Service) List(ctx context.Context, p auth.Principal, filter ListFilter) ([]Supplier, httpx.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = httpx.DefaultLimit
	}
	out, total, err := s.store.List(ctx, p.UserID, filter)
	if err != nil {
		return nil, httpx.Pagination{}, err
	}
	if out == nil {
		out = []Supplier{}
	}
	return out, httpx.NewPagination(filter.Page, filter.Limit, total), nil
}

// Update merges patch, a partial JSON document, into the stored supplier.
func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, patch json.RawMessage) (Supplier, error) {
	current, err := s.store.Get(ctx, p.UserID, id)
	if err != nil {
		return Supplier{}, err
	}
	next := current
	if len(patch) > 0 {
		if err := json.Unmarshal(patch, &next.Document); err != nil {
			return Supplier{}, httpx.NewError(httpx.ErrValidation, "Malformed JSON body")
		}
	}
	if err := s.validator.Struct(next.Document); err != nil {
		return Supplier{}, err
	}
	applyDefaults(&next.Document)
	saved, err := s.store.Update(ctx, RecomputeTotals(next))
	if err != nil {
		return Supplier{}, err
	}
	s.invalidate(ctx, p.UserID)
	return saved, nil
}

// Delete archives a supplier.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	if err := s.store.Archive(ctx, p.UserID, id); err != nil {
		return err
	}
	s.invalidate(ctx, p.UserID)
	return nil
}

// Invite marks a supplier as invited and queues the invitation mail. A
// queue failure is logged and does not undo the recorded invitation.
func (s *Service) Invite(ctx context.Context, p auth.Principal, id uuid.UUID, req InviteRequest) (Invitation, error) {
	if err := s.validator.Struct(req); err != nil {
		return Invitation{}, err
	}
	current, err := s.store.Get(ctx, p.UserID, id)
	if err != nil {
		return Invitation{}, err
	}
	sent := s.now().UTC()
	current.ConnectionStatus = Invited
	current.PlatformData.InvitationSent = &sent
	saved, err := s.store.Update(ctx, RecomputeTotals(current))
	if err != nil {
		return Invitation{}, err
	}
	s.invalidate(ctx, p.UserID)

	if s.mailer != nil {
		payload := jobs.SendEmailPayload{
			To:      req.Email,
			Subject: fmt.Sprintf("%s invites %s to share emissions data", companyOrDefault(p.Company), saved.Company.Name),
			Body:    req.Message,
		}
		if _, err := s.mailer.EnqueueSendEmail(ctx, payload); err != nil {
			s.logger.Warn("suppliers: enqueue invitation failed", slog.String("supplier_id", id.String()), slog.Any("error", err))
		}
	}
	s.logger.Info("supplier invited", slog.String("supplier_id", id.String()), slog.String("email", req.Email))
	return Invitation{SupplierName: saved.Company.Name, InvitedEmail: req.Email, InvitationDate: sent}, nil
}

// Network returns the supply chain tree of the principal.
func (s *Service) Network(ctx context.Context, p auth.Principal) (NetworkNode, error) {
	active, err := s.store.ListActive(ctx, p.UserID)
	if err != nil {
		return NetworkNode{}, err
	}
	return Network(p.Company, active), nil
}

// Performance returns the supplier analytics of the principal.
func (s *Service) Performance(ctx context.Context, p auth.Principal) (PerformanceReport, error) {
	active, err := s.store.ListActive(ctx, p.UserID)
	if err != nil {
		return PerformanceReport{}, err
	}
	return Analyse(active), nil
}

// Summary returns the dashboard rollup of the principal's suppliers.
func (s *Service) Summary(ctx context.Context, owner uuid.UUID) (Summary, error) {
	return s.store.Summarise(ctx, owner)
}

// Active returns the principal's active suppliers.
func (s *Service) Active(ctx context.Context, owner uuid.UUID) ([]Supplier, error) {
	return s.store.ListActive(ctx, owner)
}

func (s *Service) invalidate(ctx context.Context, owner uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx, owner); err != nil {
		s.logger.Warn("suppliers: cache invalidation failed", slog.String("owner", owner.String()), slog.Any("error", err))
	}
}

func companyOrDefault(company string) string {
	if company == "" {
		return "A partner"
	}
	return company
}
