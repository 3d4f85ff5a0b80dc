package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-carbon/internal/shared"
)

// IdempotencyModule namespaces generate request keys.
const IdempotencyModule = "reports.generate"

// Store abstracts persistence of report jobs.
type Store interface {
	Insert(ctx context.Context, rep Report) (Report, error)
	Get(ctx context.Context, owner, id uuid.UUID) (Report, error)
	Load(ctx context.Context, id uuid.UUID) (Report, error)
	List(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]Report, int, error)
	Recent(ctx context.Context, owner uuid.UUID, limit int) ([]Summary, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, payload Payload, meta Metadata) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	RecordDownload(ctx context.Context, owner, id uuid.UUID, entry AuditEntry) (Report, error)
	SaveSharing(ctx context.Context, owner, id uuid.UUID, sharing Sharing, entry AuditEntry) (Report, error)
	StaleGenerating(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// Enqueuer hands a report job to the background worker.
type Enqueuer interface {
	EnqueueReport(ctx context.Context, reportID uuid.UUID) error
}

// KeyStore remembers processed idempotency keys.
type KeyStore interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// Invalidator is notified whenever an owner's report list changes.
type Invalidator interface {
	Bump(ctx context.Context, owner uuid.UUID) error
}

// ServiceConfig wires the service. Keys and Cache are optional.
type ServiceConfig struct {
	Store     Store
	Queue     Enqueuer
	Keys      KeyStore
	Cache     Invalidator
	Validator *httpx.Validator
	Logger    *slog.Logger
}

// Service implements the report use cases.
type Service struct {
	store     Store
	queue     Enqueuer
	keys      KeyStore
	cache     Invalidator
	validator *httpx.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{store: cfg.Store, queue: cfg.Queue, keys: cfg.Keys, cache: cfg.Cache, validator: cfg.Validator, logger: cfg.Logger, now: time.Now}
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
		s.validator.WithNow(now)
	}
}

// Generate records a new report job and queues it. Scheduled definitions are
// stored without being queued. A non-empty idempotencyKey may only be used
// once per owner.
func (s *Service) Generate(ctx context.Context, p auth.Principal, req GenerateRequest, idempotencyKey string) (Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return Report{}, err
	}
	if err := req.check(); err != nil {
		return Report{}, err
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" && s.keys != nil {
		key = p.UserID.String() + ":" + key
		if err := s.keys.CheckAndInsert(ctx, key, IdempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Report{}, ErrDuplicateKey
			}
			return Report{}, err
		}
	}

	now := s.now().UTC()
	rep := Report{
		ID:          uuid.New(),
		UserID:      p.UserID,
		ReportType:  Type(req.ReportType),
		Title:       req.Title,
		Description: req.Description,
		Parameters:  req.Parameters.parameters(),
		Status:      StatusGenerating,
		Format:      req.Format,
		Schedule:    req.Schedule.schedule(),
		Sharing:     Sharing{SharedWith: []Recipient{}},
	}
	if rep.Format == "" {
		rep.Format = "pdf"
	}
	if entry, ok := rep.ReportType.Describe(); ok {
		rep.Metadata.Framework = entry.Framework
	}
	action := ActionGenerated
	if rep.Schedule.IsScheduled {
		rep.Status = StatusScheduled
		action = ActionScheduled
	}
	rep.AuditTrail = []AuditEntry{{Action: action, User: p.UserID, Timestamp: now}}

	saved, err := s.store.Insert(ctx, rep)
	if err != nil {
		if key != "" && s.keys != nil {
			if delErr := s.keys.Delete(ctx, key, IdempotencyModule); delErr != nil {
				s.logger.Warn("reports: release idempotency key", slog.Any("error", delErr))
			}
		}
		return Report{}, err
	}
	bump(ctx, s.cache, s.logger, p.UserID)
	if saved.Status != StatusGenerating || s.queue == nil {
		return saved, nil
	}
	if err := s.queue.EnqueueReport(ctx, saved.ID); err != nil {
		// The recovery sweep re-enqueues jobs left in generating.
		s.logger.Warn("reports: enqueue generation failed", slog.String("report_id", saved.ID.String()), slog.Any("error", err))
	}
	return saved, nil
}

// Get loads one of the principal's reports.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (Report, error) {
	return s.store.Get(ctx, p.UserID, id)
}

// List returns a page of the principal's reports.
func (s *Service) List(ctx context.Context, p auth.Principal, filter ListFilter) ([]Report, httpx.Pagination, error) {
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
		out = []Report{}
	}
	return out, httpx.NewPagination(filter.Page, filter.Limit, total), nil
}

// Recent returns the owner's five latest reports.
func (s *Service) Recent(ctx context.Context, owner uuid.UUID) ([]Summary, error) {
	return s.store.Recent(ctx, owner, 5)
}

// Download records a download of a completed report.
func (s *Service) Download(ctx context.Context, p auth.Principal, id uuid.UUID) (Download, error) {
	rep, err := s.store.Get(ctx, p.UserID, id)
	if err != nil {
		return Download{}, err
	}
	if rep.Status != StatusCompleted {
		return Download{}, ErrReportNotReady
	}
	rep, err = s.store.RecordDownload(ctx, p.UserID, id, AuditEntry{Action: ActionDownloaded, User: p.UserID, Timestamp: s.now().UTC()})
	if err != nil {
		return Download{}, err
	}
	return downloadFor(rep), nil
}

func downloadFor(rep Report) Download {
	year := "report"
	if rep.Parameters.ReportingPeriod.Year != nil {
		year = fmt.Sprintf("%d", *rep.Parameters.ReportingPeriod.Year)
	}
	size := rep.FileInfo.Size
	if size <= 0 {
		size = defaultFileSize
	}
	return Download{
		Filename:    fmt.Sprintf("%s_%s.%s", rep.ReportType, year, rep.Format),
		DownloadURL: "/api/reports/" + rep.ID.String() + "/file",
		Size:        size,
	}
}

// Share updates who may see a report. Making a report public issues a share
// token; making it private revokes it.
func (s *Service) Share(ctx context.Context, p auth.Principal, id uuid.UUID, req ShareRequest) (Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return Report{}, err
	}
	rep, err := s.store.Get(ctx, p.UserID, id)
	if err != nil {
		return Report{}, err
	}
	now := s.now().UTC()
	sharing := rep.Sharing
	if req.IsPublic != nil {
		sharing.IsPublic = *req.IsPublic
	}
	switch {
	case sharing.IsPublic && sharing.ShareToken == "":
		sharing.ShareToken = uuid.NewString()
	case !sharing.IsPublic:
		sharing.ShareToken = ""
	}
	permission := req.Permission
	if permission == "" {
		permission = "view"
	}
	for _, email := range req.Emails {
		email = strings.ToLower(strings.TrimSpace(email))
		replaced := false
		for i := range sharing.SharedWith {
			if sharing.SharedWith[i].Email == email {
				sharing.SharedWith[i].Permission = permission
				sharing.SharedWith[i].SharedAt = now
				replaced = true
			}
		}
		if !replaced {
			sharing.SharedWith = append(sharing.SharedWith, Recipient{Email: email, Permission: permission, SharedAt: now})
		}
	}
	if sharing.SharedWith == nil {
		sharing.SharedWith = []Recipient{}
	}
	entry := AuditEntry{
		Action:    ActionShared,
		User:      p.UserID,
		Timestamp: now,
		Details:   fmt.Sprintf("public=%t recipients=%d", sharing.IsPublic, len(req.Emails)),
	}
	return s.store.SaveSharing(ctx, p.UserID, id, sharing, entry)
}

func bump(ctx context.Context, cache Invalidator, logger *slog.Logger, owner uuid.UUID) {
	if cache == nil {
		return
	}
	if err := cache.Bump(ctx, owner); err != nil {
		logger.Warn("reports: invalidate dashboard cache", slog.String("owner", owner.String()), slog.Any("error", err))
	}
}
