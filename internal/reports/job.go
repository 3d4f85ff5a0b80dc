package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-carbon/internal/emissions"
	jobmetrics "github.com/odyssey-erp/odyssey-carbon/internal/jobs"
	"github.com/odyssey-erp/odyssey-carbon/internal/suppliers"
	"github.com/odyssey-erp/odyssey-carbon/jobs"
)

// EmissionSource supplies the records a report aggregates.
type EmissionSource interface {
	ForReport(ctx context.Context, owner uuid.UUID, filter emissions.ReportFilter) ([]emissions.Record, error)
}

// SupplierSource supplies the owner's active suppliers.
type SupplierSource interface {
	ListActive(ctx context.Context, owner uuid.UUID) ([]suppliers.Supplier, error)
}

// JobConfig wires dependencies required by the worker job.
type JobConfig struct {
	Store      Store
	Emissions  EmissionSource
	Suppliers  SupplierSource
	Queue      Enqueuer
	Cache      Invalidator
	Metrics    *jobmetrics.Metrics
	Logger     *slog.Logger
	Timeout    time.Duration
	StaleAfter time.Duration
}

// Job generates report payloads for jobs coming from the queue.
type Job struct {
	store      Store
	emissions  EmissionSource
	suppliers  SupplierSource
	queue      Enqueuer
	cache      Invalidator
	metrics    *jobmetrics.Metrics
	logger     *slog.Logger
	timeout    time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewJob constructs a Job handler.
func NewJob(cfg JobConfig) *Job {
	j := &Job{
		store:      cfg.Store,
		emissions:  cfg.Emissions,
		suppliers:  cfg.Suppliers,
		queue:      cfg.Queue,
		cache:      cfg.Cache,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		timeout:    cfg.Timeout,
		staleAfter: cfg.StaleAfter,
		now:        time.Now,
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	if j.staleAfter <= 0 {
		j.staleAfter = 15 * time.Minute
	}
	return j
}

// WithClock overrides the time source used for generatedAt and durations.
func (j *Job) WithClock(now func() time.Time) *Job {
	if now != nil {
		j.now = now
	}
	return j
}

// Handle fulfils the asynq.HandlerFunc contract for report generation.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	var payload jobs.ReportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	id, err := uuid.Parse(payload.ReportID)
	if err != nil {
		return asynq.SkipRetry
	}
	return j.Generate(ctx, id)
}

// Generate moves a generating job to completed or failed. Jobs in any other
// state are left untouched so redelivered tasks are harmless.
func (j *Job) Generate(ctx context.Context, id uuid.UUID) (err error) {
	if j == nil || j.store == nil || j.emissions == nil || j.suppliers == nil {
		return fmt.Errorf("reports: job not configured")
	}
	tracker := j.metrics.Track("report_generate")
	defer func() { err = tracker.End(err) }()

	logger := j.logger.With(slog.String("job", "report_generate"), slog.String("report_id", id.String()))
	rep, err := j.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return asynq.SkipRetry
		}
		// The failed write is conditional, so a resolved report stays as is.
		// If it cannot be written either, the recovery sweep picks the job up.
		err = fmt.Errorf("load report: %w", err)
		j.fail(ctx, logger, id, err)
		j.metrics.ObserveReport(string(StatusFailed))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if rep.Status != StatusGenerating {
		logger.Debug("report not generating, skipping", slog.String("status", string(rep.Status)))
		return nil
	}

	started := j.now()
	runCtx := ctx
	if j.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	payload, points, err := j.build(runCtx, rep)
	if err == nil {
		meta := rep.Metadata
		meta.GenerationTime = j.now().Sub(started).Milliseconds()
		meta.DataPoints = points
		meta.Error = ""
		err = j.store.MarkCompleted(runCtx, id, payload, meta)
		if errors.Is(err, ErrInvalidStatus) {
			logger.Info("report already resolved elsewhere")
			return nil
		}
	}
	if err != nil {
		j.fail(ctx, logger, id, err)
		j.metrics.ObserveReport(string(StatusFailed))
		bump(context.WithoutCancel(ctx), j.cache, logger, rep.UserID)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	j.metrics.ObserveReport(string(StatusCompleted))
	bump(ctx, j.cache, logger, rep.UserID)
	logger.Info("report completed", slog.Int("data_points", points), slog.Float64("grand_total", payload.Emissions.GrandTotal))
	return nil
}

func (j *Job) build(ctx context.Context, rep Report) (Payload, int, error) {
	params := rep.Parameters
	filter := emissions.ReportFilter{
		Start:        params.ReportingPeriod.StartDate.Time,
		End:          params.ReportingPeriod.EndDate.Time,
		VerifiedOnly: params.IncludeVerifiedOnly,
	}
	for _, s := range params.Scopes {
		filter.Scopes = append(filter.Scopes, emissions.Scope(s))
	}
	records, err := j.emissions.ForReport(ctx, rep.UserID, filter)
	if err != nil {
		return Payload{}, 0, fmt.Errorf("load emissions: %w", err)
	}
	active, err := j.suppliers.ListActive(ctx, rep.UserID)
	if err != nil {
		return Payload{}, 0, fmt.Errorf("load suppliers: %w", err)
	}
	active = selectSuppliers(active, params.Suppliers)
	payload, err := Aggregate(records, active, j.now())
	if err != nil {
		return Payload{}, 0, err
	}
	return payload, len(records) + len(active), nil
}

func selectSuppliers(active []suppliers.Supplier, ids []uuid.UUID) []suppliers.Supplier {
	if len(ids) == 0 {
		return active
	}
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]suppliers.Supplier, 0, len(ids))
	for _, s := range active {
		if _, ok := wanted[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// fail writes the failed state on a context that survives the task deadline.
func (j *Job) fail(ctx context.Context, logger *slog.Logger, id uuid.UUID, cause error) {
	logger.Error("report generation failed", slog.Any("error", cause))
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := j.store.MarkFailed(writeCtx, id, cause.Error()); err != nil && !errors.Is(err, ErrInvalidStatus) {
		logger.Error("mark report failed", slog.Any("error", err))
	}
}

// HandleRecover fulfils the asynq.HandlerFunc contract for the recovery sweep.
func (j *Job) HandleRecover(ctx context.Context, _ *asynq.Task) error {
	_, err := j.Recover(ctx)
	return err
}

// Recover re-enqueues jobs stuck in generating for longer than the stale
// threshold and returns how many were queued.
func (j *Job) Recover(ctx context.Context) (n int, err error) {
	if j == nil || j.store == nil || j.queue == nil {
		return 0, fmt.Errorf("reports: recovery not configured")
	}
	tracker := j.metrics.Track("report_recover")
	defer func() { err = tracker.End(err) }()

	ids, err := j.store.StaleGenerating(ctx, j.now().Add(-j.staleAfter), 100)
	if err != nil {
		return 0, err
	}
	var errs []error
	for _, id := range ids {
		if err := j.queue.EnqueueReport(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("report %s: %w", id, err))
			continue
		}
		n++
	}
	if n > 0 {
		j.logger.Info("requeued stale reports", slog.String("job", "report_recover"), slog.Int("count", n))
	}
	return n, errors.Join(errs...)
}
