package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueReports carries report generation work.
	QueueReports = "reports"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeReportGenerate computes a report payload.
	TaskTypeReportGenerate = "report:generate"
	// TaskTypeReportRecover re-enqueues report jobs stuck in generating.
	TaskTypeReportRecover = "report:recover"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewSendEmailHandler returns the mail:send handler. Delivery is logged until
// an outbound transport is configured.
func NewSendEmailHandler(logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if strings.TrimSpace(payload.To) == "" {
			return asynq.SkipRetry
		}
		logger.InfoContext(ctx, "send email", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return nil
	}
}

// ReportPayload identifies the report job a task works on.
type ReportPayload struct {
	ReportID string `json:"report_id"`
}

// NewReportGenerateTask constructs the report:generate task.
func NewReportGenerateTask(reportID string) (*asynq.Task, error) {
	data, err := json.Marshal(ReportPayload{ReportID: reportID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReportGenerate, data), nil
}

// NewReportRecoverTask constructs the periodic recovery sweep task.
func NewReportRecoverTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReportRecover, nil)
}

// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
const TaskTypeIdempotencyCleanup = "idempotency:cleanup"

// KeyCleaner removes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewIdempotencyCleanupHandler returns the handler for the cleanup task.
func NewIdempotencyCleanupHandler(keys KeyCleaner, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, _ *asynq.Task) error {
		if keys == nil {
			return errors.New("idempotency cleanup: store not configured")
		}
		removed, err := keys.Cleanup(ctx, retention)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "idempotency keys pruned", slog.Int64("removed", removed))
		return nil
	}
}
