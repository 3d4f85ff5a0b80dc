// Package reports tracks report jobs from request to completion and
// computes their payload from emission and supplier records.
package reports

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// Status enumerates the report job lifecycle.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusScheduled  Status = "scheduled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusGenerating, StatusCompleted, StatusFailed, StatusScheduled:
		return true
	}
	return false
}

// Terminal reports whether no further generation transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AuditAction enumerates audit trail entries.
type AuditAction string

const (
	ActionGenerated  AuditAction = "generated"
	ActionDownloaded AuditAction = "downloaded"
	ActionShared     AuditAction = "shared"
	ActionModified   AuditAction = "modified"
	ActionScheduled  AuditAction = "scheduled"
)

// Report is a persisted report job.
type Report struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user"`
	ReportType  Type         `json:"reportType"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Parameters  Parameters   `json:"parameters"`
	Data        *Payload     `json:"data,omitempty"`
	Status      Status       `json:"status"`
	Format      string       `json:"format"`
	FileInfo    FileInfo     `json:"fileInfo"`
	Schedule    Schedule     `json:"schedule"`
	Metadata    Metadata     `json:"metadata"`
	Sharing     Sharing      `json:"sharing"`
	AuditTrail  []AuditEntry `json:"auditTrail"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Parameters select the records a report aggregates.
type Parameters struct {
	ReportingPeriod     PeriodRange `json:"reportingPeriod"`
	Scopes              []int       `json:"scopes"`
	Locations           []string    `json:"locations"`
	Suppliers           []uuid.UUID `json:"suppliers"`
	IncludeVerifiedOnly bool        `json:"includeVerifiedOnly"`
	Currency            string      `json:"currency"`
}

// PeriodRange is the inclusive date range of a report.
type PeriodRange struct {
	StartDate httpx.Date `json:"startDate"`
	EndDate   httpx.Date `json:"endDate"`
	Year      *int       `json:"year,omitempty"`
	Quarter   *int       `json:"quarter,omitempty"`
}

type FileInfo struct {
	Filename      string `json:"filename,omitempty"`
	Path          string `json:"path,omitempty"`
	Size          int64  `json:"size,omitempty"`
	DownloadCount int    `json:"downloadCount"`
}

type Schedule struct {
	IsScheduled bool        `json:"isScheduled"`
	Frequency   string      `json:"frequency,omitempty"`
	NextRun     *httpx.Date `json:"nextRun,omitempty"`
	LastRun     *httpx.Date `json:"lastRun,omitempty"`
	Recipients  []string    `json:"recipients"`
	IsActive    bool        `json:"isActive"`
}

// Metadata records how a payload was produced.
type Metadata struct {
	GenerationTime int64  `json:"generationTime,omitempty"`
	DataPoints     int    `json:"dataPoints"`
	Framework      string `json:"framework,omitempty"`
	Version        string `json:"version,omitempty"`
	Methodology    string `json:"methodology,omitempty"`
	Error          string `json:"error,omitempty"`
}

type Sharing struct {
	IsPublic   bool        `json:"isPublic"`
	ShareToken string      `json:"shareToken,omitempty"`
	SharedWith []Recipient `json:"sharedWith"`
}

type Recipient struct {
	Email      string    `json:"email"`
	Permission string    `json:"permission"`
	SharedAt   time.Time `json:"sharedAt"`
}

// AuditEntry is one append-only audit trail line.
type AuditEntry struct {
	Action    AuditAction `json:"action"`
	User      uuid.UUID   `json:"user"`
	Timestamp time.Time   `json:"timestamp"`
	Details   string      `json:"details,omitempty"`
}

// Download describes where a completed report can be fetched.
type Download struct {
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
	Size        int64  `json:"size"`
}

// ListFilter narrows the owner's reports.
type ListFilter struct {
	ReportType *Type
	Status     *Status
	Page       int
	Limit      int
}

// Summary is the short form used by the dashboard.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	ReportType Type      `json:"reportType"`
	Title      string    `json:"title"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// defaultFileSize is reported for downloads until artefacts are rendered.
const defaultFileSize = 1024000

var (
	ErrReportNotFound = httpx.NewError(httpx.ErrNotFound, "Report not found")
	ErrReportNotReady = httpx.NewError(httpx.ErrNotReady, "Report is not ready for download")
	ErrDuplicateKey   = httpx.NewError(httpx.ErrDuplicate, "Report generation already requested with this Idempotency-Key")
	// ErrInvalidStatus is returned when a conditional status write finds the
	// job outside the expected state.
	ErrInvalidStatus = errors.New("reports: invalid status transition")
)
