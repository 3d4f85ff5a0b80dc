package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists report jobs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, user_id, report_type, title, COALESCE(description, ''), status, format, parameters, data,
    file_info, schedule, metadata, sharing, audit_trail, created_at, updated_at`

// Insert stores a new report job.
func (r *Repository) Insert(ctx context.Context, rep Report) (Report, error) {
	if r == nil || r.pool == nil {
		return Report{}, fmt.Errorf("reports: repository not initialised")
	}
	docs, err := encode(rep.Parameters, rep.FileInfo, rep.Schedule, rep.Metadata, rep.Sharing, rep.AuditTrail)
	if err != nil {
		return Report{}, err
	}
	query := `INSERT INTO reports (id, user_id, report_type, title, description, status, format,
    parameters, file_info, schedule, metadata, sharing, audit_trail)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING ` + reportColumns
	return scanReport(r.pool.QueryRow(ctx, query, rep.ID, rep.UserID, string(rep.ReportType), rep.Title, rep.Description,
		string(rep.Status), rep.Format, docs[0], docs[1], docs[2], docs[3], docs[4], docs[5]))
}

// Get loads a report owned by owner.
func (r *Repository) Get(ctx context.Context, owner, id uuid.UUID) (Report, error) {
	if r == nil || r.pool == nil {
		return Report{}, fmt.Errorf("reports: repository not initialised")
	}
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1 AND user_id = $2`
	rep, err := scanReport(r.pool.QueryRow(ctx, query, id, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	return rep, err
}

// Load fetches a report by id regardless of owner. Only the worker uses it.
func (r *Repository) Load(ctx context.Context, id uuid.UUID) (Report, error) {
	if r == nil || r.pool == nil {
		return Report{}, fmt.Errorf("reports: repository not initialised")
	}
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	rep, err := scanReport(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	return rep, err
}

// List returns a page of the owner's reports, newest first.
func (r *Repository) List(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]Report, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, fmt.Errorf("reports: repository not initialised")
	}
	var kind, status *string
	if filter.ReportType != nil {
		v := string(*filter.ReportType)
		kind = &v
	}
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}
	const where = `WHERE user_id = $1
  AND ($2::text IS NULL OR report_type = $2)
  AND ($3::text IS NULL OR status = $3)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports `+where, owner, kind, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + reportColumns + ` FROM reports ` + where + `
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, query, owner, kind, status, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rep)
	}
	return out, total, rows.Err()
}

// Recent returns the owner's latest reports in short form.
func (r *Repository) Recent(ctx context.Context, owner uuid.UUID, limit int) ([]Summary, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports: repository not initialised")
	}
	const query = `SELECT id, report_type, title, status, created_at
FROM reports WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2`
	rows, err := r.pool.Query(ctx, query, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var (
			s            Summary
			kind, status string
		)
		if err := rows.Scan(&s.ID, &kind, &s.Title, &status, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.ReportType = Type(kind)
		s.Status = Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// MarkCompleted stores the payload of a generating job.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, payload Payload, meta Metadata) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("reports: repository not initialised")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("reports: encode payload: %w", err)
	}
	metadata, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("reports: encode metadata: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE reports
SET status = 'completed', data = $2, metadata = $3, updated_at = NOW()
WHERE id = $1 AND status = 'generating'`, id, data, metadata)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// MarkFailed records the failure of a generating job.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("reports: repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE reports
SET status = 'failed', metadata = metadata || jsonb_build_object('error', $2::text), updated_at = NOW()
WHERE id = $1 AND status = 'generating'`, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// RecordDownload increments the download counter of a completed report and
// appends entry to its audit trail.
func (r *Repository) RecordDownload(ctx context.Context, owner, id uuid.UUID, entry AuditEntry) (Report, error) {
	if r == nil || r.pool == nil {
		return Report{}, fmt.Errorf("reports: repository not initialised")
	}
	audit, err := json.Marshal([]AuditEntry{entry})
	if err != nil {
		return Report{}, err
	}
	query := `UPDATE reports
SET file_info = jsonb_set(file_info, '{downloadCount}', to_jsonb(COALESCE((file_info->>'downloadCount')::int, 0) + 1)),
    audit_trail = audit_trail || $3::jsonb,
    updated_at = NOW()
WHERE id = $1 AND user_id = $2 AND status = 'completed'
RETURNING ` + reportColumns
	rep, err := scanReport(r.pool.QueryRow(ctx, query, id, owner, audit))
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrReportNotReady
	}
	return rep, err
}

// SaveSharing replaces the sharing settings and appends entry to the audit trail.
func (r *Repository) SaveSharing(ctx context.Context, owner, id uuid.UUID, sharing Sharing, entry AuditEntry) (Report, error) {
	if r == nil || r.pool == nil {
		return Report{}, fmt.Errorf("reports: repository not initialised")
	}
	doc, err := json.Marshal(sharing)
	if err != nil {
		return Report{}, err
	}
	audit, err := json.Marshal([]AuditEntry{entry})
	if err != nil {
		return Report{}, err
	}
	query := `UPDATE reports
SET sharing = $3, audit_trail = audit_trail || $4::jsonb, updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING ` + reportColumns
	rep, err := scanReport(r.pool.QueryRow(ctx, query, id, owner, doc, audit))
	if errors.Is(err, pgx.ErrNoRows) {
		return Report{}, ErrReportNotFound
	}
	return rep, err
}

// StaleGenerating lists jobs still generating that were last touched before cutoff.
func (r *Repository) StaleGenerating(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("reports: repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM reports
WHERE status = 'generating' AND updated_at < $1
ORDER BY updated_at
LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func encode(values ...any) ([][]byte, error) {
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("reports: encode document: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func scanReport(row pgx.Row) (Report, error) {
	var (
		rep                                                  Report
		kind, status                                         string
		params, data, fileInfo, schedule, meta, share, audit []byte
	)
	if err := row.Scan(&rep.ID, &rep.UserID, &kind, &rep.Title, &rep.Description, &status, &rep.Format, &params, &data,
		&fileInfo, &schedule, &meta, &share, &audit, &rep.CreatedAt, &rep.UpdatedAt); err != nil {
		return Report{}, err
	}
	rep.ReportType = Type(kind)
	rep.Status = Status(status)
	targets := []struct {
		raw  []byte
		dest any
	}{
		{params, &rep.Parameters},
		{fileInfo, &rep.FileInfo},
		{schedule, &rep.Schedule},
		{meta, &rep.Metadata},
		{share, &rep.Sharing},
		{audit, &rep.AuditTrail},
	}
	for _, t := range targets {
		if len(t.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(t.raw, t.dest); err != nil {
			return Report{}, fmt.Errorf("reports: decode document: %w", err)
		}
	}
	if len(data) > 0 && string(data) != "null" {
		var payload Payload
		if err := json.Unmarshal(data, &payload); err != nil {
			return Report{}, fmt.Errorf("reports: decode payload: %w", err)
		}
		rep.Data = &payload
	}
	return rep, nil
}
