package emissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-carbon/internal/platform/db"
)

// Repository persists emission records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const recordColumns = `id, user_id, company, scope, year, quarter, month, entries, total_co2e, status, methodology, last_modified, created_at, updated_at`

// Insert stores a new record.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, fmt.Errorf("emissions: repository not initialised")
	}
	return insertRecord(ctx, r.pool, rec)
}

// InsertMany stores records atomically.
func (r *Repository) InsertMany(ctx context.Context, recs []Record) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("emissions: repository not initialised")
	}
	out := make([]Record, 0, len(recs))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rec := range recs {
			saved, err := insertRecord(ctx, tx, rec)
			if err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertRecord(ctx context.Context, q queryRower, rec Record) (Record, error) {
	entries, methodology, err := marshalDocument(rec)
	if err != nil {
		return Record{}, err
	}
	start, end := rec.ReportingPeriod.Bounds()
	query := `INSERT INTO emission_records (id, user_id, company, scope, year, quarter, month, period_start, period_end,
    entries, entry_count, total_co2e, status, methodology, last_modified)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
RETURNING ` + recordColumns
	return scanRecord(q.QueryRow(ctx, query,
		rec.ID, rec.UserID, rec.Company, int(rec.Scope), rec.ReportingPeriod.Year, rec.ReportingPeriod.Quarter, rec.ReportingPeriod.Month,
		start, end, entries, len(rec.Entries), rec.TotalCO2e, string(rec.Status), methodology, rec.LastModified))
}

// Get loads a record owned by owner.
func (r *Repository) Get(ctx context.Context, owner, id uuid.UUID) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, fmt.Errorf("emissions: repository not initialised")
	}
	query := `SELECT ` + recordColumns + ` FROM emission_records WHERE id = $1 AND user_id = $2`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return rec, err
}

// List returns a page of the owner's records and the total match count.
func (r *Repository) List(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]Record, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, fmt.Errorf("emissions: repository not initialised")
	}
	var scope, year *int
	var status *string
	if filter.Scope != nil {
		v := int(*filter.Scope)
		scope = &v
	}
	if filter.Year != nil {
		year = filter.Year
	}
	if filter.Status != nil {
		v := string(*filter.Status)
		status = &v
	}
	const where = `WHERE user_id = $1
  AND ($2::smallint IS NULL OR scope = $2)
  AND ($3::int IS NULL OR year = $3)
  AND ($4::text IS NULL OR status = $4)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emission_records `+where, owner, scope, year, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + recordColumns + ` FROM emission_records ` + where + `
ORDER BY year DESC, scope ASC, created_at DESC, id
LIMIT $5 OFFSET $6`
	rows, err := r.pool.Query(ctx, query, owner, scope, year, status, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

// Update overwrites the mutable fields of rec.
func (r *Repository) Update(ctx context.Context, rec Record) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, fmt.Errorf("emissions: repository not initialised")
	}
	entries, methodology, err := marshalDocument(rec)
	if err != nil {
		return Record{}, err
	}
	start, end := rec.ReportingPeriod.Bounds()
	query := `UPDATE emission_records
SET scope = $3, year = $4, quarter = $5, month = $6, period_start = $7, period_end = $8,
    entries = $9, entry_count = $10, total_co2e = $11, status = $12, methodology = $13,
    last_modified = $14, updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING ` + recordColumns
	saved, err := scanRecord(r.pool.QueryRow(ctx, query,
		rec.ID, rec.UserID, int(rec.Scope), rec.ReportingPeriod.Year, rec.ReportingPeriod.Quarter, rec.ReportingPeriod.Month,
		start, end, entries, len(rec.Entries), rec.TotalCO2e, string(rec.Status), methodology, rec.LastModified))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return saved, err
}

// Delete removes a record owned by owner.
func (r *Repository) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("emissions: repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM emission_records WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SummaryByScope groups the owner's records of year by scope.
func (r *Repository) SummaryByScope(ctx context.Context, owner uuid.UUID, year int) ([]ScopeSummary, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("emissions: repository not initialised")
	}
	const query = `SELECT scope, COALESCE(SUM(total_co2e), 0), COALESCE(SUM(entry_count), 0), MAX(last_modified)
FROM emission_records
WHERE user_id = $1 AND year = $2
GROUP BY scope
ORDER BY scope`
	rows, err := r.pool.Query(ctx, query, owner, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ScopeSummary{}
	for rows.Next() {
		var (
			s       ScopeSummary
			scope   int
			entries int64
			last    *time.Time
		)
		if err := rows.Scan(&scope, &s.TotalCO2e, &entries, &last); err != nil {
			return nil, err
		}
		s.Scope = Scope(scope)
		s.EntryCount = int(entries)
		s.LastUpdated = last
		out = append(out, s)
	}
	return out, rows.Err()
}

// MonthlyTotals groups the owner's records of year by scope and month.
func (r *Repository) MonthlyTotals(ctx context.Context, owner uuid.UUID, year int) ([]MonthlyTotal, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("emissions: repository not initialised")
	}
	const query = `SELECT scope, month, COALESCE(SUM(total_co2e), 0)
FROM emission_records
WHERE user_id = $1 AND year = $2
GROUP BY scope, month
ORDER BY month ASC NULLS FIRST, scope ASC`
	rows, err := r.pool.Query(ctx, query, owner, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []MonthlyTotal{}
	for rows.Next() {
		var (
			m     MonthlyTotal
			scope int
		)
		if err := rows.Scan(&scope, &m.Month, &m.TotalCO2e); err != nil {
			return nil, err
		}
		m.Scope = Scope(scope)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ForReport returns the owner's records whose reporting period lies inside
// the filter's date range, in a stable order.
func (r *Repository) ForReport(ctx context.Context, owner uuid.UUID, filter ReportFilter) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("emissions: repository not initialised")
	}
	scopes := make([]int16, 0, len(filter.Scopes))
	for _, s := range filter.Scopes {
		scopes = append(scopes, int16(s))
	}
	query := `SELECT ` + recordColumns + `
FROM emission_records
WHERE user_id = $1
  AND period_start >= $2::date
  AND period_end <= $3::date
  AND (cardinality($4::smallint[]) = 0 OR scope = ANY($4))
  AND (NOT $5 OR status IN ('verified', 'published'))
ORDER BY year, scope, created_at, id`
	rows, err := r.pool.Query(ctx, query, owner, filter.Start, filter.End, scopes, filter.VerifiedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func marshalDocument(rec Record) ([]byte, []byte, error) {
	entries, err := json.Marshal(rec.Entries)
	if err != nil {
		return nil, nil, fmt.Errorf("emissions: encode entries: %w", err)
	}
	methodology, err := json.Marshal(rec.Methodology)
	if err != nil {
		return nil, nil, fmt.Errorf("emissions: encode methodology: %w", err)
	}
	return entries, methodology, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec         Record
		scope       int
		status      string
		entries     []byte
		methodology []byte
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Company, &scope, &rec.ReportingPeriod.Year, &rec.ReportingPeriod.Quarter,
		&rec.ReportingPeriod.Month, &entries, &rec.TotalCO2e, &status, &methodology, &rec.LastModified, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Scope = Scope(scope)
	rec.Status = Status(status)
	if len(entries) > 0 {
		if err := json.Unmarshal(entries, &rec.Entries); err != nil {
			return Record{}, fmt.Errorf("emissions: decode entries: %w", err)
		}
	}
	if rec.Entries == nil {
		rec.Entries = []Entry{}
	}
	if len(methodology) > 0 {
		if err := json.Unmarshal(methodology, &rec.Methodology); err != nil {
			return Record{}, fmt.Errorf("emissions: decode methodology: %w", err)
		}
	}
	return rec, nil
}

func itoa(i int) string { return strconv.Itoa(i) }
