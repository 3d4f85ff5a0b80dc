package suppliers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists suppliers in PostgreSQL. The document is stored as
// JSONB next to the columns used for filtering and sorting.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const supplierColumns = `id, user_id, state, document, created_at, updated_at`

// Insert stores a new supplier.
func (r *Repository) Insert(ctx context.Context, s Supplier) (Supplier, error) {
	if r == nil || r.pool == nil {
		return Supplier{}, fmt.Errorf("suppliers: repository not initialised")
	}
	doc, err := json.Marshal(s.Document)
	if err != nil {
		return Supplier{}, fmt.Errorf("suppliers: encode document: %w", err)
	}
	query := `INSERT INTO suppliers (id, user_id, name, relationship_type, tier, connection_status, verification_level, total_co2e, state, document)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING ` + supplierColumns
	return scanSupplier(r.pool.QueryRow(ctx, query, s.ID, s.UserID, s.Company.Name, s.Relationship.Type, s.Relationship.Tier,
		string(s.ConnectionStatus), s.EmissionsData.VerificationLevel, s.EmissionsData.TotalCO2e, string(s.State), doc))
}

// Get loads a supplier owned by owner, archived or not.
func (r *Repository) Get(ctx context.Context, owner, id uuid.UUID) (Supplier, error) {
	if r == nil || r.pool == nil {
		return Supplier{}, fmt.Errorf("suppliers: repository not initialised")
	}
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE id = $1 AND user_id = $2`
	s, err := scanSupplier(r.pool.QueryRow(ctx, query, id, owner))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, err
}

// List returns a page of active suppliers sorted by total emissions.
func (r *Repository) List(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]Supplier, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, fmt.Errorf("suppliers: repository not initialised")
	}
	var status, kind *string
	if filter.ConnectionStatus != nil {
		v := string(*filter.ConnectionStatus)
		status = &v
	}
	if filter.Type != "" {
		kind = &filter.Type
	}
	const where = `WHERE user_id = $1 AND state = 'active'
  AND ($2::text IS NULL OR connection_status = $2)
  AND ($3::smallint IS NULL OR tier = $3)
  AND ($4::text IS NULL OR relationship_type = $4)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers `+where, owner, status, filter.Tier, kind).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + supplierColumns + ` FROM suppliers ` + where + `
ORDER BY total_co2e DESC, created_at, id
LIMIT $5 OFFSET $6`
	rows, err := r.pool.Query(ctx, query, owner, status, filter.Tier, kind, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collect(rows)
	return out, total, err
}

// ListActive returns every active supplier of owner in creation order.
func (r *Repository) ListActive(ctx context.Context, owner uuid.UUID) ([]Supplier, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("suppliers: repository not initialised")
	}
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE user_id = $1 AND state = 'active' ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Update overwrites the document and derived columns of s.
func (r *Repository) Update(ctx context.Context, s Supplier) (Supplier, error) {
	if r == nil || r.pool == nil {
		return Supplier{}, fmt.Errorf("suppliers: repository not initialised")
	}
	doc, err := json.Marshal(s.Document)
	if err != nil {
		return Supplier{}, fmt.Errorf("suppliers: encode document: %w", err)
	}
	query := `UPDATE suppliers
SET name = $3, relationship_type = $4, tier = $5, connection_status = $6, verification_level = $7,
    total_co2e = $8, document = $9, updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING ` + supplierColumns
	saved, err := scanSupplier(r.pool.QueryRow(ctx, query, s.ID, s.UserID, s.Company.Name, s.Relationship.Type, s.Relationship.Tier,
		string(s.ConnectionStatus), s.EmissionsData.VerificationLevel, s.EmissionsData.TotalCO2e, doc))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	return saved, err
}

// Archive soft-deletes a supplier.
func (r *Repository) Archive(ctx context.Context, owner, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("suppliers: repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE suppliers SET state = 'archived', updated_at = NOW() WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSupplierNotFound
	}
	return nil
}

// Summarise returns the active supplier rollup of owner.
func (r *Repository) Summarise(ctx context.Context, owner uuid.UUID) (Summary, error) {
	if r == nil || r.pool == nil {
		return Summary{}, fmt.Errorf("suppliers: repository not initialised")
	}
	const query = `SELECT COUNT(*),
       COUNT(*) FILTER (WHERE connection_status = 'connected'),
       COALESCE(SUM(total_co2e), 0)
FROM suppliers
WHERE user_id = $1 AND state = 'active'`
	var out Summary
	if err := r.pool.QueryRow(ctx, query, owner).Scan(&out.TotalSuppliers, &out.ConnectedSuppliers, &out.TotalEmissions); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func collect(rows pgx.Rows) ([]Supplier, error) {
	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var (
		s     Supplier
		state string
		doc   []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &state, &doc, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Supplier{}, err
	}
	s.State = State(state)
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &s.Document); err != nil {
			return Supplier{}, fmt.Errorf("suppliers: decode document: %w", err)
		}
	}
	return s, nil
}
