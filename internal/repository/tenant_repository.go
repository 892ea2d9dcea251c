package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// TenantRepo provides lookup access to tenants. It is the only repository
// that does not take a tenant-scoped context: it runs at request ingress,
// before the scope exists.
type TenantRepo struct {
	db *sql.DB
}

// NewTenantRepo returns a TenantRepo bound to the provided database.
func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{db: db} }

const tenantCols = `id, slug, name, is_active, created_at`

// GetByID fetches a tenant by primary key.
func (r *TenantRepo) GetByID(ctx context.Context, id uint64) (*model.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

// GetBySlug fetches a tenant by its unique slug.
func (r *TenantRepo) GetBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE slug = ?`, slug)
	return scanTenant(row)
}

// ListActive returns every active tenant. The background sweeps iterate
// this list so each pass stays tenant-scoped.
func (r *TenantRepo) ListActive(ctx context.Context) ([]model.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTenant(row *sql.Row) (*model.Tenant, error) {
	var t model.Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("tenant")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
