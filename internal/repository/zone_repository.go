package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// ZoneRepo provides CRUD for zones plus the locked reads the hold manager
// needs for general-admission capacity checks.
type ZoneRepo struct {
	db *sql.DB
}

// NewZoneRepo returns a ZoneRepo bound to the provided database.
func NewZoneRepo(db *sql.DB) *ZoneRepo { return &ZoneRepo{db: db} }

// DB exposes the handle so orchestrating services can open transactions.
func (r *ZoneRepo) DB() *sql.DB { return r.db }

const zoneCols = `id, tenant_id, event_id, name, type, capacity, base_price, sold, created_at, updated_at`

// Create inserts a zone. Capacity and base price invariants are enforced
// here, not delegated to storage.
func (r *ZoneRepo) Create(ctx context.Context, z *model.Zone) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	if z.Type != model.ZoneNumbered && z.Type != model.ZoneGeneral {
		return domain.Validationf("zone type %q", z.Type)
	}
	if z.BasePrice.IsNegative() {
		return domain.Validationf("base price must be non-negative")
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO zones (tenant_id, event_id, name, type, capacity, base_price, sold)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		tid, z.EventID, z.Name, z.Type, z.Capacity, z.BasePrice.StringFixed(2))
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	z.ID = uint64(id)
	z.TenantID = tid
	return nil
}

// GetByID fetches a zone within the context tenant.
func (r *ZoneRepo) GetByID(ctx context.Context, id uint64) (*model.Zone, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+zoneCols+` FROM zones WHERE id = ? AND tenant_id = ?`, id, tid)
	return scanZone(row.Scan)
}

// GetForUpdateTx reads a zone row under FOR UPDATE inside tx. The hold
// manager serializes general-admission capacity checks on this lock.
func (r *ZoneRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Zone, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT `+zoneCols+` FROM zones WHERE id = ? AND tenant_id = ? FOR UPDATE`, id, tid)
	return scanZone(row.Scan)
}

// ListByEvent returns the zones of one event.
func (r *ZoneRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Zone, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+zoneCols+` FROM zones WHERE event_id = ? AND tenant_id = ? ORDER BY id`,
		eventID, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Zone
	for rows.Next() {
		z, err := scanZone(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *z)
	}
	return out, rows.Err()
}

// UpdatePricing changes name and base price. Capacity changes go through
// UpdateCapacity which carries the sold+held guard.
func (r *ZoneRepo) UpdatePricing(ctx context.Context, z *model.Zone) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	if z.BasePrice.IsNegative() {
		return domain.Validationf("base price must be non-negative")
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE zones SET name = ?, base_price = ? WHERE id = ? AND tenant_id = ?`,
		z.Name, z.BasePrice.StringFixed(2), z.ID, tid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("zone %d", z.ID)
	}
	return nil
}

// UpdateCapacityTx lowers or raises a general zone's capacity inside tx.
// The caller must already hold the zone row lock and have verified the new
// capacity against sold + live holds.
func (r *ZoneRepo) UpdateCapacityTx(ctx context.Context, tx *sql.Tx, zoneID uint64, capacity uint32) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE zones SET capacity = ? WHERE id = ? AND tenant_id = ?`, capacity, zoneID, tid)
	return err
}

// AddSoldTx bumps the sold counter of a general zone inside tx. Negative
// deltas (refunds) are clamped at zero by the WHERE guard.
func (r *ZoneRepo) AddSoldTx(ctx context.Context, tx *sql.Tx, zoneID uint64, delta int64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE zones SET sold = sold + ? WHERE id = ? AND tenant_id = ? AND sold + ? >= 0`,
		delta, zoneID, tid, delta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("zone %d sold counter underflow", zoneID)
	}
	return nil
}

func scanZone(scan func(dest ...any) error) (*model.Zone, error) {
	var z model.Zone
	var price string
	err := scan(&z.ID, &z.TenantID, &z.EventID, &z.Name, &z.Type, &z.Capacity,
		&price, &z.Sold, &z.CreatedAt, &z.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("zone")
	}
	if err != nil {
		return nil, err
	}
	if z.BasePrice, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &z, nil
}
