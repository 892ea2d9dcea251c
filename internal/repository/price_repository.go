package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// PriceStageRepo provides data access to time-staged price modifiers. The
// overlapping-window invariant is enforced at write time: two stages in the
// same scope (same zone, or both event-wide) may never overlap.
type PriceStageRepo struct {
	db *sql.DB
}

// NewPriceStageRepo returns a PriceStageRepo bound to the provided database.
func NewPriceStageRepo(db *sql.DB) *PriceStageRepo { return &PriceStageRepo{db: db} }

const stageCols = `id, tenant_id, event_id, zone_id, name, ordinal, starts_at, ends_at, type, value, is_active, created_at`

// Create inserts a stage after checking the overlap invariant within the
// same transaction, so two concurrent writers cannot both slip in.
func (r *PriceStageRepo) Create(ctx context.Context, s *model.PriceStage) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	if s.Type != model.StagePercentage && s.Type != model.StageFixedAdd {
		return domain.Validationf("stage type %q", s.Type)
	}
	if !s.StartsAt.Before(s.EndsAt) {
		return domain.Validationf("stage window start must precede end")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	overlap, err := r.overlapsTx(ctx, tx, tid, s)
	if err != nil {
		return err
	}
	if overlap {
		return domain.Validationf("overlapping price stage window in same scope")
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO price_stages (tenant_id, event_id, zone_id, name, ordinal, starts_at, ends_at, type, value, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		tid, s.EventID, nullUint64(s.ZoneID), s.Name, s.Ordinal,
		s.StartsAt.UTC(), s.EndsAt.UTC(), s.Type, s.Value.String())
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	id, _ := res.LastInsertId()
	s.ID = uint64(id)
	s.TenantID = tid
	s.IsActive = true
	return nil
}

// overlapsTx reports whether an active stage in the same scope overlaps the
// candidate window. Scope match: both event-wide, or same zone id.
func (r *PriceStageRepo) overlapsTx(ctx context.Context, tx *sql.Tx, tid uint64, s *model.PriceStage) (bool, error) {
	q := `SELECT COUNT(*) FROM price_stages
	      WHERE tenant_id = ? AND event_id = ? AND is_active = 1
	        AND starts_at < ? AND ends_at > ?`
	args := []any{tid, s.EventID, s.EndsAt.UTC(), s.StartsAt.UTC()}
	if s.ZoneID == nil {
		q += ` AND zone_id IS NULL`
	} else {
		q += ` AND zone_id = ?`
		args = append(args, *s.ZoneID)
	}
	var n int
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActiveAt returns the active stages of an event whose window contains
// instant at, for the given zone plus the event-wide ones. Ordering is by
// ordinal with id as the stable tie-breaker, zone-scoped rows first.
func (r *PriceStageRepo) ActiveAt(ctx context.Context, eventID, zoneID uint64, at time.Time) ([]model.PriceStage, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stageCols+` FROM price_stages
		 WHERE tenant_id = ? AND event_id = ? AND is_active = 1
		   AND (zone_id = ? OR zone_id IS NULL)
		   AND starts_at <= ? AND ends_at >= ?
		 ORDER BY (zone_id IS NULL), ordinal, id`,
		tid, eventID, zoneID, at.UTC(), at.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PriceStage
	for rows.Next() {
		s, err := scanStage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Deactivate retires a stage. Stages are never deleted; receipts reference
// them by id.
func (r *PriceStageRepo) Deactivate(ctx context.Context, id uint64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE price_stages SET is_active = 0 WHERE id = ? AND tenant_id = ?`, id, tid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("price stage %d", id)
	}
	return nil
}

func scanStage(scan func(dest ...any) error) (*model.PriceStage, error) {
	var s model.PriceStage
	var zone sql.NullInt64
	var value string
	err := scan(&s.ID, &s.TenantID, &s.EventID, &zone, &s.Name, &s.Ordinal,
		&s.StartsAt, &s.EndsAt, &s.Type, &value, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("price stage")
	}
	if err != nil {
		return nil, err
	}
	s.ZoneID = scanNullUint64(zone)
	if s.Value, err = decimal.NewFromString(value); err != nil {
		return nil, err
	}
	return &s, nil
}

// RowPricingRepo provides data access to per-row price offsets, unique per
// (zone, row).
type RowPricingRepo struct {
	db *sql.DB
}

// NewRowPricingRepo returns a RowPricingRepo bound to the provided database.
func NewRowPricingRepo(db *sql.DB) *RowPricingRepo { return &RowPricingRepo{db: db} }

// Upsert creates or replaces the offset of one row.
func (r *RowPricingRepo) Upsert(ctx context.Context, p *model.RowPricing) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO row_pricing (tenant_id, zone_id, row_label, offset_amount)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE offset_amount = VALUES(offset_amount)`,
		tid, p.ZoneID, p.RowLabel, p.Offset.StringFixed(2))
	return err
}

// Get returns the offset of one row, or ErrNotFound when none is set.
func (r *RowPricingRepo) Get(ctx context.Context, zoneID uint64, rowLabel string) (*model.RowPricing, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	var p model.RowPricing
	var offset string
	err = r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, zone_id, row_label, offset_amount
		 FROM row_pricing WHERE zone_id = ? AND row_label = ? AND tenant_id = ?`,
		zoneID, rowLabel, tid).
		Scan(&p.ID, &p.TenantID, &p.ZoneID, &p.RowLabel, &offset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("row pricing %s", rowLabel)
	}
	if err != nil {
		return nil, err
	}
	if p.Offset, err = decimal.NewFromString(offset); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes the offset of one row. Idempotent.
func (r *RowPricingRepo) Delete(ctx context.Context, zoneID uint64, rowLabel string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM row_pricing WHERE zone_id = ? AND row_label = ? AND tenant_id = ?`,
		zoneID, rowLabel, tid)
	return err
}
