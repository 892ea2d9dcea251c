package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// TaxRepo provides data access to tax configurations and the calculation
// history written during checkout.
type TaxRepo struct {
	db *sql.DB
}

// NewTaxRepo returns a TaxRepo bound to the provided database.
func NewTaxRepo(db *sql.DB) *TaxRepo { return &TaxRepo{db: db} }

const taxCols = `id, tenant_id, event_id, name, type, rate, fixed_amount, is_active, effective_from`

// Create inserts a tax config.
func (r *TaxRepo) Create(ctx context.Context, t *model.TaxConfig) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	switch t.Type {
	case model.TaxPercentage, model.TaxCompound:
		if t.Rate.IsNegative() || t.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return domain.Validationf("tax rate must be within 0..1")
		}
	case model.TaxFixed:
		if t.FixedAmount.IsNegative() {
			return domain.Validationf("fixed tax amount must be non-negative")
		}
	default:
		return domain.Validationf("tax type %q", t.Type)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tax_configs (tenant_id, event_id, name, type, rate, fixed_amount, is_active, effective_from)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		tid, nullUint64(t.EventID), t.Name, t.Type, t.Rate.String(),
		t.FixedAmount.StringFixed(2), t.EffectiveFrom.UTC())
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = uint64(id)
	t.TenantID = tid
	t.IsActive = true
	return nil
}

// ActiveAt returns the configs effective at instant at for an event:
// tenant-wide rows plus event rows, with event scope overriding tenant scope
// on name collision. The override is resolved here so the engine stays pure.
func (r *TaxRepo) ActiveAt(ctx context.Context, eventID uint64, at time.Time) ([]model.TaxConfig, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taxCols+` FROM tax_configs
		 WHERE tenant_id = ? AND is_active = 1 AND effective_from <= ?
		   AND (event_id IS NULL OR event_id = ?)
		 ORDER BY name, (event_id IS NULL)`,
		tid, at.UTC(), eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TaxConfig
	seen := make(map[string]bool)
	for rows.Next() {
		var t model.TaxConfig
		var event sql.NullInt64
		var rate, fixed string
		if err := rows.Scan(&t.ID, &t.TenantID, &event, &t.Name, &t.Type,
			&rate, &fixed, &t.IsActive, &t.EffectiveFrom); err != nil {
			return nil, err
		}
		t.EventID = scanNullUint64(event)
		if t.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		if t.FixedAmount, err = decimal.NewFromString(fixed); err != nil {
			return nil, err
		}
		// Event-scoped rows sort first per name; later tenant-wide rows with
		// the same name are shadowed.
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		out = append(out, t)
	}
	return out, rows.Err()
}

// Deactivate retires a tax config. History rows keep referencing it.
func (r *TaxRepo) Deactivate(ctx context.Context, id uint64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE tax_configs SET is_active = 0 WHERE id = ? AND tenant_id = ?`, id, tid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("tax config %d", id)
	}
	return nil
}

// RecordCalculationsTx appends tax calculation history rows inside the
// checkout transaction.
func (r *TaxRepo) RecordCalculationsTx(ctx context.Context, tx *sql.Tx, calcs []model.TaxCalculation) error {
	if len(calcs) == 0 {
		return nil
	}
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	query := `INSERT INTO tax_calculations (tenant_id, transaction_id, tax_config_id, base_amount, tax_amount) VALUES ` +
		placeholders(len(calcs), 5)
	args := make([]any, 0, len(calcs)*5)
	for _, c := range calcs {
		args = append(args, tid, c.TransactionID, c.TaxConfigID,
			c.BaseAmount.StringFixed(2), c.TaxAmount.StringFixed(2))
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
