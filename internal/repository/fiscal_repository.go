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

// FiscalRepo provides data access to the fiscal counter, series, days and
// reports. Series allocation must run inside the checkout transaction with
// the counter row locked FOR UPDATE, and the caller must hold that lock
// through commit so numbers are assigned in commit order.
type FiscalRepo struct {
	db *sql.DB
}

// NewFiscalRepo returns a FiscalRepo bound to the provided database.
func NewFiscalRepo(db *sql.DB) *FiscalRepo { return &FiscalRepo{db: db} }

// DB exposes the handle so the checkout orchestrator can open the single
// transaction spanning series allocation, consumption and issuance.
func (r *FiscalRepo) DB() *sql.DB { return r.db }

// EnsureCounter lazily creates the per-tenant counter row. Safe to call on
// every boot; the insert is a no-op when the row exists.
func (r *FiscalRepo) EnsureCounter(ctx context.Context) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO fiscal_counters (tenant_id, current) VALUES (?, 0)
		 ON DUPLICATE KEY UPDATE tenant_id = tenant_id`, tid)
	return err
}

// NextSeriesTx locks the tenant's counter row, increments it and inserts the
// FiscalSeries row for the given transaction, returning the new number. The
// row lock is released only when tx commits or rolls back, which is what
// serializes the fiscal branch per tenant.
func (r *FiscalRepo) NextSeriesTx(ctx context.Context, tx *sql.Tx, transactionID, issuedBy uint64) (uint64, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return 0, err
	}
	var current uint64
	err = tx.QueryRowContext(ctx,
		`SELECT current FROM fiscal_counters WHERE tenant_id = ? FOR UPDATE`, tid).
		Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.Internalf("fiscal counter missing for tenant %d", tid)
	}
	if err != nil {
		return 0, err
	}
	next := current + 1
	if _, err := tx.ExecContext(ctx,
		`UPDATE fiscal_counters SET current = ? WHERE tenant_id = ?`, next, tid); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fiscal_series (tenant_id, series_number, transaction_id, issued_by, issued_at)
		 VALUES (?, ?, ?, ?, UTC_TIMESTAMP())`,
		tid, next, transactionID, issuedBy); err != nil {
		return 0, err
	}
	return next, nil
}

const seriesCols = `id, tenant_id, series_number, transaction_id, issued_by, issued_at,
	is_void, voided_at, voided_by, void_reason`

// GetSeries fetches one series row by number.
func (r *FiscalRepo) GetSeries(ctx context.Context, number uint64) (*model.FiscalSeries, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seriesCols+` FROM fiscal_series WHERE series_number = ? AND tenant_id = ?`,
		number, tid)
	return scanSeries(row.Scan)
}

// VoidSeriesTx marks a series voided in place inside tx. The number stays
// occupied forever; re-voiding fails with ErrConflict.
func (r *FiscalRepo) VoidSeriesTx(ctx context.Context, tx *sql.Tx, number, voidedBy uint64, reason string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	if reason == "" {
		return domain.Validationf("void reason is required")
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE fiscal_series
		 SET is_void = 1, voided_at = UTC_TIMESTAMP(), voided_by = ?, void_reason = ?
		 WHERE series_number = ? AND tenant_id = ? AND is_void = 0`,
		voidedBy, reason, number, tid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("series %d missing or already void", number)
	}
	return nil
}

// AssertDense verifies on startup that the counter equals both the count and
// the max of issued series numbers for the tenant. Any mismatch means a
// partial fiscal commit happened, which is catastrophic and must stop boot.
func (r *FiscalRepo) AssertDense(ctx context.Context) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	var current, count, max uint64
	if err := r.db.QueryRowContext(ctx,
		`SELECT current FROM fiscal_counters WHERE tenant_id = ?`, tid).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // tenant has never sold
		}
		return err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(series_number), 0) FROM fiscal_series WHERE tenant_id = ?`,
		tid).Scan(&count, &max); err != nil {
		return err
	}
	if current != count || current != max {
		return domain.Internalf("fiscal series not dense for tenant %d: counter=%d count=%d max=%d",
			tid, current, count, max)
	}
	return nil
}

func scanSeries(scan func(dest ...any) error) (*model.FiscalSeries, error) {
	var s model.FiscalSeries
	var voidedAt sql.NullTime
	var voidedBy sql.NullInt64
	var reason sql.NullString
	err := scan(&s.ID, &s.TenantID, &s.SeriesNumber, &s.TransactionID, &s.IssuedBy,
		&s.IssuedAt, &s.IsVoid, &voidedAt, &voidedBy, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("fiscal series")
	}
	if err != nil {
		return nil, err
	}
	s.VoidedAt = scanNullTime(voidedAt)
	s.VoidedBy = scanNullUint64(voidedBy)
	s.VoidReason = reason.String
	return &s, nil
}

// OpenDayTx lazily opens the (tenant, user, date) fiscal day inside tx and
// returns it. When the day exists and is closed, the sale must fail with
// AccessDenied; the row is locked FOR UPDATE so a concurrent close cannot
// slip between the check and the sale's commit.
func (r *FiscalRepo) OpenDayTx(ctx context.Context, tx *sql.Tx, userID uint64, date string) (*model.FiscalDay, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fiscal_days (tenant_id, user_id, fiscal_date, opened_at, is_closed)
		 VALUES (?, ?, ?, UTC_TIMESTAMP(), 0)
		 ON DUPLICATE KEY UPDATE tenant_id = tenant_id`,
		tid, userID, date); err != nil {
		return nil, err
	}
	day, err := r.getDayTx(ctx, tx, tid, userID, date, true)
	if err != nil {
		return nil, err
	}
	if day.IsClosed {
		return nil, domain.AccessDeniedf("fiscal day closed")
	}
	return day, nil
}

// GetDay fetches the (user, date) day without locking.
func (r *FiscalRepo) GetDay(ctx context.Context, userID uint64, date string) (*model.FiscalDay, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	return r.getDayTx(ctx, tx, tid, userID, date, false)
}

func (r *FiscalRepo) getDayTx(ctx context.Context, tx *sql.Tx, tid, userID uint64, date string, lock bool) (*model.FiscalDay, error) {
	q := `SELECT id, tenant_id, user_id, fiscal_date, opened_at, closed_at, is_closed, z_report_id
	      FROM fiscal_days WHERE tenant_id = ? AND user_id = ? AND fiscal_date = ?`
	if lock {
		q += ` FOR UPDATE`
	}
	var d model.FiscalDay
	var closedAt sql.NullTime
	var zReport sql.NullInt64
	err := tx.QueryRowContext(ctx, q, tid, userID, date).
		Scan(&d.ID, &d.TenantID, &d.UserID, &d.FiscalDate, &d.OpenedAt, &closedAt, &d.IsClosed, &zReport)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("fiscal day %s", date)
	}
	if err != nil {
		return nil, err
	}
	d.ClosedAt = scanNullTime(closedAt)
	d.ZReportID = scanNullUint64(zReport)
	return &d, nil
}

// CloseDayTx marks the (user, date) day closed inside tx, recording the Z
// report that closed it. The conditional update prevents a parallel
// double-close.
func (r *FiscalRepo) CloseDayTx(ctx context.Context, tx *sql.Tx, userID uint64, date string, zReportID uint64) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE fiscal_days
		 SET is_closed = 1, closed_at = UTC_TIMESTAMP(), z_report_id = ?
		 WHERE tenant_id = ? AND user_id = ? AND fiscal_date = ? AND is_closed = 0`,
		zReportID, tid, userID, date)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("fiscal day %s missing or already closed", date)
	}
	return nil
}

// NextReportNumberTx allocates the next monotone report number for a
// (tenant, type) pair inside tx, using the same locked-counter idiom as the
// series allocation.
func (r *FiscalRepo) NextReportNumberTx(ctx context.Context, tx *sql.Tx, reportType string) (uint64, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fiscal_report_counters (tenant_id, report_type, current) VALUES (?, ?, 0)
		 ON DUPLICATE KEY UPDATE tenant_id = tenant_id`, tid, reportType); err != nil {
		return 0, err
	}
	var current uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT current FROM fiscal_report_counters WHERE tenant_id = ? AND report_type = ? FOR UPDATE`,
		tid, reportType).Scan(&current); err != nil {
		return 0, err
	}
	next := current + 1
	if _, err := tx.ExecContext(ctx,
		`UPDATE fiscal_report_counters SET current = ? WHERE tenant_id = ? AND report_type = ?`,
		next, tid, reportType); err != nil {
		return 0, err
	}
	return next, nil
}

// InsertReportTx persists a generated report inside tx.
func (r *FiscalRepo) InsertReportTx(ctx context.Context, tx *sql.Tx, rep *model.FiscalReport) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO fiscal_reports
		 (tenant_id, type, report_number, fiscal_date, user_id, transaction_count,
		  total_amount, total_tax, method_breakdown, first_series, last_series, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`,
		tid, rep.Type, rep.ReportNumber, rep.FiscalDate, nullUint64(rep.UserID),
		rep.TransactionCount, rep.TotalAmount.StringFixed(2), rep.TotalTax.StringFixed(2),
		rep.MethodBreakdown, rep.FirstSeries, rep.LastSeries)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	rep.ID = uint64(id)
	rep.TenantID = tid
	return nil
}

// DayAggregates is the raw material of an X/Z report: completed transactions
// of one fiscal date, optionally narrowed to one user.
type DayAggregates struct {
	TransactionCount uint64
	TotalAmount      decimal.Decimal
	TotalTax         decimal.Decimal
	ByMethod         map[string]decimal.Decimal
	FirstSeries      uint64
	LastSeries       uint64
}

// AggregateDayTx computes report aggregates inside a read transaction. The
// date window is the Caracas calendar date converted to its UTC bounds by
// the caller.
func (r *FiscalRepo) AggregateDayTx(ctx context.Context, tx *sql.Tx, userID *uint64, fromUTC, toUTC time.Time) (*DayAggregates, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	q := `SELECT t.payment_method, t.total, t.tax_total, COALESCE(t.series_number, 0)
	      FROM transactions t
	      WHERE t.tenant_id = ? AND t.status = ? AND t.updated_at >= ? AND t.updated_at < ?`
	args := []any{tid, model.TxCompleted, fromUTC, toUTC}
	if userID != nil {
		q += ` AND t.user_id = ?`
		args = append(args, *userID)
	}
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	agg := &DayAggregates{ByMethod: make(map[string]decimal.Decimal)}
	for rows.Next() {
		var method, total, tax string
		var series uint64
		if err := rows.Scan(&method, &total, &tax, &series); err != nil {
			return nil, err
		}
		dTotal, err := decimal.NewFromString(total)
		if err != nil {
			return nil, err
		}
		dTax, err := decimal.NewFromString(tax)
		if err != nil {
			return nil, err
		}
		agg.TransactionCount++
		agg.TotalAmount = agg.TotalAmount.Add(dTotal)
		agg.TotalTax = agg.TotalTax.Add(dTax)
		agg.ByMethod[method] = agg.ByMethod[method].Add(dTotal)
		if series > 0 {
			if agg.FirstSeries == 0 || series < agg.FirstSeries {
				agg.FirstSeries = series
			}
			if series > agg.LastSeries {
				agg.LastSeries = series
			}
		}
	}
	return agg, rows.Err()
}
