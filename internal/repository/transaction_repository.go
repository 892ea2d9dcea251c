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

// TransactionRepo provides data access to transactions and their items.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a TransactionRepo bound to the provided database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// DB exposes the handle so the checkout orchestrator can open transactions.
func (r *TransactionRepo) DB() *sql.DB { return r.db }

const txCols = `id, tenant_id, event_id, customer_id, user_id, status, subtotal, tax_total,
	total, currency, payment_method, payment_ref, series_number, created_at, updated_at`

// Create inserts a pending transaction.
func (r *TransactionRepo) Create(ctx context.Context, t *model.Transaction) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions
		 (tenant_id, event_id, customer_id, user_id, status, subtotal, tax_total, total,
		  currency, payment_method, payment_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')`,
		tid, t.EventID, t.CustomerID, t.UserID, model.TxPending,
		t.Subtotal.StringFixed(2), t.TaxTotal.StringFixed(2), t.Total.StringFixed(2),
		t.Currency, t.PaymentMethod)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = uint64(id)
	t.TenantID = tid
	t.Status = model.TxPending
	return nil
}

// GetByID fetches a transaction within the context tenant.
func (r *TransactionRepo) GetByID(ctx context.Context, id uint64) (*model.Transaction, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txCols+` FROM transactions WHERE id = ? AND tenant_id = ?`, id, tid)
	return scanTransaction(row.Scan)
}

// TransitionTx atomically moves a transaction between statuses inside tx.
func (r *TransactionRepo) TransitionTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ? AND tenant_id = ? AND status = ?`,
		to, id, tid, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("transaction %d not %s", id, from)
	}
	return nil
}

// Transition is TransitionTx on an implicit single-statement transaction.
func (r *TransactionRepo) Transition(ctx context.Context, id uint64, from, to string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ? AND tenant_id = ? AND status = ?`,
		to, id, tid, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("transaction %d not %s", id, from)
	}
	return nil
}

// CompleteTx marks a transaction completed with its series number and
// payment reference inside tx. Only a pending or reserved transaction can
// complete.
func (r *TransactionRepo) CompleteTx(ctx context.Context, tx *sql.Tx, id, series uint64, paymentRef string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ?, series_number = ?, payment_ref = ?
		 WHERE id = ? AND tenant_id = ? AND status IN (?, ?)`,
		model.TxCompleted, series, paymentRef, id, tid, model.TxPending, model.TxReserved)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("transaction %d cannot complete", id)
	}
	return nil
}

// CreateItemsTx inserts the transaction's items inside tx and assigns their
// ids. A single multi-row insert gets consecutive ids from MySQL, so the ids
// follow from the first one.
func (r *TransactionRepo) CreateItemsTx(ctx context.Context, tx *sql.Tx, items []model.TransactionItem) error {
	if len(items) == 0 {
		return nil
	}
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	query := `INSERT INTO transaction_items
	 (tenant_id, transaction_id, zone_id, seat_id, unit_price, quantity, total_price) VALUES ` +
		placeholders(len(items), 7)
	args := make([]any, 0, len(items)*7)
	for _, it := range items {
		args = append(args, tid, it.TransactionID, it.ZoneID, nullUint64(it.SeatID),
			it.UnitPrice.StringFixed(2), it.Quantity, it.TotalPrice.StringFixed(2))
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	first, _ := res.LastInsertId()
	for i := range items {
		items[i].ID = uint64(first) + uint64(i)
		items[i].TenantID = tid
	}
	return nil
}

// ItemsByTransaction returns the items of one transaction.
func (r *TransactionRepo) ItemsByTransaction(ctx context.Context, transactionID uint64) ([]model.TransactionItem, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, transaction_id, zone_id, seat_id, unit_price, quantity, total_price
		 FROM transaction_items WHERE transaction_id = ? AND tenant_id = ? ORDER BY id`,
		transactionID, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TransactionItem
	for rows.Next() {
		var it model.TransactionItem
		var seat sql.NullInt64
		var unit, total string
		if err := rows.Scan(&it.ID, &it.TenantID, &it.TransactionID, &it.ZoneID, &seat,
			&unit, &it.Quantity, &total); err != nil {
			return nil, err
		}
		it.SeatID = scanNullUint64(seat)
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return nil, err
		}
		if it.TotalPrice, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListReservedPastDeadline returns reserved (partially paid) transactions
// older than the payment deadline, for the reservation sweeper.
func (r *TransactionRepo) ListReservedPastDeadline(ctx context.Context, cutoff time.Time) ([]model.Transaction, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txCols+` FROM transactions
		 WHERE tenant_id = ? AND status = ? AND updated_at < ?`,
		tid, model.TxReserved, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTransaction(scan func(dest ...any) error) (*model.Transaction, error) {
	var t model.Transaction
	var subtotal, tax, total string
	var series sql.NullInt64
	err := scan(&t.ID, &t.TenantID, &t.EventID, &t.CustomerID, &t.UserID, &t.Status,
		&subtotal, &tax, &total, &t.Currency, &t.PaymentMethod, &t.PaymentRef,
		&series, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("transaction")
	}
	if err != nil {
		return nil, err
	}
	t.SeriesNumber = scanNullUint64(series)
	if t.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, err
	}
	if t.TaxTotal, err = decimal.NewFromString(tax); err != nil {
		return nil, err
	}
	if t.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &t, nil
}
