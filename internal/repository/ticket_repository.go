package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// TicketRepo provides data access to digital tickets and their validation
// events. Validation events are append-only.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the handle so the validator can run its mark-used transaction.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketCols = `id, tenant_id, transaction_id, item_id, event_id, customer_id, zone_id, seat_id,
	ticket_number, sequence, signed_payload, validation_hash, usage_count, max_usage, status,
	valid_from, valid_until, first_used_at, created_at`

// CreateTx inserts one issued ticket inside the checkout transaction and
// assigns its id. The signed payload embeds that id, so the issuer inserts
// first and fills the payload with SetPayloadTx.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.DigitalTicket) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO digital_tickets
		 (tenant_id, transaction_id, item_id, event_id, customer_id, zone_id, seat_id, ticket_number,
		  sequence, signed_payload, validation_hash, usage_count, max_usage, status, valid_from, valid_until)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, 0, ?, ?, ?, ?)`,
		tid, t.TransactionID, t.ItemID, t.EventID, t.CustomerID, t.ZoneID,
		nullUint64(t.SeatID), t.TicketNumber, t.Sequence, t.ValidationHash,
		t.MaxUsage, model.TicketActive, t.ValidFrom.UTC(), t.ValidUntil.UTC())
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = uint64(id)
	t.TenantID = tid
	t.Status = model.TicketActive
	return nil
}

// SetPayloadTx stores the encrypted payload of a freshly inserted ticket.
func (r *TicketRepo) SetPayloadTx(ctx context.Context, tx *sql.Tx, id uint64, payload string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE digital_tickets SET signed_payload = ? WHERE id = ? AND tenant_id = ?`,
		payload, id, tid)
	return err
}

// GetByNumber fetches a ticket by its printed number.
func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*model.DigitalTicket, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketCols+` FROM digital_tickets WHERE ticket_number = ? AND tenant_id = ?`,
		number, tid)
	return scanTicket(row.Scan)
}

// GetByID fetches a ticket by primary key.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.DigitalTicket, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ticketCols+` FROM digital_tickets WHERE id = ? AND tenant_id = ?`, id, tid)
	return scanTicket(row.Scan)
}

// GetForUpdateTx fetches a ticket under FOR UPDATE inside tx. Mark-used runs
// entirely under this lock so two scanners cannot both take the last use.
func (r *TicketRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.DigitalTicket, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT `+ticketCols+` FROM digital_tickets WHERE id = ? AND tenant_id = ? FOR UPDATE`, id, tid)
	return scanTicket(row.Scan)
}

// ListByTransaction returns the tickets of one transaction.
func (r *TicketRepo) ListByTransaction(ctx context.Context, transactionID uint64) ([]model.DigitalTicket, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketCols+` FROM digital_tickets
		 WHERE transaction_id = ? AND tenant_id = ? ORDER BY id`, transactionID, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DigitalTicket
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// MarkUsedTx increments usage under the row lock taken by GetForUpdateTx,
// transitioning to used when the limit is reached and stamping first use.
func (r *TicketRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, t *model.DigitalTicket, now time.Time) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	newCount := t.UsageCount + 1
	status := t.Status
	if newCount >= t.MaxUsage {
		status = model.TicketUsed
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE digital_tickets
		 SET usage_count = ?, status = ?, first_used_at = COALESCE(first_used_at, ?)
		 WHERE id = ? AND tenant_id = ? AND usage_count = ?`,
		newCount, status, now.UTC(), t.ID, tid, t.UsageCount)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("ticket %d usage changed concurrently", t.ID)
	}
	t.UsageCount = newCount
	t.Status = status
	return nil
}

// BulkStatusByTransactionTx moves all of a transaction's tickets to the
// given status inside tx. Used by refund (cancelled) and void paths.
func (r *TicketRepo) BulkStatusByTransactionTx(ctx context.Context, tx *sql.Tx, transactionID uint64, status string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE digital_tickets SET status = ? WHERE transaction_id = ? AND tenant_id = ?`,
		status, transactionID, tid)
	return err
}

// AppendValidationTx writes one validation event inside tx. There is no
// update or delete path for validation events.
func (r *TicketRepo) AppendValidationTx(ctx context.Context, tx *sql.Tx, ev *model.ValidationEvent) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO validation_events
		 (tenant_id, ticket_id, result, reason, method, action, system_id, location,
		  usage_before, usage_after, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tid, ev.TicketID, ev.Result, ev.Reason, ev.Method, ev.Action, ev.SystemID,
		ev.Location, ev.UsageBefore, ev.UsageAfter, ev.OccurredAt.UTC())
	return err
}

// ActiveCountBySeat counts non-refunded, non-cancelled tickets on a seat.
// The no-double-sell property requires this to be 0 or 1 at all times.
func (r *TicketRepo) ActiveCountBySeat(ctx context.Context, seatID uint64) (int, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM digital_tickets
		 WHERE seat_id = ? AND tenant_id = ? AND status NOT IN (?, ?)`,
		seatID, tid, model.TicketCancelled, model.TicketRefunded).Scan(&n)
	return n, err
}

func scanTicket(scan func(dest ...any) error) (*model.DigitalTicket, error) {
	var t model.DigitalTicket
	var seat sql.NullInt64
	var firstUsed sql.NullTime
	err := scan(&t.ID, &t.TenantID, &t.TransactionID, &t.ItemID, &t.EventID, &t.CustomerID,
		&t.ZoneID, &seat, &t.TicketNumber, &t.Sequence, &t.SignedPayload, &t.ValidationHash,
		&t.UsageCount, &t.MaxUsage, &t.Status, &t.ValidFrom, &t.ValidUntil, &firstUsed, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("ticket")
	}
	if err != nil {
		return nil, err
	}
	t.SeatID = scanNullUint64(seat)
	t.FirstUsedAt = scanNullTime(firstUsed)
	return &t, nil
}
