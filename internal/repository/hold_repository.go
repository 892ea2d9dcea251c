package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// HoldRepo provides data access to the holds table. Expiration is never
// trusted to the background sweeper: every read that feeds an availability
// or consume decision filters on expires_at itself.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

// DB exposes the handle so the hold manager can open transactions.
func (r *HoldRepo) DB() *sql.DB { return r.db }

const holdCols = `id, tenant_id, zone_id, seat_id, quantity, owner_ref, scope, token, state,
	expires_at, transaction_id, created_at`

// CreateTx inserts a hold inside tx.
func (r *HoldRepo) CreateTx(ctx context.Context, tx *sql.Tx, h *model.Hold) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO holds (tenant_id, zone_id, seat_id, quantity, owner_ref, scope, token, state, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tid, h.ZoneID, nullUint64(h.SeatID), h.Quantity, h.OwnerRef, h.Scope,
		h.Token, model.HoldActive, h.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	h.ID = uint64(id)
	h.TenantID = tid
	h.State = model.HoldActive
	return nil
}

// GetByToken fetches a hold by its opaque token.
func (r *HoldRepo) GetByToken(ctx context.Context, token string) (*model.Hold, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+holdCols+` FROM holds WHERE token = ? AND tenant_id = ?`, token, tid)
	return scanHold(row.Scan)
}

// GetByTokenForUpdateTx fetches a hold by token under FOR UPDATE inside tx.
// Consume and release re-check liveness under this lock.
func (r *HoldRepo) GetByTokenForUpdateTx(ctx context.Context, tx *sql.Tx, token string) (*model.Hold, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := tx.QueryRowContext(ctx,
		`SELECT `+holdCols+` FROM holds WHERE token = ? AND tenant_id = ? FOR UPDATE`, token, tid)
	return scanHold(row.Scan)
}

// TransitionTx moves a hold between states inside tx with a CAS guard.
func (r *HoldRepo) TransitionTx(ctx context.Context, tx *sql.Tx, holdID uint64, from, to string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET state = ? WHERE id = ? AND tenant_id = ? AND state = ?`,
		to, holdID, tid, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("hold %d not %s", holdID, from)
	}
	return nil
}

// ConsumeTx marks a hold consumed and ties it to the completing transaction
// inside tx. The expires_at guard makes a hold that lapsed between payment
// and commit lose deterministically.
func (r *HoldRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, holdID, transactionID uint64, now time.Time) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET state = ?, transaction_id = ?
		 WHERE id = ? AND tenant_id = ? AND state = ? AND expires_at > ?`,
		model.HoldConsumed, transactionID, holdID, tid, model.HoldActive, now.UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.AccessDeniedf("hold %d expired or not active", holdID)
	}
	return nil
}

// ExtendTx pushes expires_at forward for a hold that is still live.
func (r *HoldRepo) ExtendTx(ctx context.Context, tx *sql.Tx, holdID uint64, newExpiry, now time.Time) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET expires_at = ?
		 WHERE id = ? AND tenant_id = ? AND state = ? AND expires_at > ?`,
		newExpiry.UTC(), holdID, tid, model.HoldActive, now.UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("hold %d expired or not active", holdID)
	}
	return nil
}

// ActiveByOwnerTx returns the live holds of one owner (cart or offline
// block) inside tx, locked FOR UPDATE for checkout.
func (r *HoldRepo) ActiveByOwnerTx(ctx context.Context, tx *sql.Tx, ownerRef string, now time.Time) ([]model.Hold, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+holdCols+` FROM holds
		 WHERE owner_ref = ? AND tenant_id = ? AND state = ? AND expires_at > ?
		 ORDER BY id FOR UPDATE`,
		ownerRef, tid, model.HoldActive, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHolds(rows)
}

// ActiveByOwner is ActiveByOwnerTx without a lock, for cart reads.
func (r *HoldRepo) ActiveByOwner(ctx context.Context, ownerRef string, now time.Time) ([]model.Hold, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+holdCols+` FROM holds
		 WHERE owner_ref = ? AND tenant_id = ? AND state = ? AND expires_at > ?
		 ORDER BY id`,
		ownerRef, tid, model.HoldActive, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHolds(rows)
}

// LiveQuantityTx sums the quantities of non-expired active holds on a
// general zone inside tx. The zone row lock held by the caller serializes
// this read against concurrent inserts.
func (r *HoldRepo) LiveQuantityTx(ctx context.Context, tx *sql.Tx, zoneID uint64, now time.Time) (uint32, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return 0, err
	}
	var sum uint32
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM holds
		 WHERE zone_id = ? AND tenant_id = ? AND state = ? AND expires_at > ?`,
		zoneID, tid, model.HoldActive, now.UTC()).Scan(&sum)
	return sum, err
}

// ExpireDueTx flips active holds past their expiry to expired inside tx and
// returns them so the caller can release seats/counters and write audit
// entries. The limit bounds sweep batches.
func (r *HoldRepo) ExpireDueTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]model.Hold, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+holdCols+` FROM holds
		 WHERE tenant_id = ? AND state = ? AND expires_at <= ?
		 ORDER BY expires_at LIMIT ? FOR UPDATE`,
		tid, model.HoldActive, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	due, err := collectHolds(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	ids := make([]uint64, len(due))
	for i, h := range due {
		ids[i] = h.ID
	}
	query := `UPDATE holds SET state = ? WHERE tenant_id = ? AND id IN (` + inPlaceholders(len(ids)) + `)`
	args := append([]any{model.HoldExpired, tid}, uint64Args(ids)...)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return due, nil
}

// ExpireDueForZoneTx flips one zone's lapsed active holds to expired inside
// tx and returns them. Seat acquisition and availability reads run this
// before acting, so a hold the background sweep has not reached yet never
// keeps a seat out of the pool.
func (r *HoldRepo) ExpireDueForZoneTx(ctx context.Context, tx *sql.Tx, zoneID uint64, now time.Time) ([]model.Hold, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+holdCols+` FROM holds
		 WHERE zone_id = ? AND tenant_id = ? AND state = ? AND expires_at <= ?
		 FOR UPDATE`,
		zoneID, tid, model.HoldActive, now.UTC())
	if err != nil {
		return nil, err
	}
	due, err := collectHolds(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}
	ids := make([]uint64, len(due))
	for i, h := range due {
		ids[i] = h.ID
	}
	query := `UPDATE holds SET state = ? WHERE tenant_id = ? AND id IN (` + inPlaceholders(len(ids)) + `)`
	args := append([]any{model.HoldExpired, tid}, uint64Args(ids)...)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return due, nil
}

func collectHolds(rows *sql.Rows) ([]model.Hold, error) {
	var out []model.Hold
	for rows.Next() {
		h, err := scanHold(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

func scanHold(scan func(dest ...any) error) (*model.Hold, error) {
	var h model.Hold
	var seat, txID sql.NullInt64
	err := scan(&h.ID, &h.TenantID, &h.ZoneID, &seat, &h.Quantity, &h.OwnerRef, &h.Scope,
		&h.Token, &h.State, &h.ExpiresAt, &txID, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("hold")
	}
	if err != nil {
		return nil, err
	}
	h.SeatID = scanNullUint64(seat)
	h.TransactionID = scanNullUint64(txID)
	return &h, nil
}
