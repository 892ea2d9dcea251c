package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
)

// SeatRepo provides data access to numbered seats. State transitions are
// conditional updates (compare-and-set on the state column) so two
// concurrent workers can never both win the same transition.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatCols = `id, tenant_id, zone_id, row_label, number, label, state, table_id, created_at, updated_at`

// CreateBulk inserts generated seats for a zone in one statement. Used when
// a numbered zone is first saved; afterwards seats are never renumbered.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	query := `INSERT INTO seats (tenant_id, zone_id, row_label, number, label, state) VALUES ` +
		placeholders(len(seats), 6)
	args := make([]any, 0, len(seats)*6)
	for _, s := range seats {
		args = append(args, tid, s.ZoneID, s.RowLabel, s.Number, s.Label, model.SeatAvailable)
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// GetByID fetches a seat within the context tenant.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seatCols+` FROM seats WHERE id = ? AND tenant_id = ?`, id, tid)
	return scanSeat(row.Scan)
}

// ListByZone returns all seats of a zone ordered by row and number.
func (r *SeatRepo) ListByZone(ctx context.Context, zoneID uint64) ([]model.Seat, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+seatCols+` FROM seats WHERE zone_id = ? AND tenant_id = ? ORDER BY row_label, number`,
		zoneID, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountByZoneTx counts seats of a zone inside tx, for the capacity ==
// count(seats) invariant on numbered zones.
func (r *SeatRepo) CountByZoneTx(ctx context.Context, tx *sql.Tx, zoneID uint64) (uint32, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return 0, err
	}
	var n uint32
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seats WHERE zone_id = ? AND tenant_id = ?`, zoneID, tid).Scan(&n)
	return n, err
}

// TransitionTx atomically moves one seat from state `from` to state `to`
// inside tx. Returns domain.ErrConflict when the seat is no longer in the
// expected state, which is exactly a lost hold/consume race.
func (r *SeatRepo) TransitionTx(ctx context.Context, tx *sql.Tx, seatID uint64, from, to string) error {
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE seats SET state = ? WHERE id = ? AND tenant_id = ? AND state = ?`,
		to, seatID, tid, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Conflictf("seat %d not %s", seatID, from)
	}
	return nil
}

// BulkTransitionTx moves many seats from `from` to `to` inside tx and fails
// with ErrConflict unless every seat transitioned. Used by the expirer and
// by release paths where the set was selected under the same transaction.
func (r *SeatRepo) BulkTransitionTx(ctx context.Context, tx *sql.Tx, seatIDs []uint64, from, to string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	tid, err := tenantID(ctx)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`UPDATE seats SET state = ? WHERE tenant_id = ? AND state = ? AND id IN (%s)`,
		inPlaceholders(len(seatIDs)))
	args := append([]any{to, tid, from}, uint64Args(seatIDs)...)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != int64(len(seatIDs)) {
		return domain.Conflictf("expected %d seats %s, moved %d", len(seatIDs), from, n)
	}
	return nil
}

// Block soft-disables a seat. Only available seats can be blocked; sold or
// held seats must settle first.
func (r *SeatRepo) Block(ctx context.Context, seatID uint64) error {
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
	if err := r.TransitionTx(ctx, tx, seatID, model.SeatAvailable, model.SeatBlocked); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Unblock returns a blocked (or permanently refunded, after admin review)
// seat to available.
func (r *SeatRepo) Unblock(ctx context.Context, seatID uint64, from string) error {
	if from != model.SeatBlocked && from != model.SeatRefunded {
		return domain.Validationf("cannot unblock from state %q", from)
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
	if err := r.TransitionTx(ctx, tx, seatID, from, model.SeatAvailable); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CountByStatesTx counts a zone's seats per state inside tx. Used for
// availability reads and capacity-change guards.
func (r *SeatRepo) CountByStatesTx(ctx context.Context, tx *sql.Tx, zoneID uint64) (map[string]uint32, error) {
	tid, err := tenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM seats WHERE zone_id = ? AND tenant_id = ? GROUP BY state`,
		zoneID, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]uint32)
	for rows.Next() {
		var state string
		var n uint32
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[state] = n
	}
	return out, rows.Err()
}

func scanSeat(scan func(dest ...any) error) (*model.Seat, error) {
	var s model.Seat
	var table sql.NullInt64
	err := scan(&s.ID, &s.TenantID, &s.ZoneID, &s.RowLabel, &s.Number, &s.Label,
		&s.State, &table, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("seat")
	}
	if err != nil {
		return nil, err
	}
	s.TableID = scanNullUint64(table)
	return &s, nil
}
