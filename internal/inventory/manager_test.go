package inventory

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/audit"
	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

var (
	zoneCols = []string{"id", "tenant_id", "event_id", "name", "type", "capacity", "base_price", "sold", "created_at", "updated_at"}
	seatCols = []string{"id", "tenant_id", "zone_id", "row_label", "number", "label", "state", "table_id", "created_at", "updated_at"}
	holdCols = []string{"id", "tenant_id", "zone_id", "seat_id", "quantity", "owner_ref", "scope", "token", "state", "expires_at", "transaction_id", "created_at"}
)

func testCtx() context.Context {
	return domain.WithTenant(context.Background(), domain.TenantRef{ID: 1, Slug: "acme"})
}

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := NewManager(
		repository.NewHoldRepo(db),
		repository.NewSeatRepo(db),
		repository.NewZoneRepo(db),
		audit.NewWriter(repository.NewAuditRepo(db)),
		5*time.Minute,
	)
	return m, mock
}

// A seat whose hold ran out must be acquirable immediately, without waiting
// for the background sweep. The acquisition transaction expires the zone's
// lapsed holds and frees their seats before the seat compare-and-set runs.
func TestHoldFreesLapsedSeatHoldFirst(t *testing.T) {
	m, mock := newMockManager(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	lapsed := now.Add(-time.Minute)

	mock.ExpectQuery("FROM zones WHERE id").
		WillReturnRows(sqlmock.NewRows(zoneCols).
			AddRow(7, 1, 3, "Stalls", model.ZoneNumbered, 10, "25.00", 4, now, now))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM seats WHERE id").
		WillReturnRows(sqlmock.NewRows(seatCols).
			AddRow(9, 1, 7, "A", 9, "A-9", model.SeatHeld, nil, now, now))
	mock.ExpectQuery(`FROM holds WHERE zone_id = \? AND tenant_id = \? AND state = \? AND expires_at <= \?`).
		WillReturnRows(sqlmock.NewRows(holdCols).
			AddRow(40, 1, 7, 9, 1, "cart-old", model.HoldScopeCart, "tok-40", model.HoldActive, lapsed, nil, lapsed))
	mock.ExpectExec(`UPDATE holds SET state = \? WHERE tenant_id = \? AND id IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE seats SET state = \? WHERE tenant_id = \? AND state = \? AND id IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	// Only now, with the stale hold cleared, does the available -> held CAS
	// on the requested seat run.
	mock.ExpectExec(`UPDATE seats SET state = \? WHERE id = \? AND tenant_id = \? AND state = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO holds").WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec("INSERT INTO audit_entries").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	seatID := uint64(9)
	h, err := m.Hold(testCtx(), HoldRequest{ZoneID: 7, SeatID: &seatID, OwnerRef: "cart-new"})
	require.NoError(t, err)
	assert.Equal(t, uint64(41), h.ID)
	assert.Equal(t, now.Add(5*time.Minute), h.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Availability on a numbered zone recounts after expiring lapsed holds in
// the same transaction, so the answer reflects live holds only.
func TestAvailabilityRecountsAfterExpiringLapsedHolds(t *testing.T) {
	m, mock := newMockManager(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	lapsed := now.Add(-time.Minute)

	mock.ExpectQuery("FROM zones WHERE id").
		WillReturnRows(sqlmock.NewRows(zoneCols).
			AddRow(7, 1, 3, "Stalls", model.ZoneNumbered, 10, "25.00", 4, now, now))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM holds WHERE zone_id = \? AND tenant_id = \? AND state = \? AND expires_at <= \?`).
		WillReturnRows(sqlmock.NewRows(holdCols).
			AddRow(40, 1, 7, 9, 1, "cart-old", model.HoldScopeCart, "tok-40", model.HoldActive, lapsed, nil, lapsed))
	mock.ExpectExec(`UPDATE holds SET state = \? WHERE tenant_id = \? AND id IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE seats SET state = \? WHERE tenant_id = \? AND state = \? AND id IN`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT state, COUNT\(\*\) FROM seats`).
		WillReturnRows(sqlmock.NewRows([]string{"state", "count"}).
			AddRow(model.SeatAvailable, 6).
			AddRow(model.SeatSold, 4))
	mock.ExpectCommit()

	free, err := m.Availability(testCtx(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), free)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Consuming a hold is a state transition like any other: it must leave an
// audit entry in the same transaction, between the hold CAS and the
// capacity move.
func TestConsumeWritesAuditEntry(t *testing.T) {
	m, mock := newMockManager(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE holds SET state = \?, transaction_id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE zones SET sold = sold \+ \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := m.holds.DB().BeginTx(testCtx(), nil)
	require.NoError(t, err)
	h := &model.Hold{ID: 50, ZoneID: 8, Quantity: 2, State: model.HoldActive}
	require.NoError(t, m.ConsumeTx(testCtx(), tx, h, 900))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A general zone cannot shrink below its sold count plus live holds.
func TestResizeZoneRejectsShrinkBelowCommitted(t *testing.T) {
	m, mock := newMockManager(t)
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM zones WHERE id = \? AND tenant_id = \? FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(zoneCols).
			AddRow(8, 1, 3, "Floor", model.ZoneGeneral, 100, "15.00", 40, now, now))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(quantity\), 0\) FROM holds`).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(15))
	mock.ExpectRollback()

	err := m.ResizeZone(testCtx(), 8, 50, 9)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
