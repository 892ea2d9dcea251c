package repository

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
)

var fiscalDayCols = []string{
	"id", "tenant_id", "user_id", "fiscal_date", "opened_at", "closed_at", "is_closed", "z_report_id",
}

func TestOpenDayTxRejectsClosedDay(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFiscalRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fiscal_days").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM fiscal_days WHERE tenant_id").
		WillReturnRows(sqlmock.NewRows(fiscalDayCols).AddRow(3, 1, 9, "2026-08-25", now, now, true, 12))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = repo.OpenDayTx(testCtx(), tx, 9, "2026-08-25")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDayTxReturnsOpenDay(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFiscalRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fiscal_days").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery("FROM fiscal_days WHERE tenant_id").
		WillReturnRows(sqlmock.NewRows(fiscalDayCols).AddRow(3, 1, 9, "2026-08-25", now, nil, false, nil))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	day, err := repo.OpenDayTx(testCtx(), tx, 9, "2026-08-25")
	require.NoError(t, err)
	assert.False(t, day.IsClosed)
	assert.Equal(t, "2026-08-25", day.FiscalDate)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoidedSeriesNumberIsNeverReissued(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFiscalRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT current FROM fiscal_counters").
		WillReturnRows(sqlmock.NewRows([]string{"current"}).AddRow(5))
	mock.ExpectExec("UPDATE fiscal_counters SET current").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fiscal_series").WillReturnResult(sqlmock.NewResult(6, 1))
	// Voiding marks the series row in place; no statement touches the counter,
	// so the next allocation keeps counting forward.
	mock.ExpectExec("UPDATE fiscal_series SET is_void = 1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT current FROM fiscal_counters").
		WillReturnRows(sqlmock.NewRows([]string{"current"}).AddRow(6))
	mock.ExpectExec("UPDATE fiscal_counters SET current").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fiscal_series").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	ctx := testCtx()
	tx, err := db.Begin()
	require.NoError(t, err)

	first, err := repo.NextSeriesTx(ctx, tx, 100, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), first)

	require.NoError(t, repo.VoidSeriesTx(ctx, tx, first, 9, "operator error"))

	second, err := repo.NextSeriesTx(ctx, tx, 101, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), second)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoidSeriesTxRequiresReason(t *testing.T) {
	repo := NewFiscalRepo(nil)
	err := repo.VoidSeriesTx(testCtx(), nil, 5, 1, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
