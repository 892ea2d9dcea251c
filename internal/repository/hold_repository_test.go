package repository

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
)

func TestConsumeTxRejectsLapsedHold(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHoldRepo(db)

	// The state CAS carries the expiry guard: a hold past expires_at matches
	// no row even though its state column still says active.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE holds SET state = \?, transaction_id = \? WHERE id = \? AND tenant_id = \? AND state = \? AND expires_at > \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	err = repo.ConsumeTx(testCtx(), tx, 4, 77, time.Now())
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeTxTiesHoldToTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHoldRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE holds SET state = \?, transaction_id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.NoError(t, repo.ConsumeTx(testCtx(), tx, 4, 77, time.Now()))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
