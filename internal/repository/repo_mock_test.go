package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/taquilla/taquilla/internal/domain"
)

// testCtx carries the tenant scope every repository method requires.
func testCtx() context.Context {
	return domain.WithTenant(context.Background(), domain.TenantRef{ID: 1, Slug: "acme"})
}

// newMockDB returns a handle backed by ordered sqlmock expectations.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}
