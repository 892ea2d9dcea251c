// Package repository implements data access for every entity. All methods
// derive the tenant from the request context; a missing tenant is a
// programming error surfaced as domain.ErrInternal, never a widened query.
// Multi-step mutations expose ...Tx variants taking an open *sql.Tx; the
// caller owns commit/rollback.
package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/taquilla/taquilla/internal/domain"
)

// tenantID extracts the mandatory tenant scope from the context.
func tenantID(ctx context.Context) (uint64, error) {
	t, err := domain.TenantFrom(ctx)
	if err != nil {
		return 0, err
	}
	return t.ID, nil
}

// placeholders returns "(?, ?, ...)" repeated n times, comma separated, with
// width marks per row. Used for bulk inserts.
func placeholders(rows, width int) string {
	one := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"
	parts := make([]string, rows)
	for i := range parts {
		parts[i] = one
	}
	return strings.Join(parts, ",")
}

// inPlaceholders returns "?, ?, ..." for an IN clause of n values.
func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// uint64Args widens a slice of ids into query args.
func uint64Args(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// nullUint64 converts an optional id into a driver value.
func nullUint64(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

// scanNullUint64 converts a scanned nullable integer back into a pointer.
func scanNullUint64(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

// scanNullTime converts a scanned nullable timestamp back into a pointer.
func scanNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
