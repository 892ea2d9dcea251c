package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsUnwrap(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{Conflictf("seat %d", 5), ErrConflict},
		{NotFoundf("zone"), ErrNotFound},
		{Validationf("bad"), ErrValidation},
		{AccessDeniedf("nope"), ErrAccessDenied},
		{Timeoutf("slow"), ErrTimeout},
		{Internalf("broken"), ErrInternal},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, tc.err, tc.sentinel)
		for _, other := range cases {
			if other.sentinel != tc.sentinel {
				assert.NotErrorIs(t, tc.err, other.sentinel)
			}
		}
	}
	assert.EqualError(t, Conflictf("seat %d", 5), "conflict: seat 5")
}

func TestTenantContext(t *testing.T) {
	ctx := WithTenant(context.Background(), TenantRef{ID: 7, Slug: "acme"})
	got, err := TenantFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.ID)
	assert.Equal(t, "acme", got.Slug)
}

func TestTenantMissingIsInternal(t *testing.T) {
	_, err := TenantFrom(context.Background())
	assert.ErrorIs(t, err, ErrInternal)

	_, err = TenantFrom(WithTenant(context.Background(), TenantRef{}))
	assert.ErrorIs(t, err, ErrInternal)
}

func TestMustTenantPanics(t *testing.T) {
	assert.Panics(t, func() { MustTenant(context.Background()) })
}

func TestFiscalDate(t *testing.T) {
	// 01:00 UTC belongs to the previous Caracas day (UTC-4).
	at := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-12-31", FiscalDate(at))

	at = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-01", FiscalDate(at))
}
