package domain

import (
	"context"
)

// TenantRef identifies the tenant an operation runs on behalf of. It is
// resolved once at request ingress and threaded through every repository and
// service call via context. Core code must never touch tenant-bearing data
// without it.
type TenantRef struct {
	ID   uint64 // tenants.id
	Slug string // tenants.slug
}

type tenantKey struct{}

// WithTenant returns a context carrying the resolved tenant.
func WithTenant(ctx context.Context, t TenantRef) context.Context {
	return context.WithValue(ctx, tenantKey{}, t)
}

// TenantFrom extracts the tenant from the context. A missing tenant is a
// programming error in the ingress layer, reported as ErrInternal so it
// surfaces as a 500 rather than silently widening the query scope.
func TenantFrom(ctx context.Context) (TenantRef, error) {
	t, ok := ctx.Value(tenantKey{}).(TenantRef)
	if !ok || t.ID == 0 {
		return TenantRef{}, Internalf("no tenant on context")
	}
	return t, nil
}

// MustTenant is TenantFrom for call sites that already validated ingress.
// It panics when the tenant is absent.
func MustTenant(ctx context.Context) TenantRef {
	t, err := TenantFrom(ctx)
	if err != nil {
		panic(err)
	}
	return t
}
