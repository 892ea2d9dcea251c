package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/model"
	"github.com/taquilla/taquilla/internal/repository"
)

// Tenant resolution headers.
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderTenantSlug = "X-Tenant-Slug"
)

// ResolveTenant resolves the tenant scope of the request and attaches it to
// the request context so every repository call below is tenant-bounded.
// Resolution order: explicit id header, slug header, host subdomain, finally
// the authenticated user's tenant claim. An authenticated user whose tenant
// claim disagrees with the resolved tenant is rejected, never silently moved.
func ResolveTenant(tenants *repository.TenantRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			t, err := resolve(c, tenants)
			if err != nil {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown tenant"})
			}
			if !t.IsActive {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "tenant disabled"})
			}
			if claim, ok := c.Get(CtxUserTenant).(uint64); ok && claim != 0 && claim != t.ID {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "tenant mismatch"})
			}

			ref := domain.TenantRef{ID: t.ID, Slug: t.Slug}
			req := c.Request()
			c.SetRequest(req.WithContext(domain.WithTenant(req.Context(), ref)))
			return next(c)
		}
	}
}

func resolve(c echo.Context, tenants *repository.TenantRepo) (*model.Tenant, error) {
	ctx := c.Request().Context()

	if raw := c.Request().Header.Get(HeaderTenantID); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, domain.Validationf("tenant id header")
		}
		return tenants.GetByID(ctx, id)
	}
	if slug := c.Request().Header.Get(HeaderTenantSlug); slug != "" {
		return tenants.GetBySlug(ctx, slug)
	}
	if slug := subdomain(c.Request().Host); slug != "" {
		if t, err := tenants.GetBySlug(ctx, slug); err == nil {
			return t, nil
		}
	}
	if claim, ok := c.Get(CtxUserTenant).(uint64); ok && claim != 0 {
		return tenants.GetByID(ctx, claim)
	}
	return nil, domain.NotFoundf("tenant")
}

// subdomain extracts the first label of a multi-label host, e.g.
// "acme.taquilla.example" yields "acme". Bare hosts and IPs yield "".
func subdomain(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	if parts[0] == "www" || parts[0] == "api" {
		return ""
	}
	return parts[0]
}
