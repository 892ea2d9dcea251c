// Package router maps the HTTP surface onto handlers and middleware. Route
// groups mirror the audiences: public browse, auth, operator console,
// scanner lane and admin. Tenant resolution wraps everything; a request
// that cannot be pinned to a tenant never reaches a handler.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/taquilla/taquilla/internal/handler"
	"github.com/taquilla/taquilla/internal/middleware"
	"github.com/taquilla/taquilla/internal/model"
)

// Deps bundles everything route registration needs.
type Deps struct {
	JWTSecret string

	Tenant echo.MiddlewareFunc // tenant resolution, runs after JWT parsing

	Auth      *handler.AuthHandler
	Catalog   *handler.CatalogHandler
	Sales     *handler.SalesHandler
	Inventory *handler.InventoryHandler
	Fiscal    *handler.FiscalHandler
	Tickets   *handler.TicketHandler
	Customers *handler.CustomerHandler
	Public    *handler.PublicHandler
	Health    echo.HandlerFunc

	RateLimit echo.MiddlewareFunc // token bucket on mutating routes
	Cache     echo.MiddlewareFunc // response cache on public reads
}

// Register wires every route group. Tenant resolution runs after JWT
// parsing in every group so the token's tenant claim can be cross-checked;
// health is the one route outside tenant scope.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health)

	registerAuth(e, d)
	registerPublic(e, d)
	registerOperator(e, d)
	registerScanner(e, d)
	registerAdmin(e, d)
}

// registerAuth mounts register/login/refresh/logout and the profile route.
func registerAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth", d.Tenant, d.RateLimit)
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/refresh-access", d.Auth.RefreshAccess)
	g.POST("/logout", d.Auth.Logout)

	me := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), d.Tenant)
	me.GET("/me", d.Auth.Me)
}

// registerPublic mounts the guest browse surface behind the response cache.
func registerPublic(e *echo.Echo, d Deps) {
	g := e.Group("/v1/public", d.Tenant, d.Cache)
	g.GET("/events", d.Public.ListEvents)
	g.GET("/events/:id/zones", d.Public.EventZones)
	g.GET("/zones/:id/seats", d.Public.ZoneSeats)
	g.GET("/zones/:id/availability", d.Inventory.Availability)
}

// registerOperator mounts the selling console: catalog management, carts,
// checkout, reservations, customers and fiscal reads.
func registerOperator(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		d.Tenant,
		middleware.RequireRole(model.RoleAdmin, model.RoleOperator),
	)

	// Catalog.
	g.POST("/venues", d.RateLimit(d.Catalog.CreateVenue))
	g.GET("/venues", d.Catalog.ListVenues)
	g.PUT("/venues/:id", d.Catalog.UpdateVenue)
	g.POST("/events", d.RateLimit(d.Catalog.CreateEvent))
	g.GET("/events/:id", d.Catalog.GetEvent)
	g.GET("/venues/:id/events", d.Catalog.ListEventsByVenue)
	g.POST("/events/:id/activate", d.Catalog.ActivateEvent)
	g.POST("/events/:id/transition", d.Catalog.TransitionEvent)
	g.POST("/zones", d.RateLimit(d.Catalog.CreateZone))
	g.GET("/events/:id/zones", d.Catalog.ListZones)
	g.PUT("/zones/:id/pricing", d.Catalog.UpdateZonePricing)
	g.PUT("/zones/:id/capacity", d.RateLimit(d.Inventory.ResizeZone))
	g.GET("/zones/:id/seats", d.Catalog.ListSeats)
	g.POST("/seats/:id/block", d.Catalog.BlockSeat)
	g.POST("/seats/:id/unblock", d.Catalog.UnblockSeat)

	// Pricing.
	g.POST("/price-stages", d.Catalog.CreateStage)
	g.DELETE("/price-stages/:id", d.Catalog.DeactivateStage)
	g.PUT("/zones/:id/row-pricing", d.Catalog.UpsertRowPricing)
	g.DELETE("/zones/:id/row-pricing/:row", d.Catalog.DeleteRowPricing)
	g.POST("/taxes", d.Catalog.CreateTax)
	g.DELETE("/taxes/:id", d.Catalog.DeactivateTax)

	// Carts and sales. Mutations go through the token bucket: a stuck
	// client retrying checkout must not starve the box office.
	g.POST("/carts", d.Sales.CreateCart)
	g.GET("/carts/:cart_id", d.Sales.GetCart)
	g.POST("/carts/:cart_id/lines", d.RateLimit(d.Sales.AddCartLine))
	g.DELETE("/carts/:cart_id/lines/:token", d.Sales.RemoveCartLine)
	g.POST("/checkout", d.RateLimit(d.Sales.Checkout))
	g.POST("/reservations", d.RateLimit(d.Sales.Reserve))
	g.POST("/transactions/:id/settle", d.RateLimit(d.Sales.Settle))
	g.POST("/transactions/:id/refund", d.RateLimit(d.Sales.Refund))
	g.GET("/transactions/:id", d.Sales.GetTransaction)
	g.GET("/transactions/:id/tickets", d.Tickets.ListByTransaction)

	// Inventory.
	g.GET("/zones/:id/availability", d.Inventory.Availability)
	g.POST("/holds/:token/extend", d.Inventory.ExtendHold)
	g.DELETE("/holds/:token", d.Inventory.ReleaseHold)
	g.POST("/offline-blocks", d.RateLimit(d.Inventory.OfflineBlock))
	g.POST("/offline-blocks/reconcile", d.RateLimit(d.Inventory.Reconcile))

	// Customers.
	g.POST("/customers/find-or-create", d.Customers.FindOrCreate)
	g.GET("/customers/:id", d.Customers.Get)
	g.GET("/customers/:id/preferences", d.Customers.GetPreferences)
	g.PUT("/customers/:id/preferences", d.Customers.UpdatePreferences)

	// Fiscal reads and day state.
	g.GET("/fiscal/series/:number", d.Fiscal.GetSeries)
	g.GET("/fiscal/day", d.Fiscal.GetDay)
	g.POST("/fiscal/reports", d.Fiscal.GenerateReport)
}

// registerScanner mounts the gate lane. Validators see only validation.
func registerScanner(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		d.Tenant,
		middleware.RequireRole(model.RoleAdmin, model.RoleOperator, model.RoleValidator),
	)
	g.POST("/tickets/validate", d.Tickets.Validate)
	g.POST("/tickets/bulk-validate", d.Tickets.ValidateBulk)
	g.GET("/tickets/:number", d.Tickets.GetByNumber)
}

// registerAdmin mounts operations reserved to tenant admins: voiding fiscal
// series and reading the audit trail.
func registerAdmin(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		d.Tenant,
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/fiscal/series/:number/void", d.RateLimit(d.Fiscal.VoidSeries))
	g.GET("/audit", d.Fiscal.ListAudit)
}
