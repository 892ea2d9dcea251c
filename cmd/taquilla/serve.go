package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taquilla/taquilla/internal/audit"
	"github.com/taquilla/taquilla/internal/checkout"
	"github.com/taquilla/taquilla/internal/config"
	"github.com/taquilla/taquilla/internal/customer"
	"github.com/taquilla/taquilla/internal/database"
	"github.com/taquilla/taquilla/internal/domain"
	"github.com/taquilla/taquilla/internal/fiscal"
	"github.com/taquilla/taquilla/internal/handler"
	"github.com/taquilla/taquilla/internal/inventory"
	"github.com/taquilla/taquilla/internal/middleware"
	"github.com/taquilla/taquilla/internal/notify"
	"github.com/taquilla/taquilla/internal/pricing"
	"github.com/taquilla/taquilla/internal/repository"
	"github.com/taquilla/taquilla/internal/router"
	"github.com/taquilla/taquilla/internal/ticket"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API with all background loops",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	log := newLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	// Repositories.
	tenants := repository.NewTenantRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	venues := repository.NewVenueRepo(db)
	events := repository.NewEventRepo(db)
	zones := repository.NewZoneRepo(db)
	seats := repository.NewSeatRepo(db)
	stages := repository.NewPriceStageRepo(db)
	rowPrices := repository.NewRowPricingRepo(db)
	taxes := repository.NewTaxRepo(db)
	fiscalRepo := repository.NewFiscalRepo(db)
	txns := repository.NewTransactionRepo(db)
	holds := repository.NewHoldRepo(db)
	tickets := repository.NewTicketRepo(db)
	customers := repository.NewCustomerRepo(db)
	auditRepo := repository.NewAuditRepo(db)
	outbox := repository.NewOutboxRepo(db)

	// A counter gap means sales happened outside the allocator; refuse to
	// certify anything more until a human looks.
	if err := assertFiscalIntegrity(ctx, tenants, fiscalRepo); err != nil {
		return err
	}

	// Services.
	auditor := audit.NewWriter(auditRepo)
	manager := inventory.NewManager(holds, seats, zones, auditor, cfg.HoldTTL)
	resolver := pricing.NewResolver(zones, stages, rowPrices)
	codec, err := ticket.NewCodec(cfg.TicketKey)
	if err != nil {
		return err
	}
	issuer := ticket.NewIssuer(codec, tickets)
	validator := ticket.NewValidator(codec, tickets, events)
	registry := customer.NewRegistry(customers)
	enqueuer := notify.NewEnqueuer(outbox, customers)
	ledger := fiscal.NewLedger(fiscalRepo, tickets, auditor)
	carts := checkout.NewCartService(manager, holds)
	orch := checkout.NewOrchestrator(registry, manager, holds, seats, zones, events,
		txns, taxes, fiscalRepo, ledger, resolver, issuer, tickets, enqueuer, auditor,
		checkout.CashProcessor{}, cfg.PaymentDeadline)

	// Background loops.
	expirer := inventory.NewExpirer(tenants, holds, seats, auditor, cfg.SweepInterval, log)
	sweeper := inventory.NewReservationSweeper(tenants, txns, seats, zones, events,
		auditor, enqueuer, cfg.ReservationTTL, cfg.SweepInterval, log)
	worker := notify.NewWorker(outbox, cfg.AMQPUrl, cfg.SweepInterval, log)

	// Redis-backed middleware degrades to pass-through without Redis.
	rdb := config.NewRedisClient()
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	respCache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(log))

	router.Register(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Tenant:    middleware.ResolveTenant(tenants),
		Auth:      handler.NewAuthHandler(cfg, users, tokens),
		Catalog:   handler.NewCatalogHandler(venues, events, zones, seats, stages, rowPrices, taxes),
		Sales:     handler.NewSalesHandler(carts, orch, txns, events, zones),
		Inventory: handler.NewInventoryHandler(manager),
		Fiscal:    handler.NewFiscalHandler(ledger, fiscalRepo, auditRepo),
		Tickets:   handler.NewTicketHandler(validator, tickets),
		Customers: handler.NewCustomerHandler(registry, customers),
		Public:    handler.NewPublicHandler(events, zones, seats, manager),
		Health: handler.Health(db, map[string]handler.LivenessChecker{
			"hold_expirer":        expirer,
			"reservation_sweeper": sweeper,
			"notify_worker":       worker,
		}),
		RateLimit: rateLimit,
		Cache:     respCache,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return expirer.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })
	g.Go(func() error { return worker.Run(ctx) })
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Msg("server stopped")
	return err
}

// assertFiscalIntegrity checks, per active tenant, that the series counter
// exists and that the allocated series numbers are dense.
func assertFiscalIntegrity(ctx context.Context, tenants *repository.TenantRepo, fr *repository.FiscalRepo) error {
	list, err := tenants.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, t := range list {
		tctx := domain.WithTenant(ctx, domain.TenantRef{ID: t.ID, Slug: t.Slug})
		if err := fr.EnsureCounter(tctx); err != nil {
			return err
		}
		if err := fr.AssertDense(tctx); err != nil {
			return err
		}
	}
	return nil
}
