package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taquilla/taquilla/internal/audit"
	"github.com/taquilla/taquilla/internal/config"
	"github.com/taquilla/taquilla/internal/database"
	"github.com/taquilla/taquilla/internal/inventory"
	"github.com/taquilla/taquilla/internal/notify"
	"github.com/taquilla/taquilla/internal/repository"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "run only the hold expirer and reservation sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger()
			cfg := config.Load()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
			if err != nil {
				return err
			}
			defer db.Close()

			tenants := repository.NewTenantRepo(db)
			holds := repository.NewHoldRepo(db)
			seats := repository.NewSeatRepo(db)
			zones := repository.NewZoneRepo(db)
			events := repository.NewEventRepo(db)
			txns := repository.NewTransactionRepo(db)
			outbox := repository.NewOutboxRepo(db)
			customers := repository.NewCustomerRepo(db)
			auditor := audit.NewWriter(repository.NewAuditRepo(db))
			enqueuer := notify.NewEnqueuer(outbox, customers)

			expirer := inventory.NewExpirer(tenants, holds, seats, auditor, cfg.SweepInterval, log)
			sweeper := inventory.NewReservationSweeper(tenants, txns, seats, zones, events,
				auditor, enqueuer, cfg.ReservationTTL, cfg.SweepInterval, log)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return expirer.Run(ctx) })
			g.Go(func() error { return sweeper.Run(ctx) })
			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			return err
		},
	}
}
