package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taquilla/taquilla/internal/config"
	"github.com/taquilla/taquilla/internal/database"
	"github.com/taquilla/taquilla/internal/notify"
	"github.com/taquilla/taquilla/internal/repository"
)

func newNotifyWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-worker",
		Short: "run only the notification outbox dispatcher",
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

			worker := notify.NewWorker(repository.NewOutboxRepo(db), cfg.AMQPUrl, cfg.SweepInterval, log)
			err = worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			return err
		},
	}
}
