// Command taquilla runs the ticketing service. The serve subcommand hosts
// the HTTP API plus every background loop; notify-worker and sweep run the
// loops standalone for deployments that separate them.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	// Missing .env is fine in containerized deployments; env vars win.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "taquilla",
		Short:         "multi-tenant live-event ticketing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newNotifyWorkerCmd(), newSweepCmd())

	if err := root.Execute(); err != nil {
		logger := newLogger()
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && l != zerolog.NoLevel {
		level = l
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
