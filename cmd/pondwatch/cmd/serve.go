package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pondwatch/internal/logger"
	"pondwatch/internal/processor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion, alerting and HTTP API service",
	Long: `Starts the service: readings arrive over HTTP
(POST /sensors/{sensor}/current) and, when brokers are configured, from the
Kafka readings topic. Alerts are sent by SMS, published to the Kafka alerts
topic and stored in Postgres when those are configured.

The service stops gracefully on SIGINT or SIGTERM, draining queued readings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logger.WithComponent("main")
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("pondwatch starting")

		if err := processor.New(cfg).Run(ctx); err != nil {
			log.Error().Err(err).Msg("processor exited")
			return err
		}

		log.Info().Msg("exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides config)")
}
