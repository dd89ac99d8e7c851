package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eodrift/jobtracker/internal/observability"
	"github.com/eodrift/jobtracker/internal/server"
	"github.com/eodrift/jobtracker/internal/server/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run reconciliation passes on an interval, with health and metrics endpoints",
	Long: `Run the tracker as a long-lived service: a reconciliation pass every
--interval, plus /health and /metrics endpoints for probes and scraping.

Example:
  jobtracker serve --config jobtracker.yaml --interval 60s`,
	RunE: runServe,
}

var serveInterval time.Duration

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0,
		"Time between reconciliation passes (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := observability.CLILogger

	if serveInterval > 0 {
		cfg.Interval = serveInterval
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	registerer := prometheus.DefaultRegisterer
	metrics := observability.NewTrackerMetrics(registerer)

	deps, err := buildTracker(cfg, metrics)
	if err != nil {
		log.Error("Failed to build tracker", zap.Error(err))
		return err
	}
	defer deps.close()

	// The readiness check must not take the registry lock: a tracking pass
	// holds it exclusively for the whole pass.
	health := handlers.NewHealthManager(Version)
	health.RegisterChecker("registry", handlers.HealthCheckerFunc(deps.registry.Ping))

	srv := server.New(cfg.Server.Host, cfg.Server.Port, health, prometheus.DefaultGatherer)
	go func() {
		log.Info("Serving health and metrics",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		if err := srv.Start(); err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting tracking loop", zap.Duration("interval", cfg.Interval))
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := deps.tracker.UpdateStatuses(ctx, cfg.FailFast); err != nil {
			// In daemon mode a failed pass is logged and retried on the
			// next tick; fail_fast only bounds one pass, not the loop.
			log.Error("Tracking pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case <-ticker.C:
		}
	}
}
