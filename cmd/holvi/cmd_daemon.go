package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/holvi-cloud/holvi/internal/daemon"
	"github.com/holvi-cloud/holvi/telemetry"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the continuous reconciliation daemon",
	Long: `Run Holvi in daemon mode for continuous reconciliation.

The daemon checks every tracked record against the backend at the
configured interval, restoring buckets whose deletion lacked authority
and flagging integrity anomalies.

Features:
- Non-overlapping reconciliation passes on a fixed interval
- Prometheus metrics on /metrics endpoint
- Health checks on /health, /-/healthy, /-/ready
- Graceful shutdown on SIGTERM/SIGINT`,
	Example: `  holvi daemon
  holvi daemon --config holvi.yaml`,
	RunE: runDaemonCmd,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	otelShutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    a.cfg.OTEL.ServiceName,
		ServiceVersion: version,
		Environment:    a.cfg.Environment,
		OTELEndpoint:   a.cfg.OTEL.Endpoint,
		Insecure:       a.cfg.OTEL.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			a.logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	d, err := daemon.New(daemon.Config{
		Interval:    a.cfg.Reconcile.Interval,
		MetricsPort: a.cfg.Reconcile.MetricsPort,
	}, a.engine, a.logger)
	if err != nil {
		return err
	}

	a.logger.Info().
		Dur("interval", a.cfg.Reconcile.Interval).
		Int("metrics_port", a.cfg.Reconcile.MetricsPort).
		Msg("starting daemon")

	var g run.Group

	loopCtx, loopCancel := context.WithCancel(ctx)
	g.Add(func() error {
		return d.Start(loopCtx)
	}, func(error) {
		loopCancel()
	})

	srv := d.MetricsServer()
	g.Add(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})

	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		a.logger.Info().Str("signal", sigErr.Signal.String()).Msg("daemon stopped")
		return nil
	}
	return err
}
