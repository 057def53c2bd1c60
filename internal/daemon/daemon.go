// Package daemon drives continuous reconciliation on a fixed interval.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/holvi-cloud/holvi/reconciler"
	"github.com/holvi-cloud/holvi/telemetry"
)

// Config holds daemon configuration
type Config struct {
	Interval    time.Duration
	MetricsPort int
}

// Daemon manages the continuous reconciliation loop.
type Daemon struct {
	engine      *reconciler.Engine
	logger      *telemetry.Logger
	metrics     *Metrics
	interval    time.Duration
	metricsPort int
	startTime   time.Time
	passCount   atomic.Int64
}

// New creates a daemon instance.
func New(cfg Config, engine *reconciler.Engine, logger *telemetry.Logger) (*Daemon, error) {
	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon metrics: %w", err)
	}
	return &Daemon{
		engine:      engine,
		logger:      logger,
		metrics:     metrics,
		interval:    cfg.Interval,
		metricsPort: cfg.MetricsPort,
		startTime:   time.Now(),
	}, nil
}

// Start begins the reconciliation loop. Ticks that arrive while a pass is
// still running are skipped: passes never overlap.
func (d *Daemon) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// First pass immediately instead of waiting a full interval.
	d.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.runPass(ctx)
		}
	}
}

func (d *Daemon) runPass(ctx context.Context) {
	start := time.Now()
	result, err := d.engine.Run(ctx)
	duration := time.Since(start).Seconds()

	switch {
	case errors.Is(err, reconciler.ErrPassInProgress):
		d.logger.WithContext(ctx).Warn().Msg("previous pass still running, skipping tick")
		d.metrics.RecordPass(ctx, "skipped", duration, 0, 0, 0)
	case err != nil:
		d.logger.WithContext(ctx).Error().Err(err).Msg("reconciliation pass failed")
		d.metrics.RecordPass(ctx, "error", duration, result.Restored, result.Failed, result.Anomalies)
	default:
		d.passCount.Add(1)
		d.metrics.RecordPass(ctx, "ok", duration, result.Restored, result.Failed, result.Anomalies)
	}
}

// MetricsServer builds the HTTP server exposing metrics and health.
func (d *Daemon) MetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(telemetry.PrometheusRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", d.handleHealth)
	mux.HandleFunc("/-/healthy", d.handleHealth)
	mux.HandleFunc("/-/ready", d.handleHealth)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", d.metricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok uptime=%ds passes=%d\n",
		int64(time.Since(d.startTime).Seconds()), d.passCount.Load())
}

// PassCount returns total successful passes run.
func (d *Daemon) PassCount() int64 {
	return d.passCount.Load()
}
