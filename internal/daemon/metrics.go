package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds operational metrics using OTEL semantic conventions
type Metrics struct {
	passes       metric.Int64Counter
	passDuration metric.Float64Histogram
	restored     metric.Int64Counter
	failed       metric.Int64Counter
	anomalies    metric.Int64Counter
}

// NewMetrics creates daemon metrics
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("holvi.daemon")

	passes, err := meter.Int64Counter(
		"holvi.daemon.passes",
		metric.WithDescription("Number of reconciliation passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, err
	}

	passDuration, err := meter.Float64Histogram(
		"holvi.daemon.pass.duration",
		metric.WithDescription("Duration of reconciliation passes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	restored, err := meter.Int64Counter(
		"holvi.buckets.restored",
		metric.WithDescription("Number of buckets restored by reconciliation"),
		metric.WithUnit("{bucket}"),
	)
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter(
		"holvi.reconcile.record_failures",
		metric.WithDescription("Number of per-record reconciliation failures"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	anomalies, err := meter.Int64Counter(
		"holvi.reconcile.anomalies",
		metric.WithDescription("Number of integrity anomalies observed"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		passes:       passes,
		passDuration: passDuration,
		restored:     restored,
		failed:       failed,
		anomalies:    anomalies,
	}, nil
}

// RecordPass records one reconciliation pass with its outcome counts.
func (m *Metrics) RecordPass(ctx context.Context, status string, durationSeconds float64, restored, failed, anomalies int) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.passes.Add(ctx, 1, attrs)
	m.passDuration.Record(ctx, durationSeconds, attrs)
	m.restored.Add(ctx, int64(restored))
	m.failed.Add(ctx, int64(failed))
	m.anomalies.Add(ctx, int64(anomalies))
}
