// Package telemetry provides the structured logger and OTEL wiring.
package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation)
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// Convenience methods for reconciliation events

func (l *Logger) LogPassStart(ctx context.Context, candidates int) {
	l.WithContext(ctx).Info().
		Int("candidates", candidates).
		Str("operation", "reconcile_pass").
		Msg("starting reconciliation pass")
}

func (l *Logger) LogPassComplete(ctx context.Context, processed, restored, failed int, durationMs float64) {
	l.WithContext(ctx).Info().
		Int("processed", processed).
		Int("restored", restored).
		Int("failed", failed).
		Float64("duration_ms", durationMs).
		Str("operation", "reconcile_pass").
		Msg("reconciliation pass completed")
}

func (l *Logger) LogRestored(ctx context.Context, ownerKey, bucket string, healCount int) {
	l.WithContext(ctx).Info().
		Str("owner_key", ownerKey).
		Str("bucket", bucket).
		Int("heal_count", healCount).
		Str("operation", "restore").
		Msg("bucket restored")
}

func (l *Logger) LogAnomaly(ctx context.Context, ownerKey, bucket, detail string) {
	l.WithContext(ctx).Warn().
		Str("owner_key", ownerKey).
		Str("bucket", bucket).
		Str("detail", detail).
		Str("operation", "reconcile_pass").
		Msg("integrity anomaly detected")
}

func (l *Logger) LogRecordFailure(ctx context.Context, ownerKey string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("owner_key", ownerKey).
		Str("operation", "reconcile_pass").
		Msg("record processing failed")
}

func (l *Logger) LogNotifyFailure(ctx context.Context, event string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("event", event).
		Str("operation", "notify").
		Msg("notification delivery failed")
}

func (l *Logger) LogConfigWarnings(ctx context.Context, bucket string, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	l.WithContext(ctx).Warn().
		Str("bucket", bucket).
		Strs("warnings", warnings).
		Str("operation", "configure").
		Msg("bucket configured with warnings")
}
