// Package reconciler keeps actual backend state consistent with recorded
// intent. It is the only component with autonomous, recurring behavior:
// everything else runs per request.
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/holvi-cloud/holvi/backend"
	"github.com/holvi-cloud/holvi/notify"
	"github.com/holvi-cloud/holvi/store"
	"github.com/holvi-cloud/holvi/telemetry"
	"github.com/holvi-cloud/holvi/types"
)

// ErrPassInProgress is returned when a run is requested while another pass
// is still active. Overlapping passes against the same record could create
// duplicate buckets, so the caller skips instead of waiting.
var ErrPassInProgress = errors.New("reconciliation pass already in progress")

// Result aggregates one pass.
type Result struct {
	Processed int `json:"processed"`
	Restored  int `json:"restored"`
	Failed    int `json:"failed"`
	Anomalies int `json:"anomalies"`
}

// Engine runs reconciliation passes over all records.
type Engine struct {
	store    store.Store
	backend  backend.Backend
	notifier notify.Notifier
	logger   *telemetry.Logger

	// mu enforces non-overlapping passes within this process.
	mu sync.Mutex

	now func() time.Time
}

// New creates a reconciliation engine.
func New(st store.Store, be backend.Backend, notifier notify.Notifier, logger *telemetry.Logger) *Engine {
	return &Engine{
		store:    st,
		backend:  be,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one reconciliation pass. Records are processed
// independently: a failure on one is counted and the pass continues.
// Cancellation is honored between records, never mid-record, so every
// record is either fully handled or untouched.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if !e.mu.TryLock() {
		return Result{}, ErrPassInProgress
	}
	defer e.mu.Unlock()

	ctx, span := telemetry.Tracer.Start(ctx, "reconcile.pass")
	defer span.End()

	start := e.now()

	records, err := e.store.Scan(ctx)
	if err != nil {
		return Result{}, err
	}
	e.logger.LogPassStart(ctx, len(records))

	var result Result
	for i := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record := &records[i]
		if record.Status == types.StatusDeleted && !record.HealRequested() {
			// Deletion was made with authority. Permanent, nothing to do.
			continue
		}

		result.Processed++
		outcome, err := e.reconcileRecord(ctx, record)
		switch {
		case err != nil:
			result.Failed++
			e.logger.LogRecordFailure(ctx, record.OwnerKey, err)
		case outcome == outcomeRestored:
			result.Restored++
		case outcome == outcomeAnomaly:
			result.Anomalies++
		}
	}

	span.SetAttributes(
		attribute.Int("reconcile.processed", result.Processed),
		attribute.Int("reconcile.restored", result.Restored),
		attribute.Int("reconcile.failed", result.Failed),
	)
	e.logger.LogPassComplete(ctx, result.Processed, result.Restored, result.Failed,
		float64(e.now().Sub(start).Milliseconds()))

	return result, nil
}

type outcome int

const (
	outcomeChecked outcome = iota
	outcomeRestored
	outcomeAnomaly
)

func (e *Engine) reconcileRecord(ctx context.Context, record *types.Record) (outcome, error) {
	exists, err := e.backend.BucketExists(ctx, record.BucketName)
	if err != nil {
		return outcomeChecked, err
	}

	now := e.now().UTC()

	if record.Status == types.StatusActive {
		if exists {
			return outcomeChecked, e.store.TouchLastChecked(ctx, record.OwnerKey, now)
		}
		// Missing without a recorded deletion. There is no audit basis for
		// a healing decision, so this is flagged, not repaired.
		anomaly := &types.IntegrityAnomaly{
			OwnerKey:   record.OwnerKey,
			BucketName: record.BucketName,
			Detail:     "active record has no backing bucket and no recorded deletion",
		}
		e.logger.LogAnomaly(ctx, record.OwnerKey, record.BucketName, anomaly.Detail)
		return outcomeAnomaly, e.store.TouchLastChecked(ctx, record.OwnerKey, now)
	}

	// Deleted with should_heal set.
	if exists {
		// Recreated out-of-band. Adopt it: flip to active without claiming
		// a repair happened.
		return outcomeChecked, e.store.MarkHealed(ctx, record.OwnerKey, now, false)
	}
	return e.restore(ctx, record, now)
}

// restore recreates the bucket under its original name and reapplies the
// recorded configuration verbatim. Configuration failures are non-fatal and
// logged, matching provisioning.
func (e *Engine) restore(ctx context.Context, record *types.Record, now time.Time) (outcome, error) {
	if err := e.backend.CreateBucket(ctx, record.BucketName); err != nil {
		return outcomeChecked, err
	}

	warnings := backend.Configure(ctx, e.backend, record)
	e.logger.LogConfigWarnings(ctx, record.BucketName, warnings)

	if err := e.store.MarkHealed(ctx, record.OwnerKey, now, true); err != nil {
		return outcomeChecked, err
	}

	record.HealCount++
	e.logger.LogRestored(ctx, record.OwnerKey, record.BucketName, record.HealCount)

	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, notify.Healed(record, now)); err != nil {
			e.logger.LogNotifyFailure(ctx, string(notify.EventHealed), err)
		}
	}
	return outcomeRestored, nil
}
