// Package store defines typed access to the record metadata store.
//
// Two implementations exist: store/dynamo for production and store/bolt for
// local mode and tests. Both enforce the same contract: the owner key is the
// only primary key, creation is conditional on the key not existing, and
// records are never hard-deleted.
package store

import (
	"context"
	"time"

	"github.com/holvi-cloud/holvi/types"
)

// Store persists and looks up bucket records.
type Store interface {
	// Create persists a new record. It must fail with *types.ConflictError
	// when a record already exists at the owner key. The conditional write
	// is the uniqueness boundary; callers must not rely on a separate
	// check-then-write.
	Create(ctx context.Context, record *types.Record) error

	// Get returns the record at the owner key, or *types.NotFoundError.
	Get(ctx context.Context, ownerKey string) (*types.Record, error)

	// GetByBucket looks a record up by its backend bucket name.
	GetByBucket(ctx context.Context, bucketName string) (*types.Record, error)

	// ListByOwner returns every record owned by the identity.
	ListByOwner(ctx context.Context, identityID string) ([]types.Record, error)

	// FindByDisplayName searches across all owners for a record with the
	// given project name. Used by elevated actors only.
	FindByDisplayName(ctx context.Context, displayName string) (*types.Record, error)

	// Scan returns all records. The reconciler filters candidates itself.
	Scan(ctx context.Context) ([]types.Record, error)

	// MarkDeleted flips the record to deleted and stamps the audit fields
	// and the should-heal decision.
	MarkDeleted(ctx context.Context, ownerKey string, by types.Identity, at time.Time, shouldHeal bool) error

	// MarkHealed flips the record back to active and clears should-heal.
	// When repaired is true a restoration was performed: healed_at is set
	// and heal_count incremented. When false the bucket already existed and
	// only the status flip and last-checked touch happen. Deletion audit
	// fields are preserved either way.
	MarkHealed(ctx context.Context, ownerKey string, at time.Time, repaired bool) error

	// TouchLastChecked records a reconciliation probe.
	TouchLastChecked(ctx context.Context, ownerKey string, at time.Time) error

	Close() error
}
