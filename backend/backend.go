// Package backend abstracts the object-storage primitives Holvi needs.
package backend

import (
	"context"
	"fmt"

	"github.com/holvi-cloud/holvi/lifecycle"
	"github.com/holvi-cloud/holvi/types"
)

// Backend is the object-storage surface. All calls are bounded by the
// implementation's per-call timeout; transient failures come back as
// *types.BackendUnavailableError.
type Backend interface {
	// CreateBucket creates the bucket. Re-creating a bucket this account
	// already owns is treated as success so restoration can be retried.
	CreateBucket(ctx context.Context, name string) error

	// DeleteBucket removes the bucket. Deleting an absent bucket succeeds.
	DeleteBucket(ctx context.Context, name string) error

	// EmptyBucket deletes all object versions so the bucket can be removed.
	// An absent bucket is treated as already empty.
	EmptyBucket(ctx context.Context, name string) error

	// BucketExists probes for the bucket.
	BucketExists(ctx context.Context, name string) (bool, error)

	// BlockPublicAccess applies the public-access block baseline.
	BlockPublicAccess(ctx context.Context, name string) error

	// EnableEncryption enables default server-side encryption.
	EnableEncryption(ctx context.Context, name string) error

	// SetVersioning enables or suspends object versioning.
	SetVersioning(ctx context.Context, name string, enabled bool) error

	// ApplyLifecycle replaces the bucket's lifecycle configuration.
	ApplyLifecycle(ctx context.Context, name string, doc *lifecycle.Document) error
}

// Configure applies the security baseline and the record's requested
// versioning and lifecycle policy to its bucket. Failures here are
// non-fatal: the bucket stays created, and each failure is returned as a
// warning so the operator can remediate. A half-configured bucket must
// never be silently reported as fully compliant.
func Configure(ctx context.Context, b Backend, record *types.Record) []string {
	var warnings []string

	if err := b.BlockPublicAccess(ctx, record.BucketName); err != nil {
		warnings = append(warnings, fmt.Sprintf("failed to configure public access block: %v", err))
	}
	if err := b.EnableEncryption(ctx, record.BucketName); err != nil {
		warnings = append(warnings, fmt.Sprintf("failed to configure encryption: %v", err))
	}
	if record.Versioning {
		if err := b.SetVersioning(ctx, record.BucketName, true); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to enable versioning: %v", err))
		}
	}

	doc, err := policyDocument(record)
	if err != nil {
		warnings = append(warnings, err.Error())
	} else if doc != nil {
		if err := b.ApplyLifecycle(ctx, record.BucketName, doc); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to configure lifecycle policy: %v", err))
		}
	}

	return warnings
}

// policyDocument resolves the record's policy mode to a lifecycle document.
// The stored custom document was validated before persistence, but it is
// re-validated on the way out so a corrupted record cannot push an invalid
// configuration to the backend.
func policyDocument(record *types.Record) (*lifecycle.Document, error) {
	switch record.PolicyMode {
	case types.PolicyNone, "":
		return nil, nil
	case types.PolicyAutoArchive:
		return lifecycle.AutoArchive(), nil
	case types.PolicyAutoDelete:
		return lifecycle.AutoDelete(), nil
	case types.PolicyCustom:
		doc, err := lifecycle.Validate(record.CustomPolicy)
		if err != nil {
			return nil, fmt.Errorf("stored custom policy for %s is invalid: %w", record.OwnerKey, err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unknown policy mode %q on %s", record.PolicyMode, record.OwnerKey)
	}
}
