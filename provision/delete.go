package provision

import (
	"context"
	"time"

	"github.com/holvi-cloud/holvi/notify"
	"github.com/holvi-cloud/holvi/types"
)

// DeleteInput identifies the target project.
type DeleteInput struct {
	DisplayName string
}

// DeleteOutput confirms the deletion. ShouldHeal is always stated so the
// actor is not surprised by a later restoration.
type DeleteOutput struct {
	BucketName string `json:"bucket_name"`
	DeletedBy  string `json:"deleted_by"`
	ShouldHeal bool   `json:"should_heal"`
}

// Delete removes the bucket and records the deletion with its audit trail
// and healing decision. Deleting a bucket that is already gone from the
// backend succeeds: the record flip is the operation that matters.
func (s *Service) Delete(ctx context.Context, actor types.Identity, input DeleteInput) (*DeleteOutput, error) {
	name, err := types.ValidateDisplayName(input.DisplayName)
	if err != nil {
		return nil, err
	}

	record, err := s.resolveTarget(ctx, actor, name)
	if err != nil {
		return nil, err
	}

	if !s.authz.CanDelete(actor, record) {
		return nil, &types.AuthorizationError{Reason: "you can only delete your own buckets"}
	}

	// A bucket with contents cannot be removed; empty it first. Both calls
	// treat an absent bucket as success.
	if err := s.backend.EmptyBucket(ctx, record.BucketName); err != nil {
		return nil, err
	}
	if err := s.backend.DeleteBucket(ctx, record.BucketName); err != nil {
		return nil, err
	}

	shouldHeal := s.authz.HealPolicyFor(actor, record)
	if err := s.store.MarkDeleted(ctx, record.OwnerKey, actor, time.Now().UTC(), shouldHeal); err != nil {
		return nil, err
	}

	s.notifyBestEffort(ctx, notify.Deleted(record, actor, shouldHeal))

	return &DeleteOutput{
		BucketName: record.BucketName,
		DeletedBy:  actor.Email,
		ShouldHeal: shouldHeal,
	}, nil
}
