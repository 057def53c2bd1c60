package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/holvi-cloud/holvi/backend"
	"github.com/holvi-cloud/holvi/lifecycle"
	"github.com/holvi-cloud/holvi/notify"
	"github.com/holvi-cloud/holvi/types"
)

// CreateInput is a bucket provisioning request.
type CreateInput struct {
	DisplayName string
	// Versioning defaults to enabled when nil.
	Versioning   *bool
	PolicyMode   types.PolicyMode
	CustomPolicy json.RawMessage
}

// CreateOutput summarizes the created record.
type CreateOutput struct {
	DisplayName string       `json:"display_name"`
	BucketName  string       `json:"bucket_name"`
	Status      types.Status `json:"status"`
	// Warnings lists configuration steps that failed after the bucket was
	// created. The bucket exists but is not fully compliant until the
	// operator remediates.
	Warnings []string `json:"warnings,omitempty"`
}

// Create provisions a bucket for the actor's project. All validation runs
// before the first remote call; after the bucket exists, a failed metadata
// write triggers a best-effort teardown so no untracked bucket is left
// behind.
func (s *Service) Create(ctx context.Context, actor types.Identity, input CreateInput) (*CreateOutput, error) {
	name, err := types.ValidateDisplayName(input.DisplayName)
	if err != nil {
		return nil, err
	}

	versioning := true
	if input.Versioning != nil {
		versioning = *input.Versioning
	}

	mode := input.PolicyMode
	if mode == "" {
		mode = types.PolicyNone
	}
	if !types.ValidPolicyMode(mode) {
		return nil, &types.ValidationError{
			Field:   "policy_mode",
			Message: fmt.Sprintf("must be one of %s, %s, %s, %s", types.PolicyNone, types.PolicyAutoArchive, types.PolicyAutoDelete, types.PolicyCustom),
		}
	}

	var policyJSON json.RawMessage
	switch {
	case mode == types.PolicyCustom && len(input.CustomPolicy) == 0:
		return nil, &types.ValidationError{
			Field:   "custom_policy",
			Message: "custom lifecycle policy requires a policy document",
		}
	case mode != types.PolicyCustom && len(input.CustomPolicy) > 0:
		return nil, &types.ValidationError{
			Field:   "custom_policy",
			Message: fmt.Sprintf("policy document is only accepted with policy mode %q", types.PolicyCustom),
		}
	case mode == types.PolicyCustom:
		doc, err := lifecycle.Validate(input.CustomPolicy)
		if err != nil {
			return nil, err
		}
		policyJSON = doc.JSON()
	}

	ownerKey := types.MakeOwnerKey(actor.ID, name)

	// Advisory pre-check so an obvious duplicate fails before any backend
	// call. The conditional write below remains the real boundary.
	if _, err := s.store.Get(ctx, ownerKey); err == nil {
		return nil, &types.ConflictError{Key: ownerKey}
	}

	now := time.Now().UTC()
	record := &types.Record{
		OwnerKey:       ownerKey,
		BucketName:     s.bucketName(name),
		IdentityID:     actor.ID,
		IdentityMail:   actor.Email,
		DisplayName:    name,
		CreatedAt:      now,
		LastCheckedAt:  now,
		Status:         types.StatusActive,
		EnvironmentTag: s.environmentTag,
		Versioning:     versioning,
		PolicyMode:     mode,
		CustomPolicy:   policyJSON,
	}

	if err := s.backend.CreateBucket(ctx, record.BucketName); err != nil {
		return nil, err
	}

	warnings := backend.Configure(ctx, s.backend, record)
	s.logger.LogConfigWarnings(ctx, record.BucketName, warnings)

	if err := s.store.Create(ctx, record); err != nil {
		s.teardown(ctx, record.BucketName, err)
		return nil, err
	}

	s.notifyBestEffort(ctx, notify.Created(record))

	return &CreateOutput{
		DisplayName: record.DisplayName,
		BucketName:  record.BucketName,
		Status:      record.Status,
		Warnings:    warnings,
	}, nil
}

// bucketName builds a globally-unique backend name. The random suffix
// carries enough entropy that no existence pre-check is needed.
func (s *Service) bucketName(displayName string) string {
	return fmt.Sprintf("%s-%s-%s", s.environmentTag, displayName, uuid.NewString()[:8])
}

// teardown removes a bucket whose record could not be persisted. Best
// effort: a teardown failure is logged and must not mask the original
// persistence error.
func (s *Service) teardown(ctx context.Context, bucketName string, cause error) {
	s.logger.WithContext(ctx).Error().
		Err(cause).
		Str("bucket", bucketName).
		Msg("record write failed after bucket creation, tearing bucket down")

	if err := s.backend.DeleteBucket(ctx, bucketName); err != nil {
		s.logger.WithContext(ctx).Error().
			Err(err).
			Str("bucket", bucketName).
			Msg("teardown failed, bucket exists but is not tracked")
	}
}
