package provision

import (
	"context"
	"encoding/json"
	"time"

	"github.com/holvi-cloud/holvi/authz"
	"github.com/holvi-cloud/holvi/types"
)

// ListInput optionally narrows the listing to one project.
type ListInput struct {
	DisplayName string
}

// RecordSummary is the caller-facing projection of a record. The raw
// identity id is withheld from plain users; elevated actors get the
// ownership-attribution fields instead.
type RecordSummary struct {
	DisplayName    string           `json:"display_name"`
	BucketName     string           `json:"bucket_name"`
	OwnerEmail     string           `json:"owner_email"`
	Status         types.Status     `json:"status"`
	EnvironmentTag string           `json:"environment"`
	Versioning     bool             `json:"versioning_enabled"`
	PolicyMode     types.PolicyMode `json:"policy_mode"`
	CustomPolicy   json.RawMessage  `json:"custom_policy,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	LastCheckedAt  time.Time        `json:"last_checked_at"`
	DeletedAt      *time.Time       `json:"deleted_at,omitempty"`
	DeletedByEmail string           `json:"deleted_by_email,omitempty"`
	ShouldHeal     *bool            `json:"should_heal,omitempty"`
	HealedAt       *time.Time       `json:"healed_at,omitempty"`
	HealCount      int              `json:"heal_count"`

	// Elevated-only attribution.
	OwnerIdentityID string `json:"owner_identity_id,omitempty"`
	ActorRole       string `json:"actor_role,omitempty"`
}

// List returns the records the actor may see. Plain actors get their own
// records; elevated actors see every owner's records with attribution.
func (s *Service) List(ctx context.Context, actor types.Identity, input ListInput) ([]RecordSummary, error) {
	role := s.authz.Resolve(actor)
	elevated := role == authz.RoleHelper || role == authz.RoleAuthority

	if input.DisplayName != "" {
		name, err := types.ValidateDisplayName(input.DisplayName)
		if err != nil {
			return nil, err
		}
		record, err := s.resolveTarget(ctx, actor, name)
		if err != nil {
			return nil, err
		}
		if !s.authz.CanRead(actor, record) {
			return nil, &types.NotFoundError{Key: name}
		}
		return []RecordSummary{summarize(record, role, elevated)}, nil
	}

	var records []types.Record
	var err error
	if elevated {
		records, err = s.store.Scan(ctx)
	} else {
		records, err = s.store.ListByOwner(ctx, actor.ID)
	}
	if err != nil {
		return nil, err
	}

	summaries := make([]RecordSummary, 0, len(records))
	for i := range records {
		summaries = append(summaries, summarize(&records[i], role, elevated))
	}
	return summaries, nil
}

func summarize(record *types.Record, role authz.Role, elevated bool) RecordSummary {
	summary := RecordSummary{
		DisplayName:    record.DisplayName,
		BucketName:     record.BucketName,
		OwnerEmail:     record.IdentityMail,
		Status:         record.Status,
		EnvironmentTag: record.EnvironmentTag,
		Versioning:     record.Versioning,
		PolicyMode:     record.PolicyMode,
		CustomPolicy:   record.CustomPolicy,
		CreatedAt:      record.CreatedAt,
		LastCheckedAt:  record.LastCheckedAt,
		DeletedAt:      record.DeletedAt,
		DeletedByEmail: record.DeletedByEmail,
		ShouldHeal:     record.ShouldHeal,
		HealedAt:       record.HealedAt,
		HealCount:      record.HealCount,
	}
	if elevated {
		summary.OwnerIdentityID = record.IdentityID
		summary.ActorRole = string(role)
	}
	return summary
}
