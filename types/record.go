// Package types defines the core data model shared across Holvi.
package types

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status of a tracked record.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// PolicyMode selects the lifecycle policy applied to a bucket.
type PolicyMode string

const (
	PolicyNone        PolicyMode = "none"
	PolicyAutoArchive PolicyMode = "auto-archive"
	PolicyAutoDelete  PolicyMode = "auto-delete"
	PolicyCustom      PolicyMode = "custom"
)

// ValidPolicyMode reports whether m is one of the accepted modes.
func ValidPolicyMode(m PolicyMode) bool {
	switch m {
	case PolicyNone, PolicyAutoArchive, PolicyAutoDelete, PolicyCustom:
		return true
	}
	return false
}

// Record tracks one project's provisioned bucket and its intended
// configuration. Records are never hard-deleted; deletion flips the status
// and stamps the audit fields so reconciliation can decide what to do.
type Record struct {
	OwnerKey     string `json:"owner_key" dynamodbav:"owner_key"`
	BucketName   string `json:"bucket_name" dynamodbav:"bucket_name"`
	IdentityID   string `json:"identity_id" dynamodbav:"identity_id"`
	IdentityMail string `json:"identity_email" dynamodbav:"identity_email"`
	DisplayName  string `json:"display_name" dynamodbav:"display_name"`

	CreatedAt     time.Time `json:"created_at" dynamodbav:"created_at"`
	LastCheckedAt time.Time `json:"last_checked_at" dynamodbav:"last_checked_at"`

	Status         Status     `json:"status" dynamodbav:"status"`
	EnvironmentTag string     `json:"environment" dynamodbav:"environment"`
	Versioning     bool       `json:"versioning_enabled" dynamodbav:"versioning_enabled"`
	PolicyMode     PolicyMode `json:"policy_mode" dynamodbav:"policy_mode"`

	// CustomPolicy holds the validated lifecycle document verbatim when
	// PolicyMode is custom. It is replayed bit-for-bit on restoration.
	CustomPolicy json.RawMessage `json:"custom_policy,omitempty" dynamodbav:"custom_policy,omitempty"`

	DeletedAt         *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
	DeletedByIdentity string     `json:"deleted_by_identity,omitempty" dynamodbav:"deleted_by_identity,omitempty"`
	DeletedByEmail    string     `json:"deleted_by_email,omitempty" dynamodbav:"deleted_by_email,omitempty"`

	// ShouldHeal is decided at deletion time and consumed (cleared) by the
	// reconciler. It must be absent while the record is active.
	ShouldHeal *bool      `json:"should_heal,omitempty" dynamodbav:"should_heal,omitempty"`
	HealedAt   *time.Time `json:"healed_at,omitempty" dynamodbav:"healed_at,omitempty"`
	HealCount  int        `json:"heal_count" dynamodbav:"heal_count"`
}

// OwnerKeySep joins identity id and project name in the primary key.
const OwnerKeySep = "#"

// MakeOwnerKey builds the composite primary key for a record.
func MakeOwnerKey(identityID, displayName string) string {
	return identityID + OwnerKeySep + displayName
}

// SplitOwnerKey returns the identity id and project name parts of a key.
func SplitOwnerKey(key string) (identityID, displayName string, err error) {
	idx := strings.Index(key, OwnerKeySep)
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("malformed owner key %q", key)
	}
	return key[:idx], key[idx+1:], nil
}

// IsOwner reports whether the given identity owns this record.
func (r *Record) IsOwner(identityID string) bool {
	return r.IdentityID == identityID
}

// HealRequested reports whether the record is marked for restoration.
func (r *Record) HealRequested() bool {
	return r.ShouldHeal != nil && *r.ShouldHeal
}

var displayNameRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// Display name length bounds.
const (
	DisplayNameMinLen = 3
	DisplayNameMaxLen = 50
)

// ValidateDisplayName checks the project name format rule. The raw input is
// rejected outright when it carries uppercase letters rather than silently
// lowercased, so what the caller typed is what gets stored.
func ValidateDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name != strings.ToLower(name) {
		return "", &ValidationError{
			Field:   "display_name",
			Message: "project name must contain only lowercase letters, numbers, and hyphens (no uppercase letters allowed)",
		}
	}
	if !displayNameRe.MatchString(name) {
		return "", &ValidationError{
			Field:   "display_name",
			Message: "project name must contain only lowercase letters, numbers, and hyphens",
		}
	}
	if len(name) < DisplayNameMinLen || len(name) > DisplayNameMaxLen {
		return "", &ValidationError{
			Field:   "display_name",
			Message: fmt.Sprintf("project name must be between %d and %d characters", DisplayNameMinLen, DisplayNameMaxLen),
		}
	}
	return name, nil
}
