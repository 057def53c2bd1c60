// Package notify defines the fire-and-forget notification channel.
//
// Notifications never fail the primary operation: callers log delivery
// errors and move on.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/holvi-cloud/holvi/types"
)

// Event classifies a notification.
type Event string

const (
	EventCreated Event = "bucket_created"
	EventDeleted Event = "bucket_deleted"
	EventHealed  Event = "bucket_healed"
)

// Message is one notification.
type Message struct {
	Event       Event  `json:"event"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	BucketName  string `json:"bucket_name"`
	DisplayName string `json:"display_name"`
	OwnerEmail  string `json:"owner_email"`
}

// Notifier delivers messages to one backend.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Close() error
}

// Created builds the provisioning notification.
func Created(record *types.Record) Message {
	return Message{
		Event:       EventCreated,
		Subject:     "Bucket Created",
		Body:        fmt.Sprintf("Bucket %s created for project %s by user %s", record.BucketName, record.DisplayName, record.IdentityMail),
		BucketName:  record.BucketName,
		DisplayName: record.DisplayName,
		OwnerEmail:  record.IdentityMail,
	}
}

// Deleted builds the deletion notification, stating whether the bucket will
// come back so nobody is surprised by a later restoration.
func Deleted(record *types.Record, by types.Identity, shouldHeal bool) Message {
	outcome := "The deletion is final."
	if shouldHeal {
		outcome = "The bucket will be automatically restored."
	}
	return Message{
		Event:       EventDeleted,
		Subject:     "Bucket Deleted - " + record.DisplayName,
		Body:        fmt.Sprintf("Bucket %s for project %q was deleted by %s. %s", record.BucketName, record.DisplayName, by.Email, outcome),
		BucketName:  record.BucketName,
		DisplayName: record.DisplayName,
		OwnerEmail:  record.IdentityMail,
	}
}

// Healed builds the restoration notification with the full deletion and
// restoration context.
func Healed(record *types.Record, healedAt time.Time) Message {
	deletedAt := "unknown time"
	if record.DeletedAt != nil {
		deletedAt = record.DeletedAt.UTC().Format(time.RFC3339)
	}
	body := fmt.Sprintf(
		"Bucket %s for project %q was automatically recreated.\n\n"+
			"Deleted by: %s at %s\n"+
			"Restored at: %s (restoration #%d)\n\n"+
			"The deletion was made without final authority, so the bucket has been restored with its original configuration.",
		record.BucketName, record.DisplayName,
		record.DeletedByEmail, deletedAt,
		healedAt.UTC().Format(time.RFC3339), record.HealCount)
	return Message{
		Event:       EventHealed,
		Subject:     "Bucket Healed - " + record.DisplayName,
		Body:        body,
		BucketName:  record.BucketName,
		DisplayName: record.DisplayName,
		OwnerEmail:  record.IdentityMail,
	}
}

// Multi fans a message out to several backends. Delivery is best-effort
// everywhere, so it keeps going past failures and returns the first error
// for logging.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a fan-out notifier.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

// Notify sends to all backends.
func (m *Multi) Notify(ctx context.Context, msg Message) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes all backends.
func (m *Multi) Close() error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
