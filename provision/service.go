// Package provision holds the synchronous request handlers: bucket
// creation, deletion, and listing. The handlers keep no in-process state;
// all coordination happens through the record store.
package provision

import (
	"context"

	"github.com/holvi-cloud/holvi/authz"
	"github.com/holvi-cloud/holvi/backend"
	"github.com/holvi-cloud/holvi/notify"
	"github.com/holvi-cloud/holvi/store"
	"github.com/holvi-cloud/holvi/telemetry"
	"github.com/holvi-cloud/holvi/types"
)

// Service wires the handlers to their collaborators.
type Service struct {
	store    store.Store
	backend  backend.Backend
	notifier notify.Notifier
	authz    *authz.Resolver
	logger   *telemetry.Logger

	// environmentTag partitions bucket names between deployments.
	environmentTag string
}

// NewService creates the handler service. All collaborators are injected;
// nothing is read from ambient globals.
func NewService(
	st store.Store,
	be backend.Backend,
	notifier notify.Notifier,
	resolver *authz.Resolver,
	logger *telemetry.Logger,
	environmentTag string,
) *Service {
	return &Service{
		store:          st,
		backend:        be,
		notifier:       notifier,
		authz:          resolver,
		logger:         logger,
		environmentTag: environmentTag,
	}
}

// notifyBestEffort delivers a notification without ever failing the
// primary operation.
func (s *Service) notifyBestEffort(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.LogNotifyFailure(ctx, string(msg.Event), err)
	}
}

// resolveTarget finds the record a request addresses. Plain actors are
// scoped to their own owner key; elevated actors may address any owner's
// project by display name.
func (s *Service) resolveTarget(ctx context.Context, actor types.Identity, displayName string) (*types.Record, error) {
	record, err := s.store.Get(ctx, types.MakeOwnerKey(actor.ID, displayName))
	if err == nil {
		return record, nil
	}
	if _, notFound := err.(*types.NotFoundError); notFound && s.authz.Elevated(actor) {
		return s.store.FindByDisplayName(ctx, displayName)
	}
	return nil, err
}
