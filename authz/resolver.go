// Package authz maps authenticated identities to roles and decides what an
// actor may do to a record, including whether a deletion should later be
// healed by the reconciler.
package authz

import (
	"strings"

	"github.com/holvi-cloud/holvi/types"
)

// Role is an actor's privilege tier, in ascending order.
type Role string

const (
	// RoleOwner is the default: no elevation, scoped to own records.
	RoleOwner Role = "owner"
	// RoleHelper is a broad-access tier that assists other users. A helper
	// deleting someone else's bucket is presumed to be acting without final
	// authority, so such deletions are healed.
	RoleHelper Role = "elevated-helper"
	// RoleAuthority is the administrative tier. Its deletions are final.
	RoleAuthority Role = "elevated-authority"
)

// Config holds the group names and static allow-list that drive role
// resolution. Injected at construction, never read from ambient globals.
type Config struct {
	// HelperGroup is the group claim granting RoleHelper.
	HelperGroup string
	// AuthorityGroup is the group claim granting RoleAuthority.
	AuthorityGroup string
	// AuthorityEmails is a static allow-list of identities that always
	// resolve to RoleAuthority, configured out-of-band.
	AuthorityEmails []string
}

// Resolver resolves roles and evaluates access decisions.
type Resolver struct {
	helperGroup     string
	authorityGroup  string
	authorityEmails map[string]bool
}

// NewResolver builds a resolver from config. Allow-list entries are matched
// case-insensitively on the email address.
func NewResolver(cfg Config) *Resolver {
	emails := make(map[string]bool, len(cfg.AuthorityEmails))
	for _, e := range cfg.AuthorityEmails {
		e = strings.TrimSpace(strings.ToLower(e))
		if e != "" {
			emails[e] = true
		}
	}
	return &Resolver{
		helperGroup:     cfg.HelperGroup,
		authorityGroup:  cfg.AuthorityGroup,
		authorityEmails: emails,
	}
}

// Resolve maps an identity to its role. The static allow-list wins over
// group claims, then the authority group, then the helper group.
func (r *Resolver) Resolve(actor types.Identity) Role {
	if r.authorityEmails[strings.ToLower(actor.Email)] {
		return RoleAuthority
	}
	if r.authorityGroup != "" && actor.InGroup(r.authorityGroup) {
		return RoleAuthority
	}
	if r.helperGroup != "" && actor.InGroup(r.helperGroup) {
		return RoleHelper
	}
	return RoleOwner
}

// Elevated reports whether the role carries cross-owner access.
func (r *Resolver) Elevated(actor types.Identity) bool {
	role := r.Resolve(actor)
	return role == RoleHelper || role == RoleAuthority
}

// CanRead reports whether the actor may see the record.
func (r *Resolver) CanRead(actor types.Identity, record *types.Record) bool {
	return record.IsOwner(actor.ID) || r.Elevated(actor)
}

// CanDelete reports whether the actor may delete the record. Same predicate
// as CanRead: anyone who can see a record can delete it, subject to the
// healing consequences below.
func (r *Resolver) CanDelete(actor types.Identity, record *types.Record) bool {
	return r.CanRead(actor, record)
}

// HealPolicyFor decides, at deletion time, whether the reconciler should
// later restore the bucket:
//
//   - owner deleting their own bucket: final, no healing
//   - helper deleting someone else's bucket: presumed reversible, healed
//   - authority deleting anything: final regardless of ownership
func (r *Resolver) HealPolicyFor(actor types.Identity, record *types.Record) bool {
	switch r.Resolve(actor) {
	case RoleAuthority:
		return false
	case RoleHelper:
		return !record.IsOwner(actor.ID)
	default:
		return false
	}
}
