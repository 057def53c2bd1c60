package types

import "fmt"

// ValidationError reports bad input shape or content. Always client-caused,
// never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError reports a duplicate owner key or bucket name.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record already exists: %s", e.Key)
}

// AuthorizationError reports that the actor lacks rights on the target.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return e.Reason
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s", e.Key)
}

// BackendUnavailableError wraps a transient object-storage failure. Safe to
// retry with backoff; during reconciliation it is counted per-record instead
// of aborting the pass.
type BackendUnavailableError struct {
	Op  string
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable during %s: %v", e.Op, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// PersistenceError wraps a metadata store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IntegrityAnomaly reports observed state inconsistent with recorded state,
// e.g. an active record whose bucket is gone without a recorded deletion.
// Anomalies are logged and alerted, never auto-corrected: there is no
// deletion-audit basis for a healing decision.
type IntegrityAnomaly struct {
	OwnerKey   string
	BucketName string
	Detail     string
}

func (e *IntegrityAnomaly) Error() string {
	return fmt.Sprintf("integrity anomaly for %s (bucket %s): %s", e.OwnerKey, e.BucketName, e.Detail)
}
