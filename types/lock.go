package types

import "time"

// Lock is an advisory exclusive lease on a single entity.
//
// At most one unexpired Lock may exist per (entityType, entityId) at any
// instant; this is the core single-writer invariant. A Lock is created by a
// successful acquire, and destroyed by explicit release, by lease expiry, or
// by the holder's presence going stale.
type Lock struct {
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	HolderID   string    `json:"holderId"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Expired reports whether the lease has passed its expiry at the given instant.
func (l Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// DenyReason explains why an acquire attempt was not granted.
type DenyReason string

// Deny reasons. Denial is an expected outcome, not an error: callers branch on
// the AcquireResult rather than on an error value.
const (
	// ReasonLockedByOther means another collaborator holds an active lease.
	ReasonLockedByOther DenyReason = "locked_by_other"

	// ReasonRequestFailed means the acquire round trip itself failed
	// (network or store error). Distinct from denial so callers can retry.
	ReasonRequestFailed DenyReason = "request_failed"
)

// AcquireResult is the typed outcome of a lock acquire call.
type AcquireResult struct {
	Granted bool       `json:"granted"`
	Reason  DenyReason `json:"reason,omitempty"`

	// HolderID is the current holder when denied with ReasonLockedByOther,
	// so UIs can surface "being edited by X".
	HolderID string `json:"holderId,omitempty"`
}

// LockStatus is the observable lock state for an entity.
type LockStatus struct {
	Locked   bool   `json:"locked"`
	ByMe     bool   `json:"byMe"`
	HolderID string `json:"holderId,omitempty"`
}
