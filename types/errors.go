package types

import "errors"

// Sentinel errors for the roomkit library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Coordinator and session errors - public API errors.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTransportRequired is returned when the transport is nil.
	ErrTransportRequired = errors.New("transport is required")

	// ErrLeaseStoreRequired is returned when the lease store is nil.
	ErrLeaseStoreRequired = errors.New("lease store is required")

	// ErrIdentityRequired is returned when the local identity is empty.
	ErrIdentityRequired = errors.New("local identity is required")

	// ErrSessionClosed is returned when operating on a left or closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrCoordinatorClosed is returned when joining through a closed coordinator.
	ErrCoordinatorClosed = errors.New("coordinator closed")
)

// Degraded-mode and resync errors.
var (
	// ErrDegraded is returned when a commit or acquire is attempted while the
	// transport is disconnected. Edits queue locally; commits are rejected.
	ErrDegraded = errors.New("session degraded: transport disconnected")

	// ErrStaleSession indicates local state was invalidated by a reconnection
	// resync; the caller must re-join.
	ErrStaleSession = errors.New("stale session: resync forced re-join")

	// ErrPresenceUnavailable is returned while the presence directory is being
	// replaced during resync. UIs should show a neutral "syncing" state.
	ErrPresenceUnavailable = errors.New("presence unavailable: resync in progress")
)

// Lock and broadcast errors.
var (
	// ErrLockRequestFailed indicates the acquire round trip failed due to a
	// network or store error, as opposed to denial by another holder.
	ErrLockRequestFailed = errors.New("lock request failed")

	// ErrLockNotHeld is returned when committing an edit without holding the
	// entity lock.
	ErrLockNotHeld = errors.New("lock not held")

	// ErrBroadcastFailed indicates an edit was appended locally but could not
	// be confirmed delivered within the retry budget. The edit is never
	// silently dropped; the record stays pending in the local log.
	ErrBroadcastFailed = errors.New("broadcast failed")
)

// Transport and lease store errors.
var (
	// ErrLeaseExists is returned by LeaseStore.Create when the key already holds
	// a value.
	ErrLeaseExists = errors.New("lease already exists")

	// ErrLeaseNotFound is returned when getting or updating an absent lease key.
	ErrLeaseNotFound = errors.New("lease not found")

	// ErrLeaseConflict is returned by LeaseStore.Update when the revision check
	// fails because another writer modified the key.
	ErrLeaseConflict = errors.New("lease revision conflict")

	// ErrUnknownEvent is returned when decoding an event envelope with an
	// unrecognized type tag.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrNotConnected is returned by transports when publishing while
	// disconnected.
	ErrNotConnected = errors.New("transport not connected")
)
