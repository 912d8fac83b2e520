package roomkit

import "github.com/roomkit-io/roomkit/types"

// Sentinel errors re-exported from the types package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrTransportRequired is returned when the transport is nil.
	ErrTransportRequired = types.ErrTransportRequired

	// ErrLeaseStoreRequired is returned when the lease store is nil.
	ErrLeaseStoreRequired = types.ErrLeaseStoreRequired

	// ErrIdentityRequired is returned when the local identity is incomplete.
	ErrIdentityRequired = types.ErrIdentityRequired

	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = types.ErrSessionClosed

	// ErrCoordinatorClosed is returned for operations on a closed coordinator.
	ErrCoordinatorClosed = types.ErrCoordinatorClosed

	// ErrDegraded is returned when a commit is attempted while the transport
	// is down. The session recovers on its own; retry after resync.
	ErrDegraded = types.ErrDegraded

	// ErrStaleSession is returned when local state was invalidated by a
	// reconnection resync and a full re-join is required.
	ErrStaleSession = types.ErrStaleSession

	// ErrPresenceUnavailable is returned while a resync is replacing the
	// presence directory. Show "syncing", not "no one online".
	ErrPresenceUnavailable = types.ErrPresenceUnavailable

	// ErrLockRequestFailed is returned when a lock round trip fails.
	ErrLockRequestFailed = types.ErrLockRequestFailed

	// ErrLockNotHeld is returned when committing without a granted lock.
	ErrLockNotHeld = types.ErrLockNotHeld

	// ErrBroadcastFailed is returned when an edit broadcast exhausted its
	// retry budget. The record stays in local history, the lock stays held.
	ErrBroadcastFailed = types.ErrBroadcastFailed
)
