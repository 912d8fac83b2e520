package types

import "context"

// Hooks defines callbacks for session lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// to avoid blocking the session's event handling. Hooks receive the session's
// lifecycle context, which is cancelled on leave.
//
// Hook implementations should complete quickly, respect context cancellation,
// and be idempotent; hook errors are logged but never fail session operations.
type Hooks struct {
	// OnStateChanged is called when the session state transitions.
	OnStateChanged func(ctx context.Context, from, to SessionState) error

	// OnPresenceChanged is called when the set of active collaborators changes
	// (join, leave, heartbeat update, staleness eviction).
	OnPresenceChanged func(ctx context.Context, active []CollaboratorPresence) error

	// OnLockLost is called when a held lock could not be renewed or was taken
	// over during a transport outage. The user must restart their edit.
	OnLockLost func(ctx context.Context, entityType, entityID string) error

	// OnError is called when a recoverable error occurs (failed broadcast
	// retry, resync attempt failure).
	OnError func(ctx context.Context, err error) error
}
