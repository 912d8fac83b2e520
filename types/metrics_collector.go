package types

// MetricsCollector defines the metrics recording interface for roomkit.
//
// Implementations must be safe for concurrent use. A nop implementation is
// used when no collector is configured, so components never nil-check.
type MetricsCollector interface {
	// RecordStateTransition records a session state transition.
	RecordStateTransition(from, to SessionState)

	// RecordLockAcquire records an acquire outcome. granted is false for
	// denials; reason distinguishes denial from request failure.
	RecordLockAcquire(granted bool, reason string)

	// RecordLockExpired records a lease that lapsed without explicit release.
	RecordLockExpired()

	// RecordLockLost records a held lock lost to renewal failure or takeover.
	RecordLockLost()

	// RecordBroadcastRetry records one retry attempt of an edit broadcast.
	RecordBroadcastRetry()

	// RecordBroadcastOutcome records the final result of an edit broadcast
	// ("success", "failure", "dropped").
	RecordBroadcastOutcome(result string)

	// RecordPresenceEviction records a presence record evicted for staleness.
	RecordPresenceEviction()

	// SetActiveCollaborators sets the current active-collaborator count.
	SetActiveCollaborators(count int)

	// RecordCursorDropped records a cursor update dropped by throttling or by
	// a slow stream subscriber.
	RecordCursorDropped(reason string)

	// RecordResync records a reconnection resync attempt outcome
	// ("success", "failure").
	RecordResync(result string)

	// SetDegraded sets the degraded-mode gauge (true while disconnected).
	SetDegraded(degraded bool)
}
