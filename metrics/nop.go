// Package metrics provides MetricsCollector implementations for roomkit.
package metrics

import "github.com/roomkit-io/roomkit/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external metrics
// collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordStateTransition discards the state transition metric.
func (*NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.SessionState) {}

// RecordLockAcquire discards the acquire outcome metric.
func (*NopMetrics) RecordLockAcquire(_ /* granted */ bool, _ /* reason */ string) {}

// RecordLockExpired discards the lease expiry metric.
func (*NopMetrics) RecordLockExpired() {}

// RecordLockLost discards the lock loss metric.
func (*NopMetrics) RecordLockLost() {}

// RecordBroadcastRetry discards the broadcast retry metric.
func (*NopMetrics) RecordBroadcastRetry() {}

// RecordBroadcastOutcome discards the broadcast outcome metric.
func (*NopMetrics) RecordBroadcastOutcome(_ /* result */ string) {}

// RecordPresenceEviction discards the presence eviction metric.
func (*NopMetrics) RecordPresenceEviction() {}

// SetActiveCollaborators discards the active-collaborator gauge.
func (*NopMetrics) SetActiveCollaborators(_ /* count */ int) {}

// RecordCursorDropped discards the dropped-cursor metric.
func (*NopMetrics) RecordCursorDropped(_ /* reason */ string) {}

// RecordResync discards the resync outcome metric.
func (*NopMetrics) RecordResync(_ /* result */ string) {}

// SetDegraded discards the degraded-mode gauge.
func (*NopMetrics) SetDegraded(_ /* degraded */ bool) {}
