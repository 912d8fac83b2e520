package types

import "context"

// ConnStatus describes transport connectivity.
type ConnStatus int

const (
	// StatusConnected means the transport can publish and deliver events.
	StatusConnected ConnStatus = iota

	// StatusDisconnected means the transport lost its connection.
	StatusDisconnected

	// StatusReconnecting means the transport is attempting to reconnect.
	StatusReconnecting
)

// String returns the string representation of the status.
func (s ConnStatus) String() string {
	switch s {
	case StatusConnected:
		return "Connected"
	case StatusDisconnected:
		return "Disconnected"
	case StatusReconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}

// Unsubscribe removes a subscription or callback registration. Safe to call
// more than once.
type Unsubscribe func()

// EventHandler receives decoded, validated events for a room.
//
// Handlers are invoked from the transport's delivery goroutine and must not
// block; hand off to a channel or goroutine for slow work.
type EventHandler func(ev Event)

// Transport is the pub/sub collaborator that moves events between clients.
//
// Delivery is assumed at-least-once with no ordering guarantee; the
// coordination core imposes ordering for edits via the sequence returned by
// PublishEdit. Implementations decode and validate envelopes before invoking
// handlers, so only typed events enter the core.
type Transport interface {
	// JoinRoom announces interest in a room. Idempotent.
	JoinRoom(ctx context.Context, roomID string) error

	// LeaveRoom withdraws from a room. Idempotent. Subscriptions are owned by
	// their creators and are torn down via their Unsubscribe functions, not
	// by leaving; a transport may be shared by several clients.
	LeaveRoom(ctx context.Context, roomID string) error

	// Publish sends an event to all members of the room, including the sender.
	Publish(ctx context.Context, roomID string, ev Event) error

	// PublishEdit sends an edit record through the ordering authority and
	// returns the authoritative sequence assigned to it. The record is NOT
	// fanned out to room members; the caller broadcasts the sequenced record
	// via Publish afterwards.
	PublishEdit(ctx context.Context, roomID string, rec EditRecord) (uint64, error)

	// Subscribe registers a handler for one event type in a room.
	Subscribe(roomID string, eventType EventType, handler EventHandler) (Unsubscribe, error)

	// Status returns current connectivity.
	Status() ConnStatus

	// OnStatusChange registers a callback invoked on connectivity transitions.
	OnStatusChange(fn func(ConnStatus)) Unsubscribe
}

// LeaseStore is an atomic compare-and-set store backing advisory locks.
//
// The semantics mirror a key-value store with optimistic concurrency:
// Create is atomic (fails with ErrLeaseExists if the key is present), and
// Update and Delete require the current revision (failing with
// ErrLeaseConflict otherwise). Lease expiry is encoded in the stored value and
// enforced by readers; stores MAY additionally expire entries via TTL.
type LeaseStore interface {
	// Create atomically stores a value under a key that must not exist.
	//
	// Returns:
	//   - uint64: Revision of the created entry
	//   - error: ErrLeaseExists if the key is already present
	Create(ctx context.Context, key string, value []byte) (uint64, error)

	// Get returns the current value and revision for a key.
	//
	// Returns:
	//   - []byte: Stored value
	//   - uint64: Current revision
	//   - error: ErrLeaseNotFound if absent
	Get(ctx context.Context, key string) ([]byte, uint64, error)

	// Update replaces the value only if the revision matches the current one.
	//
	// Returns:
	//   - uint64: New revision
	//   - error: ErrLeaseConflict if another writer won, ErrLeaseNotFound if absent
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)

	// Delete removes a key only if the revision matches the current one. A
	// zero revision deletes unconditionally. Removing an absent key is a
	// no-op.
	//
	// Returns:
	//   - error: ErrLeaseConflict if another writer replaced the entry
	Delete(ctx context.Context, key string, revision uint64) error
}
