package types

import (
	"encoding/json"
	"fmt"
)

// EventType tags the variant carried by an event envelope.
type EventType string

// Event types carried over the room transport.
const (
	// EventPresenceUpdated carries a full CollaboratorPresence record. Sent on
	// join, on every heartbeat, and in reply to a presence query.
	EventPresenceUpdated EventType = "presence_updated"

	// EventUserJoined announces a collaborator entering the room.
	EventUserJoined EventType = "user_joined"

	// EventUserLeft announces a collaborator leaving the room explicitly, so
	// peers need not wait for staleness eviction.
	EventUserLeft EventType = "user_left"

	// EventCursorMoved carries an ephemeral cursor position. High-frequency,
	// throttled, last-write-wins.
	EventCursorMoved EventType = "cursor_moved"

	// EventEditBroadcast carries a sequenced EditRecord.
	EventEditBroadcast EventType = "edit_broadcast"

	// EventLockChanged announces a lock acquire or release for an entity.
	EventLockChanged EventType = "lock_changed"

	// EventPresenceQuery asks all room members to re-announce their presence.
	// Sent on join and on reconnection resync.
	EventPresenceQuery EventType = "presence_query"
)

// Event is the tagged-variant interface for room events.
//
// Concrete variants are validated at the transport boundary before entering
// the coordination core; dynamic payloads never cross it.
type Event interface {
	// Type returns the variant tag used in the wire envelope.
	Type() EventType
}

// PresenceUpdated announces a collaborator's current presence record.
type PresenceUpdated struct {
	Presence CollaboratorPresence `json:"presence"`
}

// Type implements Event.
func (PresenceUpdated) Type() EventType { return EventPresenceUpdated }

// UserJoined announces a collaborator entering the room.
type UserJoined struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Type implements Event.
func (UserJoined) Type() EventType { return EventUserJoined }

// UserLeft announces a collaborator leaving the room.
type UserLeft struct {
	UserID string `json:"userId"`
}

// Type implements Event.
func (UserLeft) Type() EventType { return EventUserLeft }

// CursorMoved carries one user's latest cursor position.
type CursorMoved struct {
	UserID   string         `json:"userId"`
	Position CursorPosition `json:"position"`
}

// Type implements Event.
func (CursorMoved) Type() EventType { return EventCursorMoved }

// EditBroadcast carries one edit record to all room members.
type EditBroadcast struct {
	Record EditRecord `json:"record"`
}

// Type implements Event.
func (EditBroadcast) Type() EventType { return EventEditBroadcast }

// LockChanged announces a lock transition for an entity.
type LockChanged struct {
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	HolderID   string `json:"holderId,omitempty"`
	Locked     bool   `json:"locked"`
}

// Type implements Event.
func (LockChanged) Type() EventType { return EventLockChanged }

// PresenceQuery asks room members to re-announce their presence.
type PresenceQuery struct {
	RequesterID string `json:"requesterId"`
}

// Type implements Event.
func (PresenceQuery) Type() EventType { return EventPresenceQuery }

// envelope is the wire form of an event: a type tag plus the variant payload.
type envelope struct {
	Type    EventType       `json:"type"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEvent marshals an event into its wire envelope.
//
// Parameters:
//   - room: Room identifier stamped into the envelope
//   - ev: Event variant to encode
//
// Returns:
//   - []byte: JSON envelope bytes
//   - error: Marshalling error
func EncodeEvent(room string, ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.Type(), err)
	}

	return json.Marshal(envelope{Type: ev.Type(), Room: room, Payload: payload})
}

// DecodeEvent parses and validates a wire envelope into a concrete variant.
//
// Unknown type tags return ErrUnknownEvent; malformed payloads return a wrapped
// unmarshal error. This is the single validation point for dynamic transport
// payloads.
//
// Parameters:
//   - data: JSON envelope bytes
//
// Returns:
//   - string: Room identifier from the envelope
//   - Event: Decoded concrete variant
//   - error: ErrUnknownEvent or unmarshal error
func DecodeEvent(data []byte) (string, Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	var ev Event
	switch env.Type {
	case EventPresenceUpdated:
		ev = &PresenceUpdated{}
	case EventUserJoined:
		ev = &UserJoined{}
	case EventUserLeft:
		ev = &UserLeft{}
	case EventCursorMoved:
		ev = &CursorMoved{}
	case EventEditBroadcast:
		ev = &EditBroadcast{}
	case EventLockChanged:
		ev = &LockChanged{}
	case EventPresenceQuery:
		ev = &PresenceQuery{}
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}

	if err := json.Unmarshal(env.Payload, ev); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal %s payload: %w", env.Type, err)
	}

	return env.Room, ev, nil
}
