package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EditOperation classifies an edit applied to an entity.
type EditOperation string

// Edit operation kinds.
const (
	OpCreate EditOperation = "create"
	OpUpdate EditOperation = "update"
	OpDelete EditOperation = "delete"
)

// EditRecord is one immutable edit operation applied to an entity.
//
// Sequence is a monotonically increasing per-room counter assigned by the
// ordering authority (the transport); it totally orders edits independent of
// arrival time. A Sequence of zero marks a locally-authored record whose
// broadcast has not yet been acknowledged; such records sort after all
// sequenced records, tie-broken by Timestamp.
type EditRecord struct {
	// ID uniquely identifies the record across clients, so an author can
	// recognize the echo of its own broadcast.
	ID string `json:"id"`

	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`

	Operation EditOperation   `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	AuthorID  string    `json:"authorId"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// EntityKey returns the canonical "entityType/entityId" key for the record.
func (r EditRecord) EntityKey() string {
	return EntityKey(r.EntityType, r.EntityID)
}

// Validate checks the structural invariants of an edit record.
//
// Returns:
//   - error: Description of the first violated invariant, nil if valid
func (r EditRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("edit record missing id")
	}
	if r.EntityType == "" || r.EntityID == "" {
		return fmt.Errorf("edit record missing entity reference")
	}
	switch r.Operation {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("unknown edit operation %q", r.Operation)
	}
	if r.AuthorID == "" {
		return fmt.Errorf("edit record missing author")
	}

	return nil
}

// EntityKey builds the canonical room identifier for an entity.
//
// Rooms and sessions are identified by the (entityType, entityId) pair; the
// joined form is used as map key, room name and lease key suffix.
func EntityKey(entityType, entityID string) string {
	return entityType + "/" + entityID
}
