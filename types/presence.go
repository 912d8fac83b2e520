package types

import "time"

// PresenceStatus describes a collaborator's liveness in a room.
type PresenceStatus string

// Presence status values.
const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

// CursorPosition is an ephemeral pointer position within an entity.
//
// Positions are never persisted; only the latest position per user matters,
// so lost intermediate frames are not a correctness issue.
type CursorPosition struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

// Selection is an ephemeral text/region selection within an entity.
type Selection struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text,omitempty"`
}

// CollaboratorPresence is one participant's presence record in a room.
//
// Records are replaced atomically on update: a record with a greater LastSeen
// wins in its entirety. Per-field merging is deliberately not used, so a cursor
// from one update can never be paired with a selection from another.
type CollaboratorPresence struct {
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	Status      PresenceStatus  `json:"status"`
	Cursor      *CursorPosition `json:"cursor,omitempty"`
	Selection   *Selection      `json:"selection,omitempty"`
	LastSeen    time.Time       `json:"lastSeen"`
	IsTyping    bool            `json:"isTyping"`
}

// CursorUpdate is one user's latest cursor position as delivered to stream
// subscribers.
type CursorUpdate struct {
	UserID   string         `json:"userId"`
	Position CursorPosition `json:"position"`
}

// Identity is the local user's identity as supplied by the auth collaborator.
//
// roomkit performs no authentication itself; the identity is used to stamp
// presence and edit records.
type Identity struct {
	UserID      string
	DisplayName string
}
