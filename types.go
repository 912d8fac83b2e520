package roomkit

import "github.com/roomkit-io/roomkit/types"

// Re-export types from the types subpackage.
//
// This file provides the public API surface for the library's core types via
// aliases. The actual definitions live in the `types` subpackage so internal
// packages can depend on them without importing the root package, avoiding
// import cycles while keeping `roomkit.Lock`, `roomkit.Logger`, etc. for
// users.
type (
	Identity             = types.Identity
	CollaboratorPresence = types.CollaboratorPresence
	CursorPosition       = types.CursorPosition
	CursorUpdate         = types.CursorUpdate
	Selection            = types.Selection
	Lock                 = types.Lock
	LockStatus           = types.LockStatus
	AcquireResult        = types.AcquireResult
	EditRecord           = types.EditRecord
	EditOperation        = types.EditOperation
	SessionState         = types.SessionState
)

// Re-export interfaces from the types subpackage for convenience.
type (
	Transport        = types.Transport
	LeaseStore       = types.LeaseStore
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
	Unsubscribe      = types.Unsubscribe
)

// Re-export edit operation constants.
const (
	OpCreate = types.OpCreate
	OpUpdate = types.OpUpdate
	OpDelete = types.OpDelete
)

// Re-export session state constants.
const (
	StateInit      = types.StateInit
	StateJoining   = types.StateJoining
	StateActive    = types.StateActive
	StateDegraded  = types.StateDegraded
	StateResyncing = types.StateResyncing
	StateClosed    = types.StateClosed
)

// Re-export presence status constants.
const (
	StatusOnline  = types.StatusOnline
	StatusAway    = types.StatusAway
	StatusOffline = types.StatusOffline
)

// Re-export lock denial reasons.
const (
	ReasonLockedByOther = types.ReasonLockedByOther
	ReasonRequestFailed = types.ReasonRequestFailed
)
