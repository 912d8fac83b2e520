// Package reconnect supervises transport connectivity for a session.
//
// On disconnect the session is degraded, not torn down: locks stop renewing
// and edit commits are refused while reads keep serving last-known state. On
// reconnect the supervisor drives a full resync with exponential backoff
// before the session re-enters normal operation, because state changed during
// the outage cannot be assumed to have survived.
package reconnect
