// Package presence maintains the per-room collaborator presence directory.
//
// Each client holds its own local projection of who is in the room. Records
// are refreshed by heartbeats and replaced wholesale on update (greater
// LastSeen wins); a background sweeper evicts records whose heartbeat has not
// been refreshed within the staleness threshold, protecting against abrupt
// disconnects that never produce an explicit leave event.
package presence
