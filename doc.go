// Package roomkit provides the client-side coordination core for real-time
// collaboration: presence, advisory locking, ordered edit history and
// ephemeral cursor fan-out over a pluggable pub/sub transport.
//
// roomkit does not merge concurrent edits (no OT/CRDT) and does not persist
// content. It coordinates who is present, who may write, and in what order
// edits apply, leaving storage and rendering to its collaborators.
//
// # Quick Start
//
// Join a room for an entity and commit an edit:
//
//	import "github.com/roomkit-io/roomkit"
//
//	cfg := roomkit.DefaultConfig()
//	coord, err := roomkit.NewCoordinator(cfg, transport, leases,
//	    roomkit.Identity{UserID: "u1", DisplayName: "Alice"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer coord.Close(context.Background())
//
//	session, err := coord.Join(ctx, "task", "t42")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := session.RequestEdit(ctx)
//	if err != nil || !result.Granted {
//	    // surface "being edited by result.HolderID"
//	    return
//	}
//
//	_, err = session.CommitEdit(ctx, roomkit.OpUpdate, payload)
//
// # Key Behaviors
//
//   - Single writer: at most one unexpired lock per entity; acquire is one
//     atomic round trip against the lease store
//   - Ordered history: edits apply in authoritative sequence order regardless
//     of arrival order; remote apply is idempotent under duplicate delivery
//   - Liveness: presence heartbeats refresh the directory; records past the
//     staleness threshold are evicted even without a leave event
//   - Degraded mode: transport loss degrades the session (commits refused,
//     reads served from last-known state); reconnect drives a full resync
//     with lock revalidation
//
// # Transports
//
// The transport subpackage ships a NATS/JetStream transport for production
// and an in-process transport for tests and examples. Any implementation of
// the Transport and LeaseStore interfaces can be plugged in.
//
// See the examples/ directory for complete working examples.
package roomkit
