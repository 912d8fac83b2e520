// Package lock implements time-bounded advisory exclusive locking per entity.
//
// Locks are leases stored in an atomic compare-and-set store: Create acquires,
// revision-checked Update renews or takes over an expired lease, and
// revision-checked Delete releases without disturbing a lease someone else
// took over. Expiry is encoded in the stored lease value and enforced by
// readers, so a crashed or disconnected editor blocks others for at most one
// lease period. A holder whose presence has gone stale is treated the same as
// an expired lease.
package lock
