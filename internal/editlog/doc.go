// Package editlog keeps the per-entity, sequence-ordered history of edit
// records.
//
// Each client holds its own copy of the log and converges with its peers
// through two properties: insertion orders records by their authoritative
// sequence regardless of arrival order, and application is idempotent, keyed
// by record ID and sequence, so at-least-once delivery cannot duplicate
// history. Locally-authored records enter the log before their sequence is
// known and are promoted once the broadcast is acknowledged.
package editlog
