// Package transport provides the built-in Transport and LeaseStore
// implementations.
//
// NATS with JetStream is the production backend: rooms map to subject
// hierarchies, edit sequencing rides on JetStream stream sequences, and locks
// live in a key-value bucket with revision-checked updates. The in-process
// memory backend implements the same contracts for tests and examples,
// including connectivity simulation for exercising degraded-mode behavior.
package transport
