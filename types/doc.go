// Package types provides core type definitions and interfaces for the roomkit library.
//
// This package contains shared types that are used across multiple packages in the
// roomkit library. By keeping these types in a separate package, we avoid import cycles
// between the main roomkit package and its internal implementations.
//
// Key types:
//   - SessionState: Session lifecycle state
//   - CollaboratorPresence: Per-user presence record
//   - EditRecord: Immutable, sequence-ordered edit operation
//   - Lock: Advisory exclusive lease on an entity
//   - Transport: Pub/sub room transport interface
//   - LeaseStore: Atomic compare-and-set store backing locks
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
