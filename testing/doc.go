// Package testing provides test utilities for the RoomKit library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateLeaseBucket: KV bucket for lock lease tests
//   - CreateEditStream: JetStream stream for edit broadcast tests
//   - NewTestLogger: Logger that writes through testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    roomkittest "github.com/roomkit-io/roomkit/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := roomkittest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
