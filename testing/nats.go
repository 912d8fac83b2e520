package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StartEmbeddedNATS starts an embedded NATS server with JetStream enabled for testing.
//
// The server runs in-process and stores JetStream data in a temporary directory
// that is removed when the test completes. This gives transport tests a real
// broker without Docker or any external process: startup takes milliseconds,
// every test gets its own random port, and cleanup is registered via t.Cleanup.
//
// Parameters:
//   - t: Testing context for logging and cleanup
//
// Returns:
//   - *server.Server: The embedded NATS server instance
//   - *nats.Conn: Connected NATS client (closed automatically on test completion)
//
// Example:
//
//	func TestRoomTransport(t *testing.T) {
//	    _, nc := roomkittest.StartEmbeddedNATS(t)
//	    // Use nc to construct a transport.NATS
//	}
func StartEmbeddedNATS(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,          // Use random available port
		JetStream: true,        // Needed for the edit stream and lease bucket
		StoreDir:  t.TempDir(), // Use test temp dir (auto-cleanup)
		LogFile:   "",
		Debug:     false,
		Trace:     false,
		NoLog:     true, // Suppress all server logs in tests
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("Failed to create embedded NATS server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("Embedded NATS server not ready within timeout")
	}

	nc, err := nats.Connect(ns.ClientURL(),
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(3),
	)
	if err != nil {
		ns.Shutdown()
		t.Fatalf("Failed to connect to embedded NATS server: %v", err)
	}

	// Cleanup handlers run in reverse order.
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns, nc
}

// CreateLeaseBucket creates a JetStream KV bucket suitable for lock leases in tests.
//
// The bucket keeps a single revision per key, matching what the lock
// coordinator needs for compare-and-swap updates, and uses in-memory storage
// with a short TTL so abandoned test data does not accumulate.
//
// Parameters:
//   - t: Testing context
//   - nc: NATS connection (from StartEmbeddedNATS)
//   - bucketName: Name of the KV bucket to create
//
// Returns:
//   - jetstream.KeyValue: The created KV bucket interface
//
// Example:
//
//	func TestLeases(t *testing.T) {
//	    _, nc := roomkittest.StartEmbeddedNATS(t)
//	    kv := roomkittest.CreateLeaseBucket(t, nc, "test-locks")
//	    leases := transport.NewNATSLeases(kv)
//	}
func CreateLeaseBucket(t *testing.T, nc *nats.Conn, bucketName string) jetstream.KeyValue {
	t.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("Failed to get JetStream context: %v", err)
	}

	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Test lease bucket: %s", bucketName),
		History:     1,
		TTL:         1 * time.Minute, // Short TTL for testing
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
	})
	if err != nil {
		t.Fatalf("Failed to create KV bucket %s: %v", bucketName, err)
	}

	return kv
}

// CreateEditStream creates a JetStream stream for edit broadcasts in tests.
//
// The stream captures every subject under "<prefix>.edits.>" with in-memory
// storage, mirroring the stream the NATS transport provisions on startup.
// Use this when a test needs to inspect persisted edits directly rather than
// going through the transport.
//
// Parameters:
//   - t: Testing context
//   - nc: NATS connection (from StartEmbeddedNATS)
//   - streamName: Name of the stream to create
//   - subjectPrefix: Subject prefix the transport is configured with
//
// Returns:
//   - jetstream.Stream: The created stream handle
func CreateEditStream(t *testing.T, nc *nats.Conn, streamName, subjectPrefix string) jetstream.Stream {
	t.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("Failed to get JetStream context: %v", err)
	}

	stream, err := js.CreateOrUpdateStream(t.Context(), jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".edits.>"},
		Storage:  jetstream.MemoryStorage,
		Replicas: 1,
	})
	if err != nil {
		t.Fatalf("Failed to create edit stream %s: %v", streamName, err)
	}

	return stream
}
