package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/roomkit-io/roomkit/types"
)

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	// SubjectPrefix is the root of the subject hierarchy. Room events are
	// published to <prefix>.room.<room>.<eventType>, edit records to
	// <prefix>.edits.<room>.
	SubjectPrefix string `yaml:"subjectPrefix"`

	// EditStream is the JetStream stream capturing <prefix>.edits.>. The
	// stream is the ordering authority: the publish ack's stream sequence
	// becomes the edit record's authoritative sequence.
	EditStream string `yaml:"editStream"`

	// LockBucket is the JetStream KV bucket backing entity locks.
	LockBucket string `yaml:"lockBucket"`

	// LockTTL is an optional KV-level TTL backstop for lock entries
	// (0 = none). Lease expiry is enforced by readers either way; the TTL
	// only garbage-collects entries of clients that never came back.
	LockTTL time.Duration `yaml:"lockTtl"`
}

// DefaultNATSConfig returns a NATSConfig with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		SubjectPrefix: "roomkit",
		EditStream:    "ROOMKIT_EDITS",
		LockBucket:    "roomkit-locks",
	}
}

// NATS is the production Transport over NATS with JetStream.
//
// Plain NATS pub/sub fans room events out (at-least-once semantics are
// supplied by the coordination core's idempotency, not the broker); a
// JetStream stream sequences edit records; a KV bucket with revision-checked
// updates backs the lease store.
type NATS struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  NATSConfig

	mu         sync.Mutex
	statusSubs map[int]func(types.ConnStatus)
	nextStatID int

	leases *NATSLeases
}

// NewNATS creates a NATS transport over an established connection.
//
// Ensures the edit stream and lock bucket exist (idempotent, safe under
// concurrent client startup) and installs connection handlers that feed
// OnStatusChange. The caller keeps ownership of the connection.
//
// Parameters:
//   - ctx: Context for stream and bucket provisioning
//   - conn: Established NATS connection
//   - cfg: Transport configuration (zero values are defaulted)
//
// Returns:
//   - *NATS: New transport instance
//   - error: Provisioning failure
func NewNATS(ctx context.Context, conn *nats.Conn, cfg NATSConfig) (*NATS, error) {
	defaults := DefaultNATSConfig()
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaults.SubjectPrefix
	}
	if cfg.EditStream == "" {
		cfg.EditStream = defaults.EditStream
	}
	if cfg.LockBucket == "" {
		cfg.LockBucket = defaults.LockBucket
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.EditStream,
		Subjects: []string{cfg.SubjectPrefix + ".edits.>"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure edit stream %s: %w", cfg.EditStream, err)
	}

	kvCfg := jetstream.KeyValueConfig{
		Bucket:  cfg.LockBucket,
		History: 1,
	}
	if cfg.LockTTL > 0 {
		kvCfg.TTL = cfg.LockTTL
	}

	kv, err := ensureLockBucket(ctx, js, kvCfg)
	if err != nil {
		return nil, err
	}

	t := &NATS{
		conn:       conn,
		js:         js,
		cfg:        cfg,
		statusSubs: make(map[int]func(types.ConnStatus)),
		leases:     &NATSLeases{kv: kv},
	}

	conn.SetDisconnectErrHandler(func(_ *nats.Conn, _ error) {
		t.notifyStatus(types.StatusDisconnected)
	})
	conn.SetReconnectHandler(func(_ *nats.Conn) {
		t.notifyStatus(types.StatusConnected)
	})

	return t, nil
}

// Leases returns the lease store backed by this transport's lock bucket.
func (t *NATS) Leases() *NATSLeases {
	return t.leases
}

// JoinRoom implements types.Transport.
//
// NATS needs no membership announcement; interest is expressed per
// subscription. Idempotent by construction.
func (t *NATS) JoinRoom(_ context.Context, _ string) error {
	if !t.conn.IsConnected() {
		return types.ErrNotConnected
	}

	return nil
}

// LeaveRoom implements types.Transport.
//
// NATS interest is per subscription, and subscriptions are owned by their
// creators; leaving a room tears nothing down. A no-op by construction.
func (t *NATS) LeaveRoom(_ context.Context, _ string) error {
	return nil
}

// Publish implements types.Transport.
func (t *NATS) Publish(_ context.Context, roomID string, ev types.Event) error {
	data, err := types.EncodeEvent(roomID, ev)
	if err != nil {
		return err
	}

	if !t.conn.IsConnected() {
		return types.ErrNotConnected
	}

	if err := t.conn.Publish(t.roomSubject(roomID, ev.Type()), data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.Type(), err)
	}

	return nil
}

// PublishEdit implements types.Transport.
//
// The JetStream stream is the single ordering authority: the ack's stream
// sequence is monotonic across publishes, giving every edit record a unique,
// totally-ordered sequence independent of arrival order at other clients.
func (t *NATS) PublishEdit(ctx context.Context, roomID string, rec types.EditRecord) (uint64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal edit record: %w", err)
	}

	ack, err := t.js.Publish(ctx, t.editSubject(roomID), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish edit record: %w", err)
	}

	return ack.Sequence, nil
}

// Subscribe implements types.Transport.
func (t *NATS) Subscribe(roomID string, eventType types.EventType, handler types.EventHandler) (types.Unsubscribe, error) {
	sub, err := t.conn.Subscribe(t.roomSubject(roomID, eventType), func(msg *nats.Msg) {
		_, ev, err := types.DecodeEvent(msg.Data)
		if err != nil {
			// Malformed or unknown events never reach the core.
			return
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
	}

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
		})
	}

	return unsub, nil
}

// Status implements types.Transport.
func (t *NATS) Status() types.ConnStatus {
	switch t.conn.Status() {
	case nats.CONNECTED:
		return types.StatusConnected
	case nats.RECONNECTING:
		return types.StatusReconnecting
	default:
		return types.StatusDisconnected
	}
}

// OnStatusChange implements types.Transport.
func (t *NATS) OnStatusChange(fn func(types.ConnStatus)) types.Unsubscribe {
	t.mu.Lock()
	id := t.nextStatID
	t.nextStatID++
	t.statusSubs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.statusSubs, id)
		t.mu.Unlock()
	}
}

// notifyStatus fans a connectivity transition out to listeners.
func (t *NATS) notifyStatus(status types.ConnStatus) {
	t.mu.Lock()
	listeners := make([]func(types.ConnStatus), 0, len(t.statusSubs))
	for _, fn := range t.statusSubs {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

// roomSubject builds the subject for one room event type.
func (t *NATS) roomSubject(roomID string, eventType types.EventType) string {
	return t.cfg.SubjectPrefix + ".room." + sanitizeToken(roomID) + "." + string(eventType)
}

// editSubject builds the edit stream subject for a room.
func (t *NATS) editSubject(roomID string) string {
	return t.cfg.SubjectPrefix + ".edits." + sanitizeToken(roomID)
}

// sanitizeToken makes a room identifier safe as a single subject token.
//
// Room IDs are "entityType/entityId"; the separator and any characters with
// subject semantics are folded to underscores.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '.', '*', '>', ' ':
			return '_'
		default:
			return r
		}
	}, s)
}

// ensureLockBucket creates or opens the lock bucket.
//
// Several clients may start against the same bucket at once; creation losing
// the race falls back to opening, and transient provisioning errors are
// retried with a short backoff.
func ensureLockBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	const attempts = 5

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<uint(i-1)) * 10 * time.Millisecond):
			}
		}

		kv, err := js.CreateKeyValue(ctx, cfg)
		if err == nil {
			return kv, nil
		}
		if errors.Is(err, jetstream.ErrBucketExists) {
			if kv, err = js.KeyValue(ctx, cfg.Bucket); err == nil {
				return kv, nil
			}
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed to ensure lock bucket %s: %w", cfg.Bucket, lastErr)
}

// NATSLeases is the LeaseStore over a JetStream KV bucket.
//
// KV revisions provide the optimistic concurrency the lock coordinator
// needs: Create is atomic, Update fails on a revision mismatch when another
// writer got there first.
type NATSLeases struct {
	kv jetstream.KeyValue
}

// NewNATSLeases wraps an existing KV bucket as a lease store.
func NewNATSLeases(kv jetstream.KeyValue) *NATSLeases {
	return &NATSLeases{kv: kv}
}

// Create implements types.LeaseStore.
func (s *NATSLeases) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	revision, err := s.kv.Create(ctx, key, value)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, fmt.Errorf("%w: %s", types.ErrLeaseExists, key)
		}

		return 0, fmt.Errorf("failed to create lease %s: %w", key, err)
	}

	return revision, nil
}

// Get implements types.LeaseStore.
func (s *NATSLeases) Get(ctx context.Context, key string) ([]byte, uint64, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, 0, fmt.Errorf("%w: %s", types.ErrLeaseNotFound, key)
		}

		return nil, 0, fmt.Errorf("failed to get lease %s: %w", key, err)
	}

	return entry.Value(), entry.Revision(), nil
}

// Update implements types.LeaseStore.
func (s *NATSLeases) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	newRevision, err := s.kv.Update(ctx, key, value, revision)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, fmt.Errorf("%w: %s", types.ErrLeaseNotFound, key)
		}

		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
			return 0, fmt.Errorf("%w: %s", types.ErrLeaseConflict, key)
		}

		return 0, fmt.Errorf("failed to update lease %s: %w", key, err)
	}

	return newRevision, nil
}

// Delete implements types.LeaseStore.
func (s *NATSLeases) Delete(ctx context.Context, key string, revision uint64) error {
	var opts []jetstream.KVDeleteOpt
	if revision > 0 {
		opts = append(opts, jetstream.LastRevision(revision))
	}

	if err := s.kv.Delete(ctx, key, opts...); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}

		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
			// The delete tombstone itself bumps the revision, so a repeated
			// delete of an already-removed key also reports a sequence
			// mismatch. Only a still-present key is a genuine conflict.
			if _, getErr := s.kv.Get(ctx, key); errors.Is(getErr, jetstream.ErrKeyNotFound) {
				return nil
			}

			return fmt.Errorf("%w: %s", types.ErrLeaseConflict, key)
		}

		return fmt.Errorf("failed to delete lease %s: %w", key, err)
	}

	return nil
}
