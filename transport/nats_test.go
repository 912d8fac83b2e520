package transport_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	roomkittest "github.com/roomkit-io/roomkit/testing"
	"github.com/roomkit-io/roomkit/transport"
	"github.com/roomkit-io/roomkit/types"
)

func newTestNATS(t *testing.T) *transport.NATS {
	t.Helper()

	_, nc := roomkittest.StartEmbeddedNATS(t)

	tr, err := transport.NewNATS(t.Context(), nc, transport.NATSConfig{})
	require.NoError(t, err)

	return tr
}

func TestNATSPublishSubscribe(t *testing.T) {
	ctx := t.Context()
	tr := newTestNATS(t)

	require.NoError(t, tr.JoinRoom(ctx, "task/t1"))

	received := make(chan types.Event, 16)
	unsub, err := tr.Subscribe("task/t1", types.EventUserJoined, func(ev types.Event) {
		received <- ev
	})
	require.NoError(t, err)
	defer unsub()

	// Different event type on the same room must stay silent.
	silent := make(chan types.Event, 16)
	cursorUnsub, err := tr.Subscribe("task/t1", types.EventCursorMoved, func(ev types.Event) {
		silent <- ev
	})
	require.NoError(t, err)
	defer cursorUnsub()

	err = tr.Publish(ctx, "task/t1", types.UserJoined{UserID: "alice", DisplayName: "Alice"})
	require.NoError(t, err)

	select {
	case ev := <-received:
		joined, ok := ev.(*types.UserJoined)
		require.True(t, ok)
		require.Equal(t, "alice", joined.UserID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	require.Empty(t, silent)
}

func TestNATSLeaveRoomKeepsSubscriptions(t *testing.T) {
	ctx := t.Context()
	tr := newTestNATS(t)

	received := make(chan types.Event, 16)
	unsub, err := tr.Subscribe("task/t1", types.EventUserLeft, func(ev types.Event) {
		received <- ev
	})
	require.NoError(t, err)

	// Subscriptions belong to their creators; leaving the room tears nothing
	// down and must not disturb another client's delivery.
	require.NoError(t, tr.LeaveRoom(ctx, "task/t1"))

	require.NoError(t, tr.Publish(ctx, "task/t1", types.UserLeft{UserID: "alice"}))
	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	// Unsubscribe is what stops delivery, and it is idempotent.
	unsub()
	unsub()

	require.NoError(t, tr.Publish(ctx, "task/t1", types.UserLeft{UserID: "bob"}))
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, received)
}

func TestNATSPublishEditSequence(t *testing.T) {
	ctx := t.Context()
	tr := newTestNATS(t)

	rec := types.EditRecord{
		ID:         "rec-1",
		EntityType: "task",
		EntityID:   "t1",
		Operation:  types.OpUpdate,
		AuthorID:   "alice",
		Timestamp:  time.Now(),
	}

	first, err := tr.PublishEdit(ctx, "task/t1", rec)
	require.NoError(t, err)
	require.NotZero(t, first)

	second, err := tr.PublishEdit(ctx, "task/t1", rec)
	require.NoError(t, err)
	require.Greater(t, second, first)

	t.Run("invalid records are rejected", func(t *testing.T) {
		bad := rec
		bad.AuthorID = ""

		_, err := tr.PublishEdit(ctx, "task/t1", bad)
		require.Error(t, err)
	})
}

func TestNATSEditBroadcastRoundTrip(t *testing.T) {
	ctx := t.Context()
	tr := newTestNATS(t)

	received := make(chan types.Event, 16)
	unsub, err := tr.Subscribe("task/t1", types.EventEditBroadcast, func(ev types.Event) {
		received <- ev
	})
	require.NoError(t, err)
	defer unsub()

	rec := types.EditRecord{
		ID:         "rec-1",
		EntityType: "task",
		EntityID:   "t1",
		Operation:  types.OpCreate,
		AuthorID:   "alice",
		Sequence:   7,
		Timestamp:  time.Now().UTC(),
	}

	require.NoError(t, tr.Publish(ctx, "task/t1", types.EditBroadcast{Record: rec}))

	select {
	case ev := <-received:
		bc, ok := ev.(*types.EditBroadcast)
		require.True(t, ok)
		require.Equal(t, rec.ID, bc.Record.ID)
		require.Equal(t, rec.Sequence, bc.Record.Sequence)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestNATSStatus(t *testing.T) {
	tr := newTestNATS(t)

	require.Equal(t, types.StatusConnected, tr.Status())
}

func TestNATSLeases(t *testing.T) {
	ctx := t.Context()
	tr := newTestNATS(t)

	store := tr.Leases()
	require.NotNil(t, store)

	t.Run("create and get", func(t *testing.T) {
		rev, err := store.Create(ctx, "lock.task.t1", []byte("alice"))
		require.NoError(t, err)
		require.NotZero(t, rev)

		value, gotRev, err := store.Get(ctx, "lock.task.t1")
		require.NoError(t, err)
		require.Equal(t, []byte("alice"), value)
		require.Equal(t, rev, gotRev)

		_, err = store.Create(ctx, "lock.task.t1", []byte("bob"))
		require.ErrorIs(t, err, types.ErrLeaseExists)
	})

	t.Run("update requires matching revision", func(t *testing.T) {
		rev, err := store.Create(ctx, "lock.task.t2", []byte("alice"))
		require.NoError(t, err)

		newRev, err := store.Update(ctx, "lock.task.t2", []byte("alice-renewed"), rev)
		require.NoError(t, err)
		require.Greater(t, newRev, rev)

		_, err = store.Update(ctx, "lock.task.t2", []byte("bob"), rev)
		require.ErrorIs(t, err, types.ErrLeaseConflict)
	})

	t.Run("missing keys", func(t *testing.T) {
		_, _, err := store.Get(ctx, "lock.task.missing")
		require.ErrorIs(t, err, types.ErrLeaseNotFound)

		_, err = store.Update(ctx, "lock.task.missing", []byte("x"), 1)
		require.ErrorIs(t, err, types.ErrLeaseNotFound)
	})

	t.Run("delete requires matching revision", func(t *testing.T) {
		rev, err := store.Create(ctx, "lock.task.t3", []byte("alice"))
		require.NoError(t, err)

		// A stale revision must not destroy the current entry.
		err = store.Delete(ctx, "lock.task.t3", rev+100)
		require.ErrorIs(t, err, types.ErrLeaseConflict)

		_, _, err = store.Get(ctx, "lock.task.t3")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "lock.task.t3", rev))

		// Repeating the delete is a no-op, not a conflict.
		require.NoError(t, store.Delete(ctx, "lock.task.t3", rev))

		_, err = store.Create(ctx, "lock.task.t3", []byte("bob"))
		require.NoError(t, err)
	})

	t.Run("zero revision deletes unconditionally", func(t *testing.T) {
		_, err := store.Create(ctx, "lock.task.t4", []byte("alice"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "lock.task.t4", 0))

		_, _, err = store.Get(ctx, "lock.task.t4")
		require.ErrorIs(t, err, types.ErrLeaseNotFound)
	})
}

func TestNewNATSLeasesWrapsBucket(t *testing.T) {
	_, nc := roomkittest.StartEmbeddedNATS(t)

	kv := roomkittest.CreateLeaseBucket(t, nc, "wrapped-locks")
	store := transport.NewNATSLeases(kv)

	rev, err := store.Create(t.Context(), "lock.doc.d1", []byte("carol"))
	require.NoError(t, err)
	require.NotZero(t, rev)
}
