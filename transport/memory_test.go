package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomkit-io/roomkit/types"
)

// collectEvents subscribes and funnels decoded events into a channel.
func collectEvents(t *testing.T, hub *Memory, roomID string, eventType types.EventType) (<-chan types.Event, types.Unsubscribe) {
	t.Helper()

	ch := make(chan types.Event, 16)
	unsub, err := hub.Subscribe(roomID, eventType, func(ev types.Event) {
		ch <- ev
	})
	require.NoError(t, err)

	return ch, unsub
}

func waitEvent(t *testing.T, ch <-chan types.Event) types.Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestMemoryPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	hub := NewMemory()
	defer hub.Close()

	require.NoError(t, hub.JoinRoom(ctx, "task/t1"))

	joined, unsub := collectEvents(t, hub, "task/t1", types.EventUserJoined)
	defer unsub()

	// Same room, different event type: must not be delivered here.
	cursors, cursorUnsub := collectEvents(t, hub, "task/t1", types.EventCursorMoved)
	defer cursorUnsub()

	// Different room entirely.
	other, otherUnsub := collectEvents(t, hub, "task/t2", types.EventUserJoined)
	defer otherUnsub()

	err := hub.Publish(ctx, "task/t1", types.UserJoined{UserID: "alice", DisplayName: "Alice"})
	require.NoError(t, err)

	ev := waitEvent(t, joined)
	got, ok := ev.(*types.UserJoined)
	require.True(t, ok)
	require.Equal(t, "alice", got.UserID)
	require.Equal(t, "Alice", got.DisplayName)

	require.Empty(t, cursors)
	require.Empty(t, other)
}

func TestMemoryUnsubscribe(t *testing.T) {
	ctx := context.Background()
	hub := NewMemory()
	defer hub.Close()

	ch, unsub := collectEvents(t, hub, "task/t1", types.EventUserLeft)

	require.NoError(t, hub.Publish(ctx, "task/t1", types.UserLeft{UserID: "alice"}))
	waitEvent(t, ch)

	unsub()
	// Unsubscribe is idempotent.
	unsub()

	require.NoError(t, hub.Publish(ctx, "task/t1", types.UserLeft{UserID: "bob"}))
	require.Empty(t, ch)
}

func TestMemoryLeaveRoomKeepsPeerSubscriptions(t *testing.T) {
	ctx := context.Background()
	hub := NewMemory()
	defer hub.Close()

	// Two clients sharing one hub, both in the same room.
	require.NoError(t, hub.JoinRoom(ctx, "task/t1"))
	aliceCh, aliceUnsub := collectEvents(t, hub, "task/t1", types.EventUserJoined)
	bobCh, bobUnsub := collectEvents(t, hub, "task/t1", types.EventUserJoined)

	// Alice leaving must not silence bob's subscription.
	require.NoError(t, hub.LeaveRoom(ctx, "task/t1"))

	require.NoError(t, hub.Publish(ctx, "task/t1", types.UserJoined{UserID: "carol", DisplayName: "Carol"}))
	waitEvent(t, aliceCh)
	waitEvent(t, bobCh)

	// Each client tears down its own subscription after the leave without
	// panicking, even when called twice.
	aliceUnsub()
	aliceUnsub()
	bobUnsub()
}

func TestMemoryUnsubscribeAfterClose(t *testing.T) {
	hub := NewMemory()

	_, unsub := collectEvents(t, hub, "task/t1", types.EventUserJoined)

	// Close stops the delivery goroutine; a deferred unsubscribe running
	// afterwards must not panic on the already-stopped subscription.
	hub.Close()
	unsub()
}

func TestMemoryPublishEditSequences(t *testing.T) {
	ctx := context.Background()
	hub := NewMemory()
	defer hub.Close()

	rec := types.EditRecord{
		ID:         "rec-1",
		EntityType: "task",
		EntityID:   "t1",
		Operation:  types.OpUpdate,
		AuthorID:   "alice",
		Timestamp:  time.Now(),
	}

	t.Run("sequences are monotonic per room", func(t *testing.T) {
		first, err := hub.PublishEdit(ctx, "task/t1", rec)
		require.NoError(t, err)

		second, err := hub.PublishEdit(ctx, "task/t1", rec)
		require.NoError(t, err)
		require.Greater(t, second, first)
	})

	t.Run("rooms count independently", func(t *testing.T) {
		seq, err := hub.PublishEdit(ctx, "task/t2", rec)
		require.NoError(t, err)
		require.Equal(t, uint64(1), seq)
	})

	t.Run("invalid records are rejected", func(t *testing.T) {
		bad := rec
		bad.Operation = "rename"

		_, err := hub.PublishEdit(ctx, "task/t1", bad)
		require.Error(t, err)
	})
}

func TestMemoryStatusTransitions(t *testing.T) {
	ctx := context.Background()
	hub := NewMemory()
	defer hub.Close()

	require.Equal(t, types.StatusConnected, hub.Status())

	var notified []types.ConnStatus
	unsub := hub.OnStatusChange(func(status types.ConnStatus) {
		notified = append(notified, status)
	})
	defer unsub()

	hub.SetStatus(types.StatusDisconnected)
	require.Equal(t, types.StatusDisconnected, hub.Status())

	// Publishing while down fails.
	err := hub.Publish(ctx, "task/t1", types.UserLeft{UserID: "alice"})
	require.ErrorIs(t, err, types.ErrNotConnected)

	_, err = hub.PublishEdit(ctx, "task/t1", types.EditRecord{
		ID: "rec-1", EntityType: "task", EntityID: "t1",
		Operation: types.OpUpdate, AuthorID: "alice",
	})
	require.ErrorIs(t, err, types.ErrNotConnected)

	// Setting the same status again does not re-notify.
	hub.SetStatus(types.StatusDisconnected)

	hub.SetStatus(types.StatusConnected)
	require.Equal(t, []types.ConnStatus{types.StatusDisconnected, types.StatusConnected}, notified)

	require.NoError(t, hub.Publish(ctx, "task/t1", types.UserLeft{UserID: "alice"}))
}

func TestMemoryClose(t *testing.T) {
	hub := NewMemory()

	ch, unsub := collectEvents(t, hub, "task/t1", types.EventUserJoined)
	defer unsub()

	hub.Close()
	// Close is idempotent.
	hub.Close()

	require.Empty(t, ch)

	_, err := hub.Subscribe("task/t1", types.EventUserJoined, func(types.Event) {})
	require.ErrorIs(t, err, types.ErrNotConnected)

	err = hub.JoinRoom(context.Background(), "task/t1")
	require.ErrorIs(t, err, types.ErrNotConnected)
}

func TestMemoryLeases(t *testing.T) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		store := NewMemoryLeases()

		rev, err := store.Create(ctx, "lock.task.t1", []byte("alice"))
		require.NoError(t, err)
		require.NotZero(t, rev)

		value, gotRev, err := store.Get(ctx, "lock.task.t1")
		require.NoError(t, err)
		require.Equal(t, []byte("alice"), value)
		require.Equal(t, rev, gotRev)
	})

	t.Run("create fails on existing key", func(t *testing.T) {
		store := NewMemoryLeases()

		_, err := store.Create(ctx, "lock.task.t1", []byte("alice"))
		require.NoError(t, err)

		_, err = store.Create(ctx, "lock.task.t1", []byte("bob"))
		require.ErrorIs(t, err, types.ErrLeaseExists)
	})

	t.Run("get missing key", func(t *testing.T) {
		store := NewMemoryLeases()

		_, _, err := store.Get(ctx, "lock.task.missing")
		require.ErrorIs(t, err, types.ErrLeaseNotFound)
	})

	t.Run("update requires matching revision", func(t *testing.T) {
		store := NewMemoryLeases()

		rev, err := store.Create(ctx, "lock.task.t1", []byte("alice"))
		require.NoError(t, err)

		newRev, err := store.Update(ctx, "lock.task.t1", []byte("alice-renewed"), rev)
		require.NoError(t, err)
		require.Greater(t, newRev, rev)

		// The old revision is now stale.
		_, err = store.Update(ctx, "lock.task.t1", []byte("bob"), rev)
		require.ErrorIs(t, err, types.ErrLeaseConflict)

		value, _, err := store.Get(ctx, "lock.task.t1")
		require.NoError(t, err)
		require.Equal(t, []byte("alice-renewed"), value)
	})

	t.Run("update missing key", func(t *testing.T) {
		store := NewMemoryLeases()

		_, err := store.Update(ctx, "lock.task.missing", []byte("x"), 1)
		require.ErrorIs(t, err, types.ErrLeaseNotFound)
	})

	t.Run("delete requires matching revision", func(t *testing.T) {
		store := NewMemoryLeases()

		rev, err := store.Create(ctx, "lock.task.t1", []byte("alice"))
		require.NoError(t, err)

		// A stale revision must not destroy the current entry.
		err = store.Delete(ctx, "lock.task.t1", rev+1)
		require.ErrorIs(t, err, types.ErrLeaseConflict)

		_, _, err = store.Get(ctx, "lock.task.t1")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "lock.task.t1", rev))

		// Deleting an absent key is a no-op.
		require.NoError(t, store.Delete(ctx, "lock.task.t1", rev))

		_, err = store.Create(ctx, "lock.task.t1", []byte("bob"))
		require.NoError(t, err)
	})

	t.Run("zero revision deletes unconditionally", func(t *testing.T) {
		store := NewMemoryLeases()

		_, err := store.Create(ctx, "lock.task.t1", []byte("alice"))
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "lock.task.t1", 0))

		_, _, err = store.Get(ctx, "lock.task.t1")
		require.ErrorIs(t, err, types.ErrLeaseNotFound)
	})
}
