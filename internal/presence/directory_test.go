package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomkit-io/roomkit/types"
)

func record(userID string, lastSeen time.Time) types.CollaboratorPresence {
	return types.CollaboratorPresence{
		UserID:      userID,
		DisplayName: userID,
		Status:      types.StatusOnline,
		LastSeen:    lastSeen,
	}
}

func activeIDs(d *Directory) []string {
	ids := make([]string, 0)
	for _, p := range d.ListActive() {
		ids = append(ids, p.UserID)
	}

	return ids
}

func TestDirectoryUpsertLastSeenWins(t *testing.T) {
	d := NewDirectory(100*time.Millisecond, 2.5, nil, nil)
	now := time.Now()

	newer := record("alice", now)
	newer.IsTyping = true
	d.Upsert(newer)

	// An older record for the same user must not overwrite any field.
	older := record("alice", now.Add(-50*time.Millisecond))
	older.IsTyping = false
	d.Upsert(older)

	got, ok := d.Get("alice")
	require.True(t, ok)
	require.True(t, got.IsTyping)
	require.Equal(t, now, got.LastSeen)
}

func TestDirectoryWholeRecordReplacement(t *testing.T) {
	d := NewDirectory(100*time.Millisecond, 2.5, nil, nil)
	now := time.Now()

	withCursor := record("alice", now)
	withCursor.Cursor = &types.CursorPosition{X: 1, Y: 2, Timestamp: now}
	d.Upsert(withCursor)

	// A newer record without a cursor replaces the whole record; fields from
	// the two updates are never mixed.
	withoutCursor := record("alice", now.Add(10*time.Millisecond))
	d.Upsert(withoutCursor)

	got, ok := d.Get("alice")
	require.True(t, ok)
	require.Nil(t, got.Cursor)
}

func TestDirectoryListActive(t *testing.T) {
	d := NewDirectory(100*time.Millisecond, 2.5, nil, nil)
	now := time.Now()

	d.Upsert(record("alice", now))

	// Past the 250ms threshold.
	d.Upsert(record("bob", now.Add(-300*time.Millisecond)))

	offline := record("carol", now)
	offline.Status = types.StatusOffline
	d.Upsert(offline)

	require.Equal(t, []string{"alice"}, activeIDs(d))
}

func TestDirectoryIsStale(t *testing.T) {
	d := NewDirectory(100*time.Millisecond, 2.5, nil, nil)
	now := time.Now()

	d.Upsert(record("alice", now))
	require.False(t, d.IsStale("alice"))

	d.Upsert(record("bob", now.Add(-300*time.Millisecond)))
	require.True(t, d.IsStale("bob"))

	// Unknown users are stale.
	require.True(t, d.IsStale("nobody"))

	offline := record("carol", now)
	offline.Status = types.StatusOffline
	d.Upsert(offline)
	require.True(t, d.IsStale("carol"))
}

func TestDirectoryRemoveAndClear(t *testing.T) {
	d := NewDirectory(100*time.Millisecond, 2.5, nil, nil)
	now := time.Now()

	d.Upsert(record("alice", now))
	d.Upsert(record("bob", now))

	d.Remove("alice")
	require.Equal(t, []string{"bob"}, activeIDs(d))

	d.Clear()
	require.Empty(t, d.ListActive())
}

func TestDirectoryOnChange(t *testing.T) {
	d := NewDirectory(100*time.Millisecond, 2.5, nil, nil)

	var mu sync.Mutex
	var calls int
	unsub := d.OnChange(func(_ []types.CollaboratorPresence) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	d.Upsert(record("alice", time.Now()))
	d.Remove("alice")

	// Removing an absent user must not notify.
	d.Remove("alice")

	mu.Lock()
	require.Equal(t, 2, calls)
	mu.Unlock()

	unsub()
	d.Upsert(record("bob", time.Now()))

	mu.Lock()
	require.Equal(t, 2, calls)
	mu.Unlock()
}

func TestDirectorySweeperEvictsStaleRecords(t *testing.T) {
	d := NewDirectory(20*time.Millisecond, 2.5, nil, nil)

	d.Upsert(record("alice", time.Now()))
	require.NoError(t, d.StartSweeper())
	defer func() { _ = d.StopSweeper() }()

	require.ErrorIs(t, d.StartSweeper(), ErrSweeperAlreadyStarted)

	// Without further heartbeats alice lapses past the 50ms threshold and the
	// sweeper evicts her record entirely.
	require.Eventually(t, func() bool {
		_, ok := d.Get("alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDirectorySweeperLifecycle(t *testing.T) {
	d := NewDirectory(20*time.Millisecond, 2.5, nil, nil)

	require.ErrorIs(t, d.StopSweeper(), ErrSweeperNotStarted)
	require.NoError(t, d.StartSweeper())
	require.NoError(t, d.StopSweeper())
	require.ErrorIs(t, d.StopSweeper(), ErrSweeperNotStarted)

	// A stopped sweeper can be started again, as across degraded/resync
	// cycles of a long-lived session.
	require.NoError(t, d.StartSweeper())

	// The restarted sweep still evicts.
	d.Upsert(record("alice", time.Now().Add(-time.Second)))
	require.Eventually(t, func() bool {
		_, ok := d.Get("alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, d.StopSweeper())
}
