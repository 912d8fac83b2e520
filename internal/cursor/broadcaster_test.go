package cursor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomkit-io/roomkit/types"
)

// sendRecorder captures published positions.
type sendRecorder struct {
	mu   sync.Mutex
	sent []types.CursorPosition
}

func (r *sendRecorder) send(_ context.Context, pos types.CursorPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, pos)

	return nil
}

func (r *sendRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sent)
}

func (r *sendRecorder) last() types.CursorPosition {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sent[len(r.sent)-1]
}

func pos(x float64, ts time.Time) types.CursorPosition {
	return types.CursorPosition{X: x, Y: 0, Timestamp: ts}
}

func TestBroadcasterThrottlesOutbound(t *testing.T) {
	rec := &sendRecorder{}
	b := NewBroadcaster(rec.send, 50*time.Millisecond, 16, nil, nil)
	defer b.Close()

	now := time.Now()

	// A burst well inside one throttle window.
	for i := range 10 {
		b.Publish(pos(float64(i), now.Add(time.Duration(i)*time.Millisecond)))
	}

	// First frame goes out immediately; the rest collapse into one
	// trailing-edge flush carrying the newest position.
	require.Eventually(t, func() bool {
		return rec.count() == 2
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, float64(9), rec.last().X)

	// No further sends after the flush.
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 2, rec.count())
}

func TestBroadcasterSpacedPublishesPassThrough(t *testing.T) {
	rec := &sendRecorder{}
	b := NewBroadcaster(rec.send, 20*time.Millisecond, 16, nil, nil)
	defer b.Close()

	for i := range 3 {
		b.Publish(pos(float64(i), time.Now()))
		time.Sleep(40 * time.Millisecond)
	}

	require.Equal(t, 3, rec.count())
}

func TestBroadcasterReceiveLastWriteWins(t *testing.T) {
	b := NewBroadcaster(func(context.Context, types.CursorPosition) error { return nil },
		time.Millisecond, 16, nil, nil)
	defer b.Close()

	ch, unsub := b.Stream()
	defer unsub()

	now := time.Now()

	b.Receive("bob", pos(1, now))
	b.Receive("bob", pos(2, now.Add(time.Second)))
	// Out-of-order frame with an older timestamp must be dropped.
	b.Receive("bob", pos(99, now.Add(500*time.Millisecond)))

	var got []types.CursorUpdate
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case u := <-ch:
			got = append(got, u)
		case <-timeout:
			t.Fatal("timed out waiting for cursor updates")
		}
	}

	require.Equal(t, float64(1), got[0].Position.X)
	require.Equal(t, float64(2), got[1].Position.X)

	select {
	case u := <-ch:
		t.Fatalf("unexpected extra update: %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcasterStreamPrimedWithLatest(t *testing.T) {
	b := NewBroadcaster(func(context.Context, types.CursorPosition) error { return nil },
		time.Millisecond, 16, nil, nil)
	defer b.Close()

	now := time.Now()
	b.Receive("bob", pos(7, now))
	b.Receive("carol", pos(8, now))

	// A subscriber arriving late still sees everyone's latest position.
	ch, unsub := b.Stream()
	defer unsub()

	seen := make(map[string]float64)
	timeout := time.After(time.Second)
	for len(seen) < 2 {
		select {
		case u := <-ch:
			seen[u.UserID] = u.Position.X
		case <-timeout:
			t.Fatal("timed out waiting for primed updates")
		}
	}

	require.Equal(t, map[string]float64{"bob": 7, "carol": 8}, seen)
}

func TestBroadcasterSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(func(context.Context, types.CursorPosition) error { return nil },
		time.Millisecond, 1, nil, nil)
	defer b.Close()

	slow, unsubSlow := b.Stream()
	defer unsubSlow()
	_ = slow // never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		now := time.Now()
		for i := range 100 {
			b.Receive("bob", pos(float64(i), now.Add(time.Duration(i)*time.Millisecond)))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery blocked on a slow subscriber")
	}
}

func TestBroadcasterCloseStopsDelivery(t *testing.T) {
	rec := &sendRecorder{}
	b := NewBroadcaster(rec.send, 50*time.Millisecond, 16, nil, nil)

	ch, unsub := b.Stream()
	defer unsub()

	b.Publish(pos(1, time.Now()))
	// Held trailing-edge frame must not fire after close.
	b.Publish(pos(2, time.Now()))
	b.Close()

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, 1, rec.count())

	_, open := <-ch
	require.False(t, open)

	// Publishing after close is a no-op.
	b.Publish(pos(3, time.Now()))
	b.Receive("bob", pos(4, time.Now()))
	require.Equal(t, 1, rec.count())
}
