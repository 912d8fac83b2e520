package presence

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeartbeatPublishesImmediatelyAndPeriodically(t *testing.T) {
	var beats atomic.Int32
	h := NewHeartbeat(func(_ context.Context) error {
		beats.Add(1)
		return nil
	}, 20*time.Millisecond)

	require.NoError(t, h.Start(context.Background()))
	defer func() { _ = h.Stop() }()

	// First beat lands before any tick.
	require.Equal(t, int32(1), beats.Load())

	require.Eventually(t, func() bool {
		return beats.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHeartbeatInitialPublishFailure(t *testing.T) {
	h := NewHeartbeat(func(_ context.Context) error {
		return errors.New("transport down")
	}, 20*time.Millisecond)

	require.Error(t, h.Start(context.Background()))
	require.False(t, h.IsStarted())
}

func TestHeartbeatSurvivesTransientFailures(t *testing.T) {
	var beats atomic.Int32
	h := NewHeartbeat(func(_ context.Context) error {
		n := beats.Add(1)
		if n == 2 {
			return errors.New("dropped beat")
		}
		return nil
	}, 20*time.Millisecond)

	require.NoError(t, h.Start(context.Background()))
	defer func() { _ = h.Stop() }()

	// The failed second beat does not stop the loop.
	require.Eventually(t, func() bool {
		return beats.Load() >= 4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHeartbeatLifecycle(t *testing.T) {
	h := NewHeartbeat(func(_ context.Context) error { return nil }, 20*time.Millisecond)

	require.ErrorIs(t, h.Stop(), ErrNotStarted)

	require.NoError(t, h.Start(context.Background()))
	require.True(t, h.IsStarted())
	require.ErrorIs(t, h.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, h.Stop())
	require.False(t, h.IsStarted())
	require.ErrorIs(t, h.Stop(), ErrNotStarted)
}

func TestHeartbeatRestarts(t *testing.T) {
	var beats atomic.Int32
	h := NewHeartbeat(func(_ context.Context) error {
		beats.Add(1)
		return nil
	}, 20*time.Millisecond)

	// A stopped heartbeat can be started again, as across degraded/resync
	// cycles of a long-lived session.
	for range 2 {
		require.NoError(t, h.Start(context.Background()))
		require.True(t, h.IsStarted())
		require.NoError(t, h.Stop())
		require.False(t, h.IsStarted())
	}

	require.NoError(t, h.Start(context.Background()))
	before := beats.Load()

	// The restarted loop still ticks.
	require.Eventually(t, func() bool {
		return beats.Load() > before
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.Stop())
}
