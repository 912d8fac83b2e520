package reconnect

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roomkit-io/roomkit/transport"
	"github.com/roomkit-io/roomkit/types"
)

func TestSupervisorDisconnectFiresOnce(t *testing.T) {
	hub := transport.NewMemory()
	defer hub.Close()

	var disconnects atomic.Int32
	sup := NewSupervisor(hub, Callbacks{
		OnDisconnect: func() { disconnects.Add(1) },
	}, 3, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start())
	defer func() { _ = sup.Stop() }()

	// Multiple down transitions within one outage collapse to one callback.
	hub.SetStatus(types.StatusDisconnected)
	hub.SetStatus(types.StatusReconnecting)

	require.Equal(t, int32(1), disconnects.Load())
}

func TestSupervisorResyncOnReconnect(t *testing.T) {
	hub := transport.NewMemory()
	defer hub.Close()

	resyncCh := make(chan struct{}, 1)
	doneCh := make(chan struct{}, 1)

	sup := NewSupervisor(hub, Callbacks{
		Resync: func(context.Context) error {
			resyncCh <- struct{}{}
			return nil
		},
		OnResyncDone: func() { doneCh <- struct{}{} },
	}, 3, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start())
	defer func() { _ = sup.Stop() }()

	hub.SetStatus(types.StatusDisconnected)
	hub.SetStatus(types.StatusConnected)

	select {
	case <-resyncCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resync")
	}

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resync completion")
	}
}

func TestSupervisorNoResyncWithoutOutage(t *testing.T) {
	hub := transport.NewMemory()
	defer hub.Close()

	var resyncs atomic.Int32
	sup := NewSupervisor(hub, Callbacks{
		Resync: func(context.Context) error {
			resyncs.Add(1)
			return nil
		},
	}, 3, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start())
	defer func() { _ = sup.Stop() }()

	// A connected report with no preceding outage must not trigger a resync.
	hub.SetStatus(types.StatusReconnecting)
	hub.SetStatus(types.StatusConnected)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), resyncs.Load())

	hub.SetStatus(types.StatusConnected)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), resyncs.Load())
}

func TestSupervisorResyncRetriesThenSucceeds(t *testing.T) {
	hub := transport.NewMemory()
	defer hub.Close()

	var attempts atomic.Int32
	doneCh := make(chan struct{}, 1)

	sup := NewSupervisor(hub, Callbacks{
		Resync: func(context.Context) error {
			if attempts.Add(1) < 3 {
				return errors.New("room state unavailable")
			}
			return nil
		},
		OnResyncDone: func() { doneCh <- struct{}{} },
	}, 5, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start())
	defer func() { _ = sup.Stop() }()

	hub.SetStatus(types.StatusDisconnected)
	hub.SetStatus(types.StatusConnected)

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resync completion")
	}

	require.Equal(t, int32(3), attempts.Load())
}

func TestSupervisorResyncExhaustionNotifies(t *testing.T) {
	hub := transport.NewMemory()
	defer hub.Close()

	failedCh := make(chan error, 1)

	sup := NewSupervisor(hub, Callbacks{
		Resync: func(context.Context) error {
			return errors.New("room state unavailable")
		},
		OnResyncFailed: func(err error) { failedCh <- err },
	}, 2, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start())
	defer func() { _ = sup.Stop() }()

	hub.SetStatus(types.StatusDisconnected)
	hub.SetStatus(types.StatusConnected)

	select {
	case err := <-failedCh:
		require.ErrorContains(t, err, "room state unavailable")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for resync failure")
	}
}

func TestSupervisorSecondOutageCancelsResync(t *testing.T) {
	hub := transport.NewMemory()
	defer hub.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var completions atomic.Int32

	sup := NewSupervisor(hub, Callbacks{
		Resync: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		OnResyncDone: func() { completions.Add(1) },
	}, 0, time.Millisecond, nil, nil)

	require.NoError(t, sup.Start())
	defer func() { _ = sup.Stop() }()

	hub.SetStatus(types.StatusDisconnected)
	hub.SetStatus(types.StatusConnected)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resync to start")
	}

	// A new outage while resyncing invalidates the in-flight attempt.
	hub.SetStatus(types.StatusDisconnected)
	close(release)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), completions.Load())
}

func TestSupervisorStopIdempotentLifecycle(t *testing.T) {
	hub := transport.NewMemory()
	defer hub.Close()

	sup := NewSupervisor(hub, Callbacks{}, 3, time.Millisecond, nil, nil)

	require.ErrorIs(t, sup.Stop(), ErrNotStarted)
	require.NoError(t, sup.Start())
	require.ErrorIs(t, sup.Start(), ErrAlreadyStarted)
	require.NoError(t, sup.Stop())
	require.ErrorIs(t, sup.Stop(), ErrNotStarted)
}
