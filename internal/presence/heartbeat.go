package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common errors for heartbeat operations.
var (
	ErrNotStarted     = errors.New("heartbeat not started")
	ErrAlreadyStarted = errors.New("heartbeat already started")
)

// PublishFunc sends the local user's current presence record to the room.
type PublishFunc func(ctx context.Context) error

// Heartbeat periodically publishes the local user's presence record.
//
// Peers use these heartbeats to refresh the LastSeen of the local user's
// record in their directories; a client that stops heartbeating is evicted by
// its peers' staleness sweeps. Publishing continues through transient publish
// failures so a single dropped beat never silences the client.
type Heartbeat struct {
	publish  PublishFunc
	interval time.Duration

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	ticker  *time.Ticker
}

// NewHeartbeat creates a heartbeat publisher.
//
// Parameters:
//   - publish: Function that sends the current presence record
//   - interval: Heartbeat interval (typically 15-30s)
//
// Returns:
//   - *Heartbeat: New heartbeat instance
func NewHeartbeat(publish PublishFunc, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		publish:  publish,
		interval: interval,
	}
}

// Start begins publishing heartbeats in the background.
//
// Publishes the first heartbeat immediately, then at regular intervals, until
// Stop() is called.
//
// Parameters:
//   - ctx: Context for the initial publish
//
// Returns:
//   - error: ErrAlreadyStarted if running, or the initial publish error
func (h *Heartbeat) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrAlreadyStarted
	}

	h.started = true
	// Fresh channels per run so the heartbeat can be restarted after Stop.
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})
	h.ticker = time.NewTicker(h.interval)

	// First beat immediately so peers see the local user without waiting a
	// full interval.
	if err := h.publish(ctx); err != nil {
		h.started = false
		h.ticker.Stop()

		return fmt.Errorf("failed to publish initial heartbeat: %w", err)
	}

	go h.publishLoop(h.ticker, h.stopCh, h.doneCh)

	return nil
}

// Stop stops the heartbeat publisher.
//
// Blocks until the background goroutine exits.
//
// Returns:
//   - error: ErrNotStarted if not running
func (h *Heartbeat) Stop() error {
	h.mu.Lock()

	if !h.started {
		h.mu.Unlock()
		return ErrNotStarted
	}

	h.ticker.Stop()
	close(h.stopCh)
	h.started = false
	doneCh := h.doneCh

	h.mu.Unlock()

	<-doneCh

	return nil
}

// IsStarted returns whether the heartbeat is currently running.
func (h *Heartbeat) IsStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.started
}

// publishLoop publishes heartbeats until stopped.
func (h *Heartbeat) publishLoop(ticker *time.Ticker, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			// Failures are tolerated; the next beat retries.
			_ = h.publish(ctx)
			cancel()
		}
	}
}
