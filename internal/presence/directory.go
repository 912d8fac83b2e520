package presence

import (
	"errors"
	"sync"
	"time"

	"github.com/roomkit-io/roomkit/logging"
	"github.com/roomkit-io/roomkit/metrics"
	"github.com/roomkit-io/roomkit/types"
)

// Common errors for directory operations.
var (
	ErrSweeperNotStarted     = errors.New("sweeper not started")
	ErrSweeperAlreadyStarted = errors.New("sweeper already started")
)

// ChangeListener receives the active-collaborator snapshot after every change
// to the directory.
type ChangeListener func(active []types.CollaboratorPresence)

// Directory is the per-room table of collaborator presence records.
//
// Concurrent writers are tolerated by construction: updates to the same user
// are resolved by replacing the whole record with the one carrying the greater
// LastSeen timestamp. Per-field merging is never performed, so a record can
// never mix fields from two different updates.
type Directory struct {
	heartbeatInterval time.Duration
	multiplier        float64
	logger            types.Logger
	metrics           types.MetricsCollector

	mu        sync.RWMutex
	records   map[string]types.CollaboratorPresence
	listeners map[int]ChangeListener
	nextID    int

	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	ticker  *time.Ticker
}

// NewDirectory creates a presence directory.
//
// The staleness threshold is heartbeatInterval * multiplier; a multiplier of
// 2-3 absorbs normal network jitter while still detecting true disconnects
// promptly.
//
// Parameters:
//   - heartbeatInterval: Expected interval between presence refreshes
//   - multiplier: Staleness threshold as a multiple of the heartbeat interval
//   - logger: Logger for sweep output (nil for nop)
//   - collector: Metrics collector (nil for nop)
//
// Returns:
//   - *Directory: New directory instance
func NewDirectory(heartbeatInterval time.Duration, multiplier float64, logger types.Logger, collector types.MetricsCollector) *Directory {
	if logger == nil {
		logger = logging.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}

	return &Directory{
		heartbeatInterval: heartbeatInterval,
		multiplier:        multiplier,
		logger:            logger,
		metrics:           collector,
		records:           make(map[string]types.CollaboratorPresence),
		listeners:         make(map[int]ChangeListener),
	}
}

// Threshold returns the staleness threshold.
func (d *Directory) Threshold() time.Duration {
	return time.Duration(float64(d.heartbeatInterval) * d.multiplier)
}

// Upsert merges a presence record into the directory.
//
// The record with the greater LastSeen wins and replaces the stored record
// atomically. Stale writes (older LastSeen than the stored record) are
// dropped.
func (d *Directory) Upsert(p types.CollaboratorPresence) {
	d.mu.Lock()
	existing, ok := d.records[p.UserID]
	if ok && existing.LastSeen.After(p.LastSeen) {
		d.mu.Unlock()
		return
	}
	d.records[p.UserID] = p
	d.mu.Unlock()

	d.notify()
}

// Remove deletes a user's record, typically on an explicit leave event.
func (d *Directory) Remove(userID string) {
	d.mu.Lock()
	_, ok := d.records[userID]
	delete(d.records, userID)
	d.mu.Unlock()

	if ok {
		d.notify()
	}
}

// Get returns the stored record for a user.
func (d *Directory) Get(userID string) (types.CollaboratorPresence, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.records[userID]

	return p, ok
}

// ListActive returns the collaborators currently considered active.
//
// Records marked offline, and records whose LastSeen exceeds the staleness
// threshold, are excluded even if no leave event was received. Staleness is
// evaluated at read time, so correctness does not depend on sweep timing.
func (d *Directory) ListActive() []types.CollaboratorPresence {
	cutoff := time.Now().Add(-d.Threshold())

	d.mu.RLock()
	defer d.mu.RUnlock()

	active := make([]types.CollaboratorPresence, 0, len(d.records))
	for _, p := range d.records {
		if p.Status == types.StatusOffline {
			continue
		}
		if p.LastSeen.Before(cutoff) {
			continue
		}
		active = append(active, p)
	}

	return active
}

// IsStale reports whether a user's heartbeat has lapsed past the threshold.
//
// Unknown users are stale: a lock holder with no presence record cannot be
// shown to be alive.
func (d *Directory) IsStale(userID string) bool {
	d.mu.RLock()
	p, ok := d.records[userID]
	d.mu.RUnlock()

	if !ok {
		return true
	}
	if p.Status == types.StatusOffline {
		return true
	}

	return p.LastSeen.Before(time.Now().Add(-d.Threshold()))
}

// Clear discards all records, used when a reconnection resync replaces the
// directory rather than merging into it.
func (d *Directory) Clear() {
	d.mu.Lock()
	d.records = make(map[string]types.CollaboratorPresence)
	d.mu.Unlock()

	d.notify()
}

// OnChange registers a listener invoked with the active snapshot after every
// directory change.
//
// Returns:
//   - types.Unsubscribe: Removes the listener; safe to call more than once
func (d *Directory) OnChange(fn ChangeListener) types.Unsubscribe {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// StartSweeper begins the background staleness sweep.
//
// The sweep runs every heartbeat interval and evicts records whose LastSeen
// exceeds the threshold.
//
// Returns:
//   - error: ErrSweeperAlreadyStarted if already running
func (d *Directory) StartSweeper() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return ErrSweeperAlreadyStarted
	}

	d.started = true
	// Fresh channels per run so the sweeper can be restarted after a stop.
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.ticker = time.NewTicker(d.heartbeatInterval)

	go d.sweepLoop(d.ticker, d.stopCh, d.doneCh)

	return nil
}

// StopSweeper stops the background sweep.
//
// Returns:
//   - error: ErrSweeperNotStarted if not running
func (d *Directory) StopSweeper() error {
	d.mu.Lock()

	if !d.started {
		d.mu.Unlock()
		return ErrSweeperNotStarted
	}

	d.ticker.Stop()
	close(d.stopCh)
	d.started = false
	doneCh := d.doneCh

	d.mu.Unlock()

	<-doneCh

	return nil
}

// sweepLoop evicts stale records until stopped.
func (d *Directory) sweepLoop(ticker *time.Ticker, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

// sweep removes records whose heartbeat lapsed past the threshold.
func (d *Directory) sweep() {
	cutoff := time.Now().Add(-d.Threshold())

	d.mu.Lock()
	var evicted []string
	for id, p := range d.records {
		if p.LastSeen.Before(cutoff) {
			delete(d.records, id)
			evicted = append(evicted, id)
		}
	}
	d.mu.Unlock()

	if len(evicted) == 0 {
		return
	}

	for _, id := range evicted {
		d.logger.Info("evicted stale presence record", "user_id", id, "threshold", d.Threshold())
		d.metrics.RecordPresenceEviction()
	}

	d.notify()
}

// notify delivers the active snapshot to all listeners outside the lock.
func (d *Directory) notify() {
	active := d.ListActive()

	d.mu.RLock()
	listeners := make([]ChangeListener, 0, len(d.listeners))
	for _, fn := range d.listeners {
		listeners = append(listeners, fn)
	}
	d.mu.RUnlock()

	d.metrics.SetActiveCollaborators(len(active))

	for _, fn := range listeners {
		fn(active)
	}
}
