package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roomkit-io/roomkit/logging"
	"github.com/roomkit-io/roomkit/metrics"
	"github.com/roomkit-io/roomkit/types"
)

// StaleFunc reports whether a holder's presence record has gone stale.
// A nil StaleFunc treats every holder as live.
type StaleFunc func(holderID string) bool

// LostFunc is invoked when a held lock is lost to renewal failure or takeover.
type LostFunc func(entityType, entityID string)

// heldLock tracks one lease held by the local user.
type heldLock struct {
	lock     types.Lock
	revision uint64
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Coordinator manages advisory exclusive leases for the local user.
//
// The single-writer invariant rests on the store's atomic operations: Create
// wins only when no lease key exists, and takeover of an expired or
// stale-holder lease goes through a revision-checked Update, so two clients
// racing for the same expired lease cannot both win.
type Coordinator struct {
	store         types.LeaseStore
	holderID      string
	lease         time.Duration
	renewInterval time.Duration
	isStale       StaleFunc
	onLost        LostFunc
	logger        types.Logger
	metrics       types.MetricsCollector

	paused atomic.Bool

	mu   sync.Mutex
	held map[string]*heldLock
}

// NewCoordinator creates a lock coordinator for one local user.
//
// Parameters:
//   - store: Atomic lease store backing the locks
//   - holderID: Local user ID stamped into acquired leases
//   - lease: Lease duration; an unrenewed lock expires after this
//   - renewInterval: Renewal period while a lock is held (typically lease/3)
//   - logger: Logger (nil for nop)
//   - collector: Metrics collector (nil for nop)
//
// Returns:
//   - *Coordinator: New coordinator instance
func NewCoordinator(store types.LeaseStore, holderID string, lease, renewInterval time.Duration, logger types.Logger, collector types.MetricsCollector) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}

	return &Coordinator{
		store:         store,
		holderID:      holderID,
		lease:         lease,
		renewInterval: renewInterval,
		logger:        logger,
		metrics:       collector,
		held:          make(map[string]*heldLock),
	}
}

// SetStaleFunc wires the presence staleness check used for lease takeover.
func (c *Coordinator) SetStaleFunc(fn StaleFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isStale = fn
}

// SetOnLost wires the callback fired when a held lock is lost.
func (c *Coordinator) SetOnLost(fn LostFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onLost = fn
}

// Acquire attempts to take the exclusive lease for an entity.
//
// A single round trip: granted when no lease exists, when the local user
// already holds it (idempotent re-acquire, which also extends the lease), or
// when the existing lease is expired or its holder's presence is stale.
// Otherwise denied with ReasonLockedByOther. Store errors yield
// ReasonRequestFailed plus a wrapped ErrLockRequestFailed so callers can
// retry.
//
// Parameters:
//   - ctx: Context for the store round trip
//   - entityType: Entity type of the lock target
//   - entityID: Entity ID of the lock target
//
// Returns:
//   - types.AcquireResult: Typed outcome (granted, or denial reason)
//   - error: Non-nil only for request failures, never for denial
func (c *Coordinator) Acquire(ctx context.Context, entityType, entityID string) (types.AcquireResult, error) {
	now := time.Now()
	lk := types.Lock{
		EntityType: entityType,
		EntityID:   entityID,
		HolderID:   c.holderID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(c.lease),
	}

	value, err := json.Marshal(lk)
	if err != nil {
		return types.AcquireResult{Granted: false, Reason: types.ReasonRequestFailed},
			fmt.Errorf("%w: %w", types.ErrLockRequestFailed, err)
	}

	key := leaseKey(entityType, entityID)

	revision, err := c.store.Create(ctx, key, value)
	if err == nil {
		c.adopt(lk, revision)
		c.metrics.RecordLockAcquire(true, "")

		return types.AcquireResult{Granted: true}, nil
	}

	if !errors.Is(err, types.ErrLeaseExists) {
		c.metrics.RecordLockAcquire(false, string(types.ReasonRequestFailed))

		return types.AcquireResult{Granted: false, Reason: types.ReasonRequestFailed},
			fmt.Errorf("%w: %w", types.ErrLockRequestFailed, err)
	}

	// A lease exists; inspect it to decide between renewal, takeover and denial.
	return c.acquireExisting(ctx, key, lk)
}

// acquireExisting handles the acquire path when a lease key is already present.
func (c *Coordinator) acquireExisting(ctx context.Context, key string, lk types.Lock) (types.AcquireResult, error) {
	raw, revision, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, types.ErrLeaseNotFound) {
			// Lease released between Create and Get; try once more.
			newRev, createErr := c.store.Create(ctx, key, mustMarshal(lk))
			if createErr == nil {
				c.adopt(lk, newRev)
				c.metrics.RecordLockAcquire(true, "")

				return types.AcquireResult{Granted: true}, nil
			}

			c.metrics.RecordLockAcquire(false, string(types.ReasonLockedByOther))

			return types.AcquireResult{Granted: false, Reason: types.ReasonLockedByOther}, nil
		}

		c.metrics.RecordLockAcquire(false, string(types.ReasonRequestFailed))

		return types.AcquireResult{Granted: false, Reason: types.ReasonRequestFailed},
			fmt.Errorf("%w: %w", types.ErrLockRequestFailed, err)
	}

	var existing types.Lock
	if err := json.Unmarshal(raw, &existing); err != nil {
		c.metrics.RecordLockAcquire(false, string(types.ReasonRequestFailed))

		return types.AcquireResult{Granted: false, Reason: types.ReasonRequestFailed},
			fmt.Errorf("%w: failed to decode lease: %w", types.ErrLockRequestFailed, err)
	}

	now := time.Now()

	// Idempotent re-acquire by the current holder extends the lease.
	takeover := false
	switch {
	case existing.HolderID == c.holderID && !existing.Expired(now):
	case existing.Expired(now):
		takeover = true
		c.metrics.RecordLockExpired()
	case c.holderStale(existing.HolderID):
		takeover = true
		c.logger.Info("taking over lease from stale holder",
			"entity", types.EntityKey(lk.EntityType, lk.EntityID),
			"holder_id", existing.HolderID,
		)
	default:
		c.metrics.RecordLockAcquire(false, string(types.ReasonLockedByOther))

		return types.AcquireResult{
			Granted:  false,
			Reason:   types.ReasonLockedByOther,
			HolderID: existing.HolderID,
		}, nil
	}

	newRev, err := c.store.Update(ctx, key, mustMarshal(lk), revision)
	if err != nil {
		if errors.Is(err, types.ErrLeaseConflict) && existing.HolderID == c.holderID && c.Held(lk.EntityType, lk.EntityID) {
			// Our own renewal loop advanced the revision mid-acquire; the
			// lock is still ours.
			c.metrics.RecordLockAcquire(true, "")

			return types.AcquireResult{Granted: true}, nil
		}

		if errors.Is(err, types.ErrLeaseConflict) || errors.Is(err, types.ErrLeaseNotFound) {
			// Another client won the takeover race.
			c.metrics.RecordLockAcquire(false, string(types.ReasonLockedByOther))

			return types.AcquireResult{Granted: false, Reason: types.ReasonLockedByOther}, nil
		}

		c.metrics.RecordLockAcquire(false, string(types.ReasonRequestFailed))

		return types.AcquireResult{Granted: false, Reason: types.ReasonRequestFailed},
			fmt.Errorf("%w: %w", types.ErrLockRequestFailed, err)
	}

	if takeover {
		c.logger.Debug("lease takeover succeeded",
			"entity", types.EntityKey(lk.EntityType, lk.EntityID),
			"previous_holder", existing.HolderID,
		)
	}

	c.adopt(lk, newRev)
	c.metrics.RecordLockAcquire(true, "")

	return types.AcquireResult{Granted: true}, nil
}

// Release releases the lease for an entity.
//
// Best-effort and idempotent: releasing a lock the local user does not hold is
// a no-op, not an error.
//
// Parameters:
//   - ctx: Context for the store round trip
//   - entityType: Entity type of the lock target
//   - entityID: Entity ID of the lock target
//
// Returns:
//   - error: Store error from the delete, nil otherwise
func (c *Coordinator) Release(ctx context.Context, entityType, entityID string) error {
	key := leaseKey(entityType, entityID)

	c.mu.Lock()
	h, ok := c.held[key]
	delete(c.held, key)
	c.mu.Unlock()

	if !ok {
		return nil
	}

	c.stopRenewal(h)

	c.mu.Lock()
	revision := h.revision
	c.mu.Unlock()

	// The revision check keeps a stale release from destroying a lease another
	// client took over after ours expired. A conflict means the entry is no
	// longer ours; the lock is already released from this client's view.
	err := c.store.Delete(ctx, key, revision)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrLeaseNotFound):
	case errors.Is(err, types.ErrLeaseConflict):
		c.logger.Debug("lease superseded before release", "key", key)
	default:
		return fmt.Errorf("failed to delete lease %s: %w", key, err)
	}

	c.logger.Debug("released lock", "entity", types.EntityKey(entityType, entityID))

	return nil
}

// ReleaseAll releases every lease held by the local user.
func (c *Coordinator) ReleaseAll(ctx context.Context) {
	c.mu.Lock()
	held := make([]types.Lock, 0, len(c.held))
	for _, h := range c.held {
		held = append(held, h.lock)
	}
	c.mu.Unlock()

	for _, lk := range held {
		if err := c.Release(ctx, lk.EntityType, lk.EntityID); err != nil {
			c.logger.Error("failed to release lock",
				"entity", types.EntityKey(lk.EntityType, lk.EntityID), "error", err)
		}
	}
}

// IsLocked reports the observable lock state for an entity.
//
// An expired lease reads as unlocked.
//
// Returns:
//   - types.LockStatus: Current lock state
//   - error: Store error, nil otherwise
func (c *Coordinator) IsLocked(ctx context.Context, entityType, entityID string) (types.LockStatus, error) {
	raw, _, err := c.store.Get(ctx, leaseKey(entityType, entityID))
	if err != nil {
		if errors.Is(err, types.ErrLeaseNotFound) {
			return types.LockStatus{}, nil
		}

		return types.LockStatus{}, fmt.Errorf("failed to get lease: %w", err)
	}

	var lk types.Lock
	if err := json.Unmarshal(raw, &lk); err != nil {
		return types.LockStatus{}, fmt.Errorf("failed to decode lease: %w", err)
	}

	if lk.Expired(time.Now()) {
		return types.LockStatus{}, nil
	}

	return types.LockStatus{
		Locked:   true,
		ByMe:     lk.HolderID == c.holderID,
		HolderID: lk.HolderID,
	}, nil
}

// Held reports whether the local user currently believes it holds the lease.
func (c *Coordinator) Held(entityType, entityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.held[leaseKey(entityType, entityID)]

	return ok
}

// PauseRenewal suspends lease renewal, used while the transport is down.
//
// Leases keep their current expiry; an outage longer than the remaining lease
// lets other clients take over, which Revalidate detects on reconnect.
func (c *Coordinator) PauseRenewal() {
	c.paused.Store(true)
}

// ResumeRenewal re-enables lease renewal after a resync.
func (c *Coordinator) ResumeRenewal() {
	c.paused.Store(false)
}

// Revalidate re-checks every held lease against the store after an outage.
//
// A lease whose holder or revision changed during the outage was taken over,
// and one that expired is free for the next claimant; either way the lease is
// dropped locally and the lost callback fires so a pending local edit
// fails instead of silently overwriting the new holder's work.
//
// Parameters:
//   - ctx: Context for the store round trips
//
// Returns:
//   - error: First store error encountered, nil otherwise
func (c *Coordinator) Revalidate(ctx context.Context) error {
	c.mu.Lock()
	keys := make([]string, 0, len(c.held))
	for key := range c.held {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		c.mu.Lock()
		h, ok := c.held[key]
		c.mu.Unlock()
		if !ok {
			continue
		}

		raw, revision, err := c.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, types.ErrLeaseNotFound) {
				c.dropLost(key, h)
				continue
			}
			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		var current types.Lock
		if err := json.Unmarshal(raw, &current); err != nil {
			c.dropLost(key, h)
			continue
		}

		// An expired lease is as lost as a taken-over one: the next client to
		// acquire will claim it, so the local claim must not outlive it.
		if current.HolderID != c.holderID || revision != h.revision || current.Expired(time.Now()) {
			c.dropLost(key, h)
			continue
		}
	}

	return firstErr
}

// adopt records a granted lease and starts its renewal loop.
func (c *Coordinator) adopt(lk types.Lock, revision uint64) {
	key := leaseKey(lk.EntityType, lk.EntityID)

	h := &heldLock{
		lock:     lk,
		revision: revision,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	c.mu.Lock()
	if prev, ok := c.held[key]; ok {
		// Re-acquire of a lease we already track; keep one renewal loop.
		prev.lock = lk
		prev.revision = revision
		c.mu.Unlock()

		return
	}
	c.held[key] = h
	c.mu.Unlock()

	go c.renewalLoop(h, key)
}

// renewalLoop extends the lease at renewInterval until released or lost.
func (c *Coordinator) renewalLoop(h *heldLock, key string) {
	defer close(h.doneCh)

	ticker := time.NewTicker(c.renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			if c.paused.Load() {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := c.renew(ctx, h, key)
			cancel()

			if err != nil {
				c.logger.Warn("lock renewal failed", "key", key, "error", err)

				if errors.Is(err, types.ErrLeaseConflict) || errors.Is(err, types.ErrLeaseNotFound) {
					// Lease was taken over or expired out from under us.
					c.mu.Lock()
					_, stillHeld := c.held[key]
					delete(c.held, key)
					c.mu.Unlock()

					if stillHeld {
						c.metrics.RecordLockLost()
						c.notifyLost(h.lock)
					}

					return
				}
			}
		}
	}
}

// renew extends the lease expiry via a revision-checked update.
func (c *Coordinator) renew(ctx context.Context, h *heldLock, key string) error {
	c.mu.Lock()
	lk := h.lock
	revision := h.revision
	c.mu.Unlock()

	lk.ExpiresAt = time.Now().Add(c.lease)

	newRev, err := c.store.Update(ctx, key, mustMarshal(lk), revision)
	if err != nil {
		return err
	}

	c.mu.Lock()
	h.lock = lk
	h.revision = newRev
	c.mu.Unlock()

	return nil
}

// stopRenewal stops a lease's renewal loop and waits for it to exit.
func (c *Coordinator) stopRenewal(h *heldLock) {
	select {
	case <-h.stopCh:
		// Already stopped.
	default:
		close(h.stopCh)
	}
	<-h.doneCh
}

// dropLost forgets a lease lost during an outage and notifies.
func (c *Coordinator) dropLost(key string, h *heldLock) {
	c.mu.Lock()
	_, stillHeld := c.held[key]
	delete(c.held, key)
	c.mu.Unlock()

	if !stillHeld {
		return
	}

	c.stopRenewal(h)
	c.metrics.RecordLockLost()
	c.logger.Info("lock lost during outage", "key", key)
	c.notifyLost(h.lock)
}

// holderStale checks the configured staleness function.
func (c *Coordinator) holderStale(holderID string) bool {
	c.mu.Lock()
	fn := c.isStale
	c.mu.Unlock()

	if fn == nil {
		return false
	}

	return fn(holderID)
}

// notifyLost fires the lost callback if configured.
func (c *Coordinator) notifyLost(lk types.Lock) {
	c.mu.Lock()
	fn := c.onLost
	c.mu.Unlock()

	if fn != nil {
		fn(lk.EntityType, lk.EntityID)
	}
}

// leaseKey builds the store key for an entity's lease.
func leaseKey(entityType, entityID string) string {
	return "lock." + entityType + "." + entityID
}

// mustMarshal marshals a lock value; Lock contains no unmarshalable fields.
func mustMarshal(lk types.Lock) []byte {
	value, err := json.Marshal(lk)
	if err != nil {
		panic(fmt.Sprintf("marshal lock: %v", err))
	}

	return value
}
