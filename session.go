package roomkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/roomkit-io/roomkit/internal/cursor"
	"github.com/roomkit-io/roomkit/internal/editlog"
	"github.com/roomkit-io/roomkit/internal/lock"
	"github.com/roomkit-io/roomkit/internal/presence"
	"github.com/roomkit-io/roomkit/internal/reconnect"
	"github.com/roomkit-io/roomkit/types"
)

// Session is the per-entity handle exposed to UI layers.
//
// All methods are safe for concurrent use and safe to call repeatedly; none
// require the caller to track the internal state machine beyond checking the
// result of RequestEdit. A session is obtained from Coordinator.Join and
// discarded by Coordinator.Leave.
type Session struct {
	entityType string
	entityID   string
	roomID     string

	cfg       Config
	transport Transport
	identity  Identity
	logger    Logger
	metrics   MetricsCollector
	hooks     Hooks

	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32

	directory  *presence.Directory
	locks      *lock.Coordinator
	log        *editlog.Log
	cursors    *cursor.Broadcaster
	heartbeat  *presence.Heartbeat
	supervisor *reconnect.Supervisor

	localMu sync.Mutex
	local   types.CollaboratorPresence

	unsubs []types.Unsubscribe
}

// newSession wires a session's components without touching the network.
func newSession(c *Coordinator, entityType, entityID string) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		entityType: entityType,
		entityID:   entityID,
		roomID:     types.EntityKey(entityType, entityID),
		cfg:        c.cfg,
		transport:  c.transport,
		identity:   c.identity,
		logger:     c.logger,
		metrics:    c.metrics,
		hooks:      c.hooks,
		ctx:        ctx,
		cancel:     cancel,
		log:        editlog.NewLog(),
		local: types.CollaboratorPresence{
			UserID:      c.identity.UserID,
			DisplayName: c.identity.DisplayName,
			Status:      types.StatusOnline,
		},
	}

	s.state.Store(int32(StateInit))

	s.directory = presence.NewDirectory(c.cfg.HeartbeatInterval, c.cfg.StalenessMultiplier, c.logger, c.metrics)

	s.locks = lock.NewCoordinator(c.leases, c.identity.UserID, c.cfg.LockLease, c.cfg.LockRenewInterval, c.logger, c.metrics)
	s.locks.SetStaleFunc(s.directory.IsStale)
	s.locks.SetOnLost(s.onLockLost)

	s.cursors = cursor.NewBroadcaster(s.sendCursor, c.cfg.CursorMinInterval, c.cfg.CursorBuffer, c.logger, c.metrics)

	s.heartbeat = presence.NewHeartbeat(s.publishPresence, c.cfg.HeartbeatInterval)

	s.supervisor = reconnect.NewSupervisor(c.transport, reconnect.Callbacks{
		OnDisconnect:   s.onDisconnect,
		Resync:         s.resync,
		OnResyncDone:   s.onResyncDone,
		OnResyncFailed: s.onResyncFailed,
	}, c.cfg.ResyncMaxRetries, c.cfg.ResyncBaseBackoff, c.logger, c.metrics)

	return s
}

// join subscribes to the room and announces the local user.
func (s *Session) join(ctx context.Context) error {
	s.transitionState(StateInit, StateJoining)

	joinCtx, cancel := context.WithTimeout(ctx, s.cfg.JoinTimeout)
	defer cancel()

	if err := s.transport.JoinRoom(joinCtx, s.roomID); err != nil {
		s.abortJoin(joinCtx)
		return fmt.Errorf("failed to join room: %w", err)
	}

	if err := s.subscribeAll(); err != nil {
		s.abortJoin(joinCtx)
		return err
	}

	s.directory.OnChange(s.onDirectoryChange)

	if err := s.directory.StartSweeper(); err != nil {
		s.abortJoin(joinCtx)
		return err
	}

	// Announce before querying so peers that answer the query already have
	// the local user in their directories.
	if err := s.transport.Publish(joinCtx, s.roomID, &types.UserJoined{
		UserID:      s.identity.UserID,
		DisplayName: s.identity.DisplayName,
	}); err != nil {
		s.abortJoin(joinCtx)
		return fmt.Errorf("failed to announce join: %w", err)
	}

	// First heartbeat publishes the full local presence record immediately.
	if err := s.heartbeat.Start(joinCtx); err != nil {
		s.abortJoin(joinCtx)
		return err
	}

	if err := s.transport.Publish(joinCtx, s.roomID, &types.PresenceQuery{RequesterID: s.identity.UserID}); err != nil {
		s.logger.Warn("presence query failed, relying on heartbeats", "room", s.roomID, "error", err)
	}

	if err := s.supervisor.Start(); err != nil {
		s.abortJoin(joinCtx)
		return err
	}

	s.transitionState(StateJoining, StateActive)

	return nil
}

// subscribeAll registers the room event handlers.
func (s *Session) subscribeAll() error {
	subscriptions := []struct {
		eventType types.EventType
		handler   types.EventHandler
	}{
		{types.EventPresenceUpdated, s.handlePresenceUpdated},
		{types.EventUserJoined, s.handleUserJoined},
		{types.EventUserLeft, s.handleUserLeft},
		{types.EventCursorMoved, s.handleCursorMoved},
		{types.EventEditBroadcast, s.handleEditBroadcast},
		{types.EventLockChanged, s.handleLockChanged},
		{types.EventPresenceQuery, s.handlePresenceQuery},
	}

	for _, sub := range subscriptions {
		unsub, err := s.transport.Subscribe(s.roomID, sub.eventType, sub.handler)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", sub.eventType, err)
		}
		s.unsubs = append(s.unsubs, unsub)
	}

	return nil
}

// abortJoin rolls a failed join back to Closed.
func (s *Session) abortJoin(ctx context.Context) {
	s.close()
	_ = s.heartbeat.Stop()
	_ = s.directory.StopSweeper()
	s.teardown(ctx)
}

// leave closes the session: locks released synchronously, departure
// announced, subscriptions dropped, projections discarded. Idempotent.
func (s *Session) leave(ctx context.Context) error {
	if !s.close() {
		return nil
	}

	_ = s.supervisor.Stop()
	_ = s.heartbeat.Stop()
	_ = s.directory.StopSweeper()

	// Lock release is synchronous: a departing editor must never leave its
	// lease behind for a full expiry period.
	s.locks.ReleaseAll(ctx)

	if err := s.transport.Publish(ctx, s.roomID, &types.UserLeft{UserID: s.identity.UserID}); err != nil {
		s.logger.Debug("leave announcement failed, peers will evict by staleness",
			"room", s.roomID, "error", err)
	}

	s.teardown(ctx)

	return nil
}

// close transitions to Closed; reports false if already closed.
func (s *Session) close() bool {
	for {
		current := SessionState(s.state.Load())
		if current == StateClosed {
			return false
		}
		if s.state.CompareAndSwap(int32(current), int32(StateClosed)) {
			s.logStateTransition(current, StateClosed)
			return true
		}
	}
}

// teardown drops subscriptions, leaves the room and cancels the lifecycle.
func (s *Session) teardown(ctx context.Context) {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	if err := s.transport.LeaveRoom(ctx, s.roomID); err != nil {
		s.logger.Debug("leave room failed", "room", s.roomID, "error", err)
	}

	s.cursors.Close()
	s.cancel()
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Degraded reports whether the transport is currently disconnected.
//
// While degraded, commits are rejected and reads serve last-known state.
func (s *Session) Degraded() bool {
	state := s.State()

	return state == StateDegraded || state == StateResyncing
}

// EntityType returns the entity type this session coordinates.
func (s *Session) EntityType() string { return s.entityType }

// EntityID returns the entity ID this session coordinates.
func (s *Session) EntityID() string { return s.entityID }

// Presence returns the current active-collaborator snapshot.
//
// Returns:
//   - []CollaboratorPresence: Collaborators currently considered active
//   - error: ErrPresenceUnavailable during resync, ErrSessionClosed after leave
func (s *Session) Presence() ([]CollaboratorPresence, error) {
	switch s.State() {
	case StateClosed:
		return nil, ErrSessionClosed
	case StateResyncing:
		return nil, ErrPresenceUnavailable
	}

	return s.directory.ListActive(), nil
}

// OnPresenceChange registers a callback invoked with the active snapshot
// after every presence change.
//
// Returns:
//   - Unsubscribe: Removes the callback; safe to call more than once
func (s *Session) OnPresenceChange(fn func(active []CollaboratorPresence)) Unsubscribe {
	return s.directory.OnChange(fn)
}

// RequestEdit attempts to acquire the exclusive edit lock for this session's
// entity.
//
// Denial is an expected outcome, not an error: a false Granted with
// ReasonLockedByOther carries the current holder for "being edited by X"
// surfaces. Safe to call repeatedly; re-acquiring a held lock extends it.
//
// Parameters:
//   - ctx: Context for the acquire round trip
//
// Returns:
//   - AcquireResult: Typed outcome
//   - error: ErrSessionClosed, ErrDegraded, or a wrapped ErrLockRequestFailed
func (s *Session) RequestEdit(ctx context.Context) (AcquireResult, error) {
	switch s.State() {
	case StateClosed:
		return AcquireResult{}, ErrSessionClosed
	case StateDegraded, StateResyncing:
		return AcquireResult{}, ErrDegraded
	}

	result, err := s.locks.Acquire(ctx, s.entityType, s.entityID)
	if err != nil {
		return result, err
	}

	if result.Granted {
		s.publishLockChanged(true)
	}

	return result, nil
}

// CommitEdit appends a locally-authored edit, broadcasts it and releases the
// lock.
//
// The pipeline order is deliberate: append to local history, broadcast with
// backoff retries until the ordering authority acknowledges a sequence, then
// release the lock last, so a failed broadcast can be retried without another
// participant racing in. On retry exhaustion the record stays pending in
// local history, the lock stays held, and ErrBroadcastFailed is returned.
//
// A commit completing after the session closed is dropped as a no-op write.
//
// Parameters:
//   - ctx: Context bounding the broadcast
//   - operation: Edit operation kind
//   - payload: Opaque operation payload (owned by the persistence collaborator)
//
// Returns:
//   - EditRecord: Sequenced record as broadcast (pending record on failure)
//   - error: ErrSessionClosed, ErrDegraded, ErrLockNotHeld or ErrBroadcastFailed
func (s *Session) CommitEdit(ctx context.Context, operation EditOperation, payload json.RawMessage) (EditRecord, error) {
	switch s.State() {
	case StateClosed:
		return EditRecord{}, ErrSessionClosed
	case StateDegraded, StateResyncing:
		return EditRecord{}, ErrDegraded
	}

	if !s.locks.Held(s.entityType, s.entityID) {
		return EditRecord{}, ErrLockNotHeld
	}

	rec := EditRecord{
		ID:         uuid.NewString(),
		EntityType: s.entityType,
		EntityID:   s.entityID,
		Operation:  operation,
		Payload:    payload,
		AuthorID:   s.identity.UserID,
		Timestamp:  time.Now(),
	}

	if err := s.log.Append(rec); err != nil {
		return EditRecord{}, err
	}

	seq, err := s.broadcast(ctx, rec)
	if err != nil {
		s.metrics.RecordBroadcastOutcome("failure")
		s.runHook(func(hctx context.Context) error {
			if s.hooks.OnError == nil {
				return nil
			}
			return s.hooks.OnError(hctx, err)
		})

		return rec, fmt.Errorf("%w: %w", ErrBroadcastFailed, err)
	}

	rec.Sequence = seq
	s.log.SetSequence(s.entityType, s.entityID, rec.ID, seq)

	if s.State() == StateClosed {
		// Commit completed after leave: drop the result instead of
		// resurrecting session state. The sequence is assigned; peers that
		// received the broadcast keep it.
		s.metrics.RecordBroadcastOutcome("dropped")

		return EditRecord{}, ErrSessionClosed
	}

	// Fan the sequenced record out to room members. Best-effort: peers that
	// miss it converge through at-least-once redelivery and resync.
	if err := s.transport.Publish(ctx, s.roomID, &types.EditBroadcast{Record: rec}); err != nil {
		s.logger.Warn("edit fan-out failed", "record_id", rec.ID, "error", err)
	}

	s.metrics.RecordBroadcastOutcome("success")

	// Release last.
	if err := s.locks.Release(ctx, s.entityType, s.entityID); err != nil {
		s.logger.Warn("lock release after commit failed", "error", err)
	} else {
		s.publishLockChanged(false)
	}

	return rec, nil
}

// broadcast publishes the record to the ordering authority with backoff.
func (s *Session) broadcast(ctx context.Context, rec EditRecord) (uint64, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.BroadcastBaseBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, s.cfg.BroadcastMaxRetries), ctx)

	var seq uint64
	attempt := 0

	err := backoff.Retry(func() error {
		if attempt > 0 {
			s.metrics.RecordBroadcastRetry()
		}
		attempt++

		var pubErr error
		seq, pubErr = s.transport.PublishEdit(ctx, s.roomID, rec)
		if pubErr != nil {
			s.logger.Debug("edit broadcast attempt failed",
				"record_id", rec.ID, "attempt", attempt, "error", pubErr)
		}

		return pubErr
	}, policy)
	if err != nil {
		return 0, err
	}

	return seq, nil
}

// CancelEdit abandons an edit and releases the lock.
//
// Fire-and-forget: returns immediately, never blocks the UI on the release
// round trip. Cancelling without a held lock is a no-op.
func (s *Session) CancelEdit() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OperationTimeout)
		defer cancel()

		if err := s.locks.Release(ctx, s.entityType, s.entityID); err != nil {
			s.logger.Debug("cancel release failed, lease will expire", "error", err)
			return
		}

		s.publishLockChanged(false)
	}()
}

// IsLocked reports the observable lock state for this session's entity.
//
// An expired lease reads as unlocked. After a reconnection resync the result
// reflects any takeover that happened during the outage.
//
// Returns:
//   - LockStatus: Current lock state
//   - error: Store error, nil otherwise
func (s *Session) IsLocked(ctx context.Context) (LockStatus, error) {
	return s.locks.IsLocked(ctx, s.entityType, s.entityID)
}

// History returns the ordered edit history for this session's entity.
//
// Records are in authoritative sequence order regardless of arrival order;
// pending local records sort at the tail.
func (s *Session) History() []EditRecord {
	return s.log.History(s.entityType, s.entityID)
}

// PublishCursor submits the local user's cursor position for broadcast.
//
// Throttled to Config.CursorMinInterval; intermediate positions inside a
// throttle window are dropped, the final one always goes out. Never blocks.
func (s *Session) PublishCursor(pos CursorPosition) {
	if pos.Timestamp.IsZero() {
		pos.Timestamp = time.Now()
	}

	s.cursors.Publish(pos)
}

// CursorStream returns a stream of collaborators' cursor updates.
//
// The stream is primed with the latest known position per user and delivers
// last-write-wins updates from then on. A subscriber that stops draining
// drops frames rather than stalling others. The channel closes on
// unsubscribe or session close.
//
// Returns:
//   - <-chan CursorUpdate: Update stream
//   - Unsubscribe: Removes the subscription; safe to call more than once
func (s *Session) CursorStream() (<-chan CursorUpdate, Unsubscribe) {
	return s.cursors.Stream()
}

// SetTyping updates the local typing indicator.
//
// Published immediately, best-effort; also carried by every heartbeat.
func (s *Session) SetTyping(typing bool) {
	s.localMu.Lock()
	s.local.IsTyping = typing
	s.localMu.Unlock()

	s.announcePresence()
}

// SetSelection updates the local selection.
//
// Pass nil to clear. Published immediately, best-effort; also carried by
// every heartbeat.
func (s *Session) SetSelection(sel *Selection) {
	s.localMu.Lock()
	s.local.Selection = sel
	s.localMu.Unlock()

	s.announcePresence()
}

// SetStatus updates the local presence status (online/away).
func (s *Session) SetStatus(status types.PresenceStatus) {
	s.localMu.Lock()
	s.local.Status = status
	s.localMu.Unlock()

	s.announcePresence()
}

// announcePresence publishes the local record outside the caller's goroutine.
func (s *Session) announcePresence() {
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.OperationTimeout)
		defer cancel()

		if err := s.publishPresence(ctx); err != nil {
			s.logger.Debug("presence announcement failed", "error", err)
		}
	}()
}

// publishPresence sends the local user's full presence record to the room.
//
// Serves as the heartbeat publish function; every call refreshes LastSeen.
func (s *Session) publishPresence(ctx context.Context) error {
	s.localMu.Lock()
	s.local.LastSeen = time.Now()
	rec := s.local
	s.localMu.Unlock()

	s.directory.Upsert(rec)

	return s.transport.Publish(ctx, s.roomID, &types.PresenceUpdated{Presence: rec})
}

// sendCursor publishes one throttled cursor frame.
func (s *Session) sendCursor(ctx context.Context, pos types.CursorPosition) error {
	s.localMu.Lock()
	s.local.Cursor = &pos
	s.localMu.Unlock()

	return s.transport.Publish(ctx, s.roomID, &types.CursorMoved{
		UserID:   s.identity.UserID,
		Position: pos,
	})
}

// publishLockChanged announces a lock transition, best-effort.
func (s *Session) publishLockChanged(locked bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OperationTimeout)
		defer cancel()

		ev := &types.LockChanged{
			EntityType: s.entityType,
			EntityID:   s.entityID,
			Locked:     locked,
		}
		if locked {
			ev.HolderID = s.identity.UserID
		}

		if err := s.transport.Publish(ctx, s.roomID, ev); err != nil {
			s.logger.Debug("lock change announcement failed", "error", err)
		}
	}()
}

// --- event handlers (invoked from the transport's delivery goroutine) ---

func (s *Session) handlePresenceUpdated(ev types.Event) {
	update, ok := ev.(*types.PresenceUpdated)
	if !ok {
		return
	}

	s.directory.Upsert(update.Presence)
}

func (s *Session) handleUserJoined(ev types.Event) {
	joined, ok := ev.(*types.UserJoined)
	if !ok || joined.UserID == s.identity.UserID {
		return
	}

	s.directory.Upsert(types.CollaboratorPresence{
		UserID:      joined.UserID,
		DisplayName: joined.DisplayName,
		Status:      types.StatusOnline,
		LastSeen:    time.Now(),
	})
}

func (s *Session) handleUserLeft(ev types.Event) {
	left, ok := ev.(*types.UserLeft)
	if !ok || left.UserID == s.identity.UserID {
		return
	}

	s.directory.Remove(left.UserID)
	s.cursors.Forget(left.UserID)
}

func (s *Session) handleCursorMoved(ev types.Event) {
	moved, ok := ev.(*types.CursorMoved)
	if !ok || moved.UserID == s.identity.UserID {
		return
	}

	s.cursors.Receive(moved.UserID, moved.Position)
}

func (s *Session) handleEditBroadcast(ev types.Event) {
	broadcast, ok := ev.(*types.EditBroadcast)
	if !ok {
		return
	}

	// Idempotent: the author's own echo promotes the pending copy, replays
	// and out-of-order arrivals are resolved by ID and sequence.
	if err := s.log.ApplyRemote(broadcast.Record); err != nil {
		s.logger.Warn("rejected remote edit record",
			"record_id", broadcast.Record.ID, "error", err)
	}
}

func (s *Session) handleLockChanged(ev types.Event) {
	changed, ok := ev.(*types.LockChanged)
	if !ok {
		return
	}

	s.logger.Debug("lock changed",
		"entity", types.EntityKey(changed.EntityType, changed.EntityID),
		"locked", changed.Locked,
		"holder_id", changed.HolderID,
	)
}

func (s *Session) handlePresenceQuery(ev types.Event) {
	query, ok := ev.(*types.PresenceQuery)
	if !ok || query.RequesterID == s.identity.UserID {
		return
	}

	s.announcePresence()
}

// onDirectoryChange relays presence changes to the configured hook.
func (s *Session) onDirectoryChange(active []types.CollaboratorPresence) {
	if s.hooks.OnPresenceChanged == nil {
		return
	}

	s.runHook(func(ctx context.Context) error {
		return s.hooks.OnPresenceChanged(ctx, active)
	})
}

// onLockLost relays a lost lock to the configured hook.
func (s *Session) onLockLost(entityType, entityID string) {
	s.logger.Warn("lock lost, edit must be restarted",
		"entity", types.EntityKey(entityType, entityID))

	if s.hooks.OnLockLost == nil {
		return
	}

	s.runHook(func(ctx context.Context) error {
		return s.hooks.OnLockLost(ctx, entityType, entityID)
	})
}

// --- degraded mode and resync ---

// onDisconnect degrades the session when connectivity is lost.
func (s *Session) onDisconnect() {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateDegraded)) {
		return
	}
	s.logStateTransition(StateActive, StateDegraded)

	// Leases keep their current expiry; a long outage lets others take over,
	// which revalidation detects on reconnect.
	s.locks.PauseRenewal()
}

// resync re-establishes room state after a reconnect.
func (s *Session) resync(ctx context.Context) error {
	if s.state.CompareAndSwap(int32(StateDegraded), int32(StateResyncing)) {
		s.logStateTransition(StateDegraded, StateResyncing)
	}

	if s.State() != StateResyncing {
		return backoff.Permanent(ErrSessionClosed)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	if err := s.transport.JoinRoom(opCtx, s.roomID); err != nil {
		return fmt.Errorf("failed to re-join room: %w", err)
	}

	// Replace, never merge: everything learned before the outage is suspect.
	s.directory.Clear()

	if err := s.publishPresence(opCtx); err != nil {
		return fmt.Errorf("failed to re-announce presence: %w", err)
	}

	if err := s.transport.Publish(opCtx, s.roomID, &types.PresenceQuery{RequesterID: s.identity.UserID}); err != nil {
		return fmt.Errorf("failed to query presence: %w", err)
	}

	// Locks believed held may have been taken over during the outage; a
	// takeover drops the lock locally and fires OnLockLost so the pending
	// edit fails instead of overwriting the new holder's work.
	if err := s.locks.Revalidate(opCtx); err != nil {
		return fmt.Errorf("failed to revalidate locks: %w", err)
	}

	return nil
}

// onResyncDone re-activates the session after a successful resync.
func (s *Session) onResyncDone() {
	s.locks.ResumeRenewal()

	if s.state.CompareAndSwap(int32(StateResyncing), int32(StateActive)) {
		s.logStateTransition(StateResyncing, StateActive)
	}
}

// onResyncFailed reports resync exhaustion; the session stays degraded.
func (s *Session) onResyncFailed(err error) {
	if s.state.CompareAndSwap(int32(StateResyncing), int32(StateDegraded)) {
		s.logStateTransition(StateResyncing, StateDegraded)
	}

	staleErr := fmt.Errorf("%w: %w", ErrStaleSession, err)
	s.logger.Error("resync failed, session requires re-join", "error", err)

	s.runHook(func(ctx context.Context) error {
		if s.hooks.OnError == nil {
			return nil
		}
		return s.hooks.OnError(ctx, staleErr)
	})
}

// --- state machine ---

// validTransitions is the session lifecycle transition table.
var validTransitions = map[SessionState][]SessionState{
	StateInit:      {StateJoining, StateClosed},
	StateJoining:   {StateActive, StateClosed},
	StateActive:    {StateDegraded, StateClosed},
	StateDegraded:  {StateResyncing, StateClosed},
	StateResyncing: {StateActive, StateDegraded, StateClosed},
	StateClosed:    {}, // Terminal state
}

// transitionState transitions to a new state and triggers hooks.
func (s *Session) transitionState(from, to SessionState) {
	if !isValidTransition(from, to) {
		s.logger.Error("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
		)

		return
	}

	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return
	}

	s.logStateTransition(from, to)
}

// logStateTransition records a completed transition to log, hook and metrics.
func (s *Session) logStateTransition(from, to SessionState) {
	s.logger.Info("session state transition",
		"room", s.roomID,
		"from", from.String(),
		"to", to.String(),
	)

	if s.hooks.OnStateChanged != nil {
		s.runHook(func(ctx context.Context) error {
			return s.hooks.OnStateChanged(ctx, from, to)
		})
	}

	s.metrics.RecordStateTransition(from, to)
}

// isValidTransition validates that a state transition is allowed.
func isValidTransition(from, to SessionState) bool {
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}

// runHook executes a hook in the background so slow callbacks never block
// session operation.
func (s *Session) runHook(fn func(ctx context.Context) error) {
	go func() {
		if err := fn(s.ctx); err != nil {
			s.logger.Error("hook error", "error", err)
		}
	}()
}
