package reconnect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roomkit-io/roomkit/logging"
	"github.com/roomkit-io/roomkit/metrics"
	"github.com/roomkit-io/roomkit/types"
)

// Common errors for supervisor operations.
var (
	ErrAlreadyStarted = errors.New("supervisor already started")
	ErrNotStarted     = errors.New("supervisor not started")
)

// Callbacks are the session hooks the supervisor drives.
type Callbacks struct {
	// OnDisconnect fires once per outage, when connectivity is first lost.
	OnDisconnect func()

	// Resync re-establishes room state after reconnect. Retried with backoff.
	Resync func(ctx context.Context) error

	// OnResyncDone fires after a successful resync.
	OnResyncDone func()

	// OnResyncFailed fires when resync retries are exhausted.
	OnResyncFailed func(err error)
}

// Supervisor watches transport connectivity and drives the degraded/resync
// cycle.
//
// Exactly one OnDisconnect per outage, no matter how many status transitions
// the transport reports while down. A reconnect arriving during an in-flight
// resync cancels it and starts over; state read before the second outage
// cannot be trusted.
type Supervisor struct {
	transport    types.Transport
	callbacks    Callbacks
	maxRetries   uint64
	baseInterval time.Duration
	logger       types.Logger
	metrics      types.MetricsCollector

	mu        sync.Mutex
	started   bool
	wasDown   bool
	unsub     types.Unsubscribe
	cancelCur context.CancelFunc
	resyncGen uint64
	wg        sync.WaitGroup
}

// NewSupervisor creates a reconnection supervisor.
//
// Parameters:
//   - transport: Transport whose connectivity is watched
//   - callbacks: Session hooks for disconnect and resync
//   - maxRetries: Resync attempts before giving up
//   - baseInterval: Initial backoff interval between resync attempts
//   - logger: Logger (nil for nop)
//   - collector: Metrics collector (nil for nop)
//
// Returns:
//   - *Supervisor: New supervisor instance
func NewSupervisor(transport types.Transport, callbacks Callbacks, maxRetries uint64, baseInterval time.Duration, logger types.Logger, collector types.MetricsCollector) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}

	return &Supervisor{
		transport:    transport,
		callbacks:    callbacks,
		maxRetries:   maxRetries,
		baseInterval: baseInterval,
		logger:       logger,
		metrics:      collector,
	}
}

// Start begins watching connectivity transitions.
//
// Returns:
//   - error: ErrAlreadyStarted if running
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	s.started = true
	s.unsub = s.transport.OnStatusChange(s.handleStatus)

	return nil
}

// Stop stops watching and cancels any in-flight resync.
//
// Blocks until the resync goroutine exits.
//
// Returns:
//   - error: ErrNotStarted if not running
func (s *Supervisor) Stop() error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}

	s.started = false
	unsub := s.unsub
	s.unsub = nil
	if s.cancelCur != nil {
		s.cancelCur()
		s.cancelCur = nil
	}

	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.wg.Wait()

	return nil
}

// handleStatus reacts to one connectivity transition.
func (s *Supervisor) handleStatus(status types.ConnStatus) {
	switch status {
	case types.StatusDisconnected, types.StatusReconnecting:
		s.handleDown()
	case types.StatusConnected:
		s.handleUp()
	}
}

// handleDown marks the outage and fires OnDisconnect once.
func (s *Supervisor) handleDown() {
	s.mu.Lock()

	if !s.started || s.wasDown {
		s.mu.Unlock()
		return
	}

	s.wasDown = true
	if s.cancelCur != nil {
		// A resync from a previous outage is still running; it is now stale.
		s.cancelCur()
		s.cancelCur = nil
	}

	s.mu.Unlock()

	s.logger.Warn("transport connection lost")
	s.metrics.SetDegraded(true)

	if s.callbacks.OnDisconnect != nil {
		s.callbacks.OnDisconnect()
	}
}

// handleUp starts a resync attempt for a finished outage.
func (s *Supervisor) handleUp() {
	s.mu.Lock()

	if !s.started || !s.wasDown {
		s.mu.Unlock()
		return
	}

	s.wasDown = false

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelCur = cancel
	s.resyncGen++
	gen := s.resyncGen
	s.wg.Add(1)

	s.mu.Unlock()

	s.logger.Info("transport reconnected, starting resync")

	go s.runResync(ctx, cancel, gen)
}

// runResync drives the resync with exponential backoff.
func (s *Supervisor) runResync(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer s.wg.Done()
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.baseInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx)

	err := backoff.Retry(func() error {
		if s.callbacks.Resync == nil {
			return nil
		}

		return s.callbacks.Resync(ctx)
	}, policy)

	s.mu.Lock()
	if s.resyncGen == gen {
		s.cancelCur = nil
	}
	s.mu.Unlock()

	if ctx.Err() != nil {
		// Superseded by a new outage or by Stop; discard the result either way.
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Superseded by a new outage or by Stop.
			return
		}

		s.logger.Error("resync failed after retries", "error", err)
		s.metrics.RecordResync("failure")

		if s.callbacks.OnResyncFailed != nil {
			s.callbacks.OnResyncFailed(err)
		}

		return
	}

	s.logger.Info("resync complete")
	s.metrics.RecordResync("success")
	s.metrics.SetDegraded(false)

	if s.callbacks.OnResyncDone != nil {
		s.callbacks.OnResyncDone()
	}
}
