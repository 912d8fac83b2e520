package roomkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/roomkit-io/roomkit/logging"
	"github.com/roomkit-io/roomkit/metrics"
	"github.com/roomkit-io/roomkit/types"
)

// Coordinator is the entry point of the library: it owns one Session per
// (entityType, entityId) pair and wires presence, locking, edit history and
// cursor traffic together over the configured transport.
//
// Session-scoped state is owned exclusively by its Session; there is no
// cross-session sharing. Each client holds its own local projection of a
// room; there is no authoritative in-memory session object.
type Coordinator struct {
	cfg       Config
	transport Transport
	leases    LeaseStore
	identity  Identity
	logger    Logger
	metrics   MetricsCollector
	hooks     Hooks

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewCoordinator creates a session coordinator.
//
// Missing config values are filled with production defaults, then validated.
//
// Parameters:
//   - cfg: Configuration (zero values are defaulted)
//   - transport: Pub/sub transport moving events between clients
//   - leases: Atomic compare-and-set store backing entity locks
//   - identity: Local user identity stamping presence and edit records
//   - opts: Optional logger, metrics and hooks
//
// Returns:
//   - *Coordinator: New coordinator instance
//   - error: ErrTransportRequired, ErrLeaseStoreRequired, ErrIdentityRequired
//     or a wrapped ErrInvalidConfig
func NewCoordinator(cfg Config, transport Transport, leases LeaseStore, identity Identity, opts ...Option) (*Coordinator, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}
	if leases == nil {
		return nil, ErrLeaseStoreRequired
	}
	if identity.UserID == "" {
		return nil, fmt.Errorf("%w: empty user ID", ErrIdentityRequired)
	}

	SetDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	options := &coordinatorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.logger == nil {
		options.logger = logging.NewNop()
	}
	if options.metrics == nil {
		options.metrics = metrics.NewNop()
	}
	if options.hooks == nil {
		options.hooks = &Hooks{}
	}

	cfg.ValidateWithWarnings(options.logger)

	return &Coordinator{
		cfg:       cfg,
		transport: transport,
		leases:    leases,
		identity:  identity,
		logger:    options.logger,
		metrics:   options.metrics,
		hooks:     *options.hooks,
		sessions:  make(map[string]*Session),
	}, nil
}

// Join opens (or returns) the session for an entity.
//
// Idempotent: joining an entity that already has a live session returns the
// existing session without creating a duplicate subscription. On first join
// the session subscribes to the room, announces the local user and requests a
// presence snapshot from peers.
//
// Parameters:
//   - ctx: Context bounding the join (also capped by Config.JoinTimeout)
//   - entityType: Entity type of the room
//   - entityID: Entity ID of the room
//
// Returns:
//   - *Session: Joined session handle
//   - error: ErrCoordinatorClosed, or the join failure
func (c *Coordinator) Join(ctx context.Context, entityType, entityID string) (*Session, error) {
	key := types.EntityKey(entityType, entityID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCoordinatorClosed
	}

	if s, ok := c.sessions[key]; ok {
		return s, nil
	}

	s := newSession(c, entityType, entityID)
	if err := s.join(ctx); err != nil {
		return nil, fmt.Errorf("failed to join %s: %w", key, err)
	}

	c.sessions[key] = s

	return s, nil
}

// Session returns the live session for an entity, if any.
func (c *Coordinator) Session(entityType, entityID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[types.EntityKey(entityType, entityID)]

	return s, ok
}

// Leave closes the session for an entity and discards its local projections.
//
// Synchronously releases any lock held by the local user for the entity and
// announces the departure so peers need not wait for staleness eviction.
// Leaving an entity with no live session is a no-op.
//
// Parameters:
//   - ctx: Context bounding the leave round trips
//
// Returns:
//   - error: Leave failure; the session is discarded either way
func (c *Coordinator) Leave(ctx context.Context, entityType, entityID string) error {
	key := types.EntityKey(entityType, entityID)

	c.mu.Lock()
	s, ok := c.sessions[key]
	delete(c.sessions, key)
	c.mu.Unlock()

	if !ok {
		return nil
	}

	return s.leave(ctx)
}

// Close leaves all sessions and shuts the coordinator down.
//
// Subsequent Join calls fail with ErrCoordinatorClosed. Idempotent.
//
// Returns:
//   - error: First leave failure encountered, nil otherwise
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.leave(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Identity returns the local user identity the coordinator was created with.
func (c *Coordinator) Identity() Identity {
	return c.identity
}
