package roomkit

import (
	"fmt"
	"time"
)

// Config is the configuration for the Coordinator.
//
// All duration fields accept standard Go duration strings like "30s", "5m".
type Config struct {
	// HeartbeatInterval is how often the local presence record is republished.
	// Shorter intervals detect disconnects faster but increase room traffic.
	// Recommended: 15-30 seconds.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// StalenessMultiplier sets the presence staleness threshold as a multiple
	// of HeartbeatInterval. A record whose lastSeen exceeds
	// HeartbeatInterval*StalenessMultiplier is treated as offline even without
	// a leave event. Values of 2-3 absorb normal network jitter while still
	// detecting true disconnects promptly.
	// Recommended: 2.5.
	StalenessMultiplier float64 `yaml:"stalenessMultiplier"`

	// LockLease is how long an acquired lock remains valid without renewal.
	// Bounds the damage of a crashed editor to one lease period.
	// Recommended: 30 seconds.
	LockLease time.Duration `yaml:"lockLease"`

	// LockRenewInterval is how often a held lock's lease is extended.
	// Must be well under LockLease so a single missed renewal is survivable.
	// Default: 0 (auto-calculated as LockLease/3).
	LockRenewInterval time.Duration `yaml:"lockRenewInterval"`

	// CursorMinInterval is the minimum interval between outbound cursor
	// publishes. 40ms bounds cursor traffic to ~25 updates/second.
	CursorMinInterval time.Duration `yaml:"cursorMinInterval"`

	// CursorBuffer is the per-subscriber cursor stream channel capacity.
	// A subscriber that falls further behind drops frames.
	CursorBuffer int `yaml:"cursorBuffer"`

	// BroadcastMaxRetries is how many times an edit broadcast is retried
	// before CommitEdit gives up with ErrBroadcastFailed.
	BroadcastMaxRetries uint64 `yaml:"broadcastMaxRetries"`

	// BroadcastBaseBackoff is the initial backoff between broadcast retries.
	BroadcastBaseBackoff time.Duration `yaml:"broadcastBaseBackoff"`

	// ResyncMaxRetries is how many resync attempts are made after a
	// reconnect before the session reports resync failure.
	ResyncMaxRetries uint64 `yaml:"resyncMaxRetries"`

	// ResyncBaseBackoff is the initial backoff between resync attempts.
	ResyncBaseBackoff time.Duration `yaml:"resyncBaseBackoff"`

	// JoinTimeout is the maximum time to wait for a join to complete,
	// including room subscription and the initial presence announcement.
	JoinTimeout time.Duration `yaml:"joinTimeout"`

	// OperationTimeout is the timeout for individual store and publish
	// round trips performed by background loops.
	OperationTimeout time.Duration `yaml:"operationTimeout"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval:    20 * time.Second,
		StalenessMultiplier:  2.5,
		LockLease:            30 * time.Second,
		LockRenewInterval:    0, // auto: LockLease/3
		CursorMinInterval:    40 * time.Millisecond,
		CursorBuffer:         16,
		BroadcastMaxRetries:  5,
		BroadcastBaseBackoff: 100 * time.Millisecond,
		ResyncMaxRetries:     5,
		ResyncBaseBackoff:    250 * time.Millisecond,
		JoinTimeout:          15 * time.Second,
		OperationTimeout:     10 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.StalenessMultiplier == 0 {
		cfg.StalenessMultiplier = defaults.StalenessMultiplier
	}
	if cfg.LockLease == 0 {
		cfg.LockLease = defaults.LockLease
	}
	if cfg.LockRenewInterval == 0 {
		// One missed renewal still leaves two renewal periods of lease.
		cfg.LockRenewInterval = cfg.LockLease / 3
	}
	if cfg.CursorMinInterval == 0 {
		cfg.CursorMinInterval = defaults.CursorMinInterval
	}
	if cfg.CursorBuffer == 0 {
		cfg.CursorBuffer = defaults.CursorBuffer
	}
	if cfg.BroadcastMaxRetries == 0 {
		cfg.BroadcastMaxRetries = defaults.BroadcastMaxRetries
	}
	if cfg.BroadcastBaseBackoff == 0 {
		cfg.BroadcastBaseBackoff = defaults.BroadcastBaseBackoff
	}
	if cfg.ResyncMaxRetries == 0 {
		cfg.ResyncMaxRetries = defaults.ResyncMaxRetries
	}
	if cfg.ResyncBaseBackoff == 0 {
		cfg.ResyncBaseBackoff = defaults.ResyncBaseBackoff
	}
	if cfg.JoinTimeout == 0 {
		cfg.JoinTimeout = defaults.JoinTimeout
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
}

// Validate checks configuration constraints and returns an error for invalid
// values.
//
// Hard Validation Rules:
//   - HeartbeatInterval > 0
//   - StalenessMultiplier >= 2 (one missed heartbeat must not evict)
//   - LockLease >= 3*LockRenewInterval (renewal must fit the lease)
//   - CursorMinInterval > 0 (unthrottled cursors flood the room)
//   - CursorBuffer > 0
//   - JoinTimeout > 0 and OperationTimeout > 0
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("HeartbeatInterval must be > 0, got %v", cfg.HeartbeatInterval)
	}

	if cfg.StalenessMultiplier < 2 {
		return fmt.Errorf(
			"StalenessMultiplier (%v) must be >= 2 so a single missed heartbeat does not evict a live collaborator",
			cfg.StalenessMultiplier,
		)
	}

	if cfg.LockLease < 3*cfg.LockRenewInterval {
		return fmt.Errorf(
			"LockLease (%v) must be >= 3*LockRenewInterval (%v) so a missed renewal is survivable",
			cfg.LockLease, cfg.LockRenewInterval,
		)
	}

	if cfg.LockRenewInterval <= 0 {
		return fmt.Errorf("LockRenewInterval must be > 0, got %v", cfg.LockRenewInterval)
	}

	if cfg.CursorMinInterval <= 0 {
		return fmt.Errorf("CursorMinInterval must be > 0, got %v", cfg.CursorMinInterval)
	}

	if cfg.CursorBuffer <= 0 {
		return fmt.Errorf("CursorBuffer must be > 0, got %v", cfg.CursorBuffer)
	}

	if cfg.JoinTimeout <= 0 {
		return fmt.Errorf("JoinTimeout must be > 0, got %v", cfg.JoinTimeout)
	}

	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OperationTimeout must be > 0, got %v", cfg.OperationTimeout)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for
// non-recommended values.
//
// Called after Validate() in NewCoordinator() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.HeartbeatInterval < 5*time.Second {
		logger.Warn(
			"HeartbeatInterval is very short, presence traffic may be excessive",
			"heartbeatInterval", cfg.HeartbeatInterval,
			"recommended", "15s or higher",
		)
	}

	if cfg.LockLease < 2*cfg.HeartbeatInterval {
		logger.Warn(
			"LockLease is below the heartbeat window, locks may expire while the holder is still live",
			"lockLease", cfg.LockLease,
			"heartbeatInterval", cfg.HeartbeatInterval,
			"recommended", 2*cfg.HeartbeatInterval,
		)
	}

	if cfg.CursorMinInterval < 20*time.Millisecond {
		logger.Warn(
			"CursorMinInterval allows more than 50 updates/second",
			"cursorMinInterval", cfg.CursorMinInterval,
			"recommended", "40ms",
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 10-100x faster than production defaults to enable rapid
// iteration without sacrificing test coverage. Use DefaultConfig() for
// production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := roomkit.TestConfig()
//	coord, err := roomkit.NewCoordinator(cfg, transport, leases, identity)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.HeartbeatInterval = 100 * time.Millisecond
	cfg.LockLease = 600 * time.Millisecond
	cfg.LockRenewInterval = 200 * time.Millisecond
	cfg.CursorMinInterval = 5 * time.Millisecond
	cfg.BroadcastBaseBackoff = 10 * time.Millisecond
	cfg.ResyncBaseBackoff = 10 * time.Millisecond
	cfg.JoinTimeout = 5 * time.Second
	cfg.OperationTimeout = 5 * time.Second

	return cfg
}
