package roomkit

// Option configures a Coordinator with optional dependencies.
type Option func(*coordinatorOptions)

// coordinatorOptions holds optional Coordinator configuration.
type coordinatorOptions struct {
	logger  Logger
	metrics MetricsCollector
	hooks   *Hooks
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger and
//     the logging package's slog adapter)
//
// Returns:
//   - Option: Functional option for NewCoordinator
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	coord, err := roomkit.NewCoordinator(cfg, tr, leases, id, roomkit.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *coordinatorOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewCoordinator
//
// Example:
//
//	collector := metrics.NewPrometheus(nil, "myapp")
//	coord, err := roomkit.NewCoordinator(cfg, tr, leases, id, roomkit.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *coordinatorOptions) {
		o.metrics = metrics
	}
}

// WithHooks sets lifecycle event hooks.
//
// Hooks run in background goroutines so slow callbacks never block the
// session state machine.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewCoordinator
//
// Example:
//
//	hooks := &roomkit.Hooks{
//	    OnLockLost: func(ctx context.Context, entityType, entityID string) error {
//	        notifyUser(entityType, entityID)
//	        return nil
//	    },
//	}
//	coord, err := roomkit.NewCoordinator(cfg, tr, leases, id, roomkit.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *coordinatorOptions) {
		o.hooks = hooks
	}
}
