package logging

import "github.com/roomkit-io/roomkit/types"

// NopLogger discards all log output.
//
// Used as the default when no logger is configured, so components never
// nil-check their logger.
type NopLogger struct{}

// Compile-time assertion that NopLogger implements Logger.
var _ types.Logger = (*NopLogger)(nil)

// NewNop creates a new no-op logger.
//
// Returns:
//   - *NopLogger: A logger instance that discards everything
func NewNop() *NopLogger {
	return &NopLogger{}
}

// Debug discards the message.
func (*NopLogger) Debug(_ string, _ ...any) {}

// Info discards the message.
func (*NopLogger) Info(_ string, _ ...any) {}

// Warn discards the message.
func (*NopLogger) Warn(_ string, _ ...any) {}

// Error discards the message.
func (*NopLogger) Error(_ string, _ ...any) {}

// Fatal discards the message without exiting; a nop logger must not terminate
// the host process.
func (*NopLogger) Fatal(_ string, _ ...any) {}
