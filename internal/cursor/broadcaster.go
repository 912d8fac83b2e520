package cursor

import (
	"context"
	"sync"
	"time"

	"github.com/roomkit-io/roomkit/logging"
	"github.com/roomkit-io/roomkit/metrics"
	"github.com/roomkit-io/roomkit/types"
)

// SendFunc publishes the local user's cursor position to the room.
type SendFunc func(ctx context.Context, pos types.CursorPosition) error

// Broadcaster throttles outbound cursor positions and fans inbound ones out
// to subscribers.
//
// Outbound: at most one publish per minInterval; a position arriving inside
// the window is held and sent at the window's edge, newer positions replacing
// older held ones, so the final resting position is always delivered.
// Inbound: last-write-wins per user by position timestamp; subscriber
// channels are never blocked on, frames to a full subscriber are dropped and
// counted.
type Broadcaster struct {
	send        SendFunc
	minInterval time.Duration
	buffer      int
	logger      types.Logger
	metrics     types.MetricsCollector

	mu       sync.Mutex
	lastSent time.Time
	pending  *types.CursorPosition
	timer    *time.Timer
	latest   map[string]types.CursorUpdate
	subs     map[int]chan types.CursorUpdate
	nextID   int
	closed   bool
}

// NewBroadcaster creates a cursor broadcaster.
//
// Parameters:
//   - send: Function that publishes a position to the room
//   - minInterval: Minimum interval between outbound publishes
//   - buffer: Per-subscriber channel capacity
//   - logger: Logger (nil for nop)
//   - collector: Metrics collector (nil for nop)
//
// Returns:
//   - *Broadcaster: New broadcaster instance
func NewBroadcaster(send SendFunc, minInterval time.Duration, buffer int, logger types.Logger, collector types.MetricsCollector) *Broadcaster {
	if logger == nil {
		logger = logging.NewNop()
	}
	if collector == nil {
		collector = metrics.NewNop()
	}

	return &Broadcaster{
		send:        send,
		minInterval: minInterval,
		buffer:      buffer,
		logger:      logger,
		metrics:     collector,
		latest:      make(map[string]types.CursorUpdate),
		subs:        make(map[int]chan types.CursorUpdate),
	}
}

// Publish submits the local user's cursor position for broadcast.
//
// Returns immediately. Positions inside the throttle window replace any held
// position and are flushed at the window edge; intermediate positions are
// discarded, never queued.
func (b *Broadcaster) Publish(pos types.CursorPosition) {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return
	}

	now := time.Now()
	elapsed := now.Sub(b.lastSent)

	if elapsed >= b.minInterval {
		b.lastSent = now
		b.pending = nil
		b.mu.Unlock()

		b.deliver(pos)

		return
	}

	// Inside the window: hold the newest position and arm one trailing-edge
	// flush for the window boundary.
	replaced := b.pending != nil
	b.pending = &pos
	if b.timer == nil {
		b.timer = time.AfterFunc(b.minInterval-elapsed, b.flushPending)
	}
	b.mu.Unlock()

	if replaced {
		b.metrics.RecordCursorDropped("throttled")
	}
}

// flushPending sends the held position at the throttle window edge.
func (b *Broadcaster) flushPending() {
	b.mu.Lock()
	b.timer = nil

	if b.closed || b.pending == nil {
		b.mu.Unlock()
		return
	}

	pos := *b.pending
	b.pending = nil
	b.lastSent = time.Now()
	b.mu.Unlock()

	b.deliver(pos)
}

// deliver publishes one position; failures are logged, not surfaced.
func (b *Broadcaster) deliver(pos types.CursorPosition) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.send(ctx, pos); err != nil {
		b.logger.Debug("cursor publish failed", "error", err)
		b.metrics.RecordCursorDropped("publish_failed")
	}
}

// Receive merges an inbound cursor frame and fans it out.
//
// Frames older than the stored position for the same user are dropped
// (last-write-wins); delivery to subscribers never blocks.
func (b *Broadcaster) Receive(userID string, pos types.CursorPosition) {
	update := types.CursorUpdate{UserID: userID, Position: pos}

	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return
	}

	if prev, ok := b.latest[userID]; ok && prev.Position.Timestamp.After(pos.Timestamp) {
		b.mu.Unlock()
		b.metrics.RecordCursorDropped("stale")

		return
	}
	b.latest[userID] = update

	subs := make([]chan types.CursorUpdate, 0, len(b.subs))
	for _, ch := range b.subs {
		subs = append(subs, ch)
	}
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- update:
		default:
			b.metrics.RecordCursorDropped("slow_subscriber")
		}
	}
}

// Forget drops the stored position for a user, typically on leave.
func (b *Broadcaster) Forget(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.latest, userID)
}

// Stream returns a channel of cursor updates.
//
// The channel is primed with the latest known position per user so a new
// subscriber renders cursors without waiting for movement. The channel closes
// on unsubscribe or broadcaster close.
//
// Returns:
//   - <-chan types.CursorUpdate: Update stream
//   - types.Unsubscribe: Removes the subscription; safe to call more than once
func (b *Broadcaster) Stream() (<-chan types.CursorUpdate, types.Unsubscribe) {
	ch := make(chan types.CursorUpdate, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)

		return ch, func() {}
	}

	for _, update := range b.latest {
		select {
		case ch <- update:
		default:
		}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			_, ok := b.subs[id]
			delete(b.subs, id)
			b.mu.Unlock()

			if ok {
				close(ch)
			}
		})
	}

	return ch, unsub
}

// Close stops the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.pending = nil

	subs := b.subs
	b.subs = make(map[int]chan types.CursorUpdate)
	b.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}
