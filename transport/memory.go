package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/roomkit-io/roomkit/types"
)

// memorySub is one registered handler with its delivery queue.
type memorySub struct {
	roomID    string
	eventType types.EventType
	ch        chan []byte
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// Memory is an in-process Transport for tests and examples.
//
// Events round-trip through the wire envelope (encode on publish, decode per
// subscriber) so the memory transport exercises the same validation path as a
// networked backend. Each subscriber gets its own buffered queue and delivery
// goroutine, mirroring the async delivery of a real broker. SetStatus
// simulates connectivity transitions for degraded-mode tests.
type Memory struct {
	mu         sync.Mutex
	subs       map[int]*memorySub
	nextSubID  int
	rooms      map[string]struct{}
	editSeq    map[string]uint64
	status     types.ConnStatus
	statusSubs map[int]func(types.ConnStatus)
	nextStatID int
	closed     bool
}

// NewMemory creates an in-process transport hub.
//
// All clients sharing the same Memory instance see each other's events.
func NewMemory() *Memory {
	return &Memory{
		subs:       make(map[int]*memorySub),
		rooms:      make(map[string]struct{}),
		editSeq:    make(map[string]uint64),
		status:     types.StatusConnected,
		statusSubs: make(map[int]func(types.ConnStatus)),
	}
}

// JoinRoom implements types.Transport.
func (m *Memory) JoinRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return types.ErrNotConnected
	}

	m.rooms[roomID] = struct{}{}

	return nil
}

// LeaveRoom implements types.Transport.
//
// Only the membership mark is dropped. Subscriptions belong to whoever
// created them and are torn down through their own Unsubscribe; with several
// clients sharing one hub, one client leaving must not silence the others.
func (m *Memory) LeaveRoom(_ context.Context, roomID string) error {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()

	return nil
}

// Publish implements types.Transport.
//
// Fails with ErrNotConnected while the simulated connection is down.
func (m *Memory) Publish(_ context.Context, roomID string, ev types.Event) error {
	data, err := types.EncodeEvent(roomID, ev)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed || m.status != types.StatusConnected {
		m.mu.Unlock()
		return types.ErrNotConnected
	}

	targets := make([]*memorySub, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.roomID == roomID && sub.eventType == ev.Type() {
			targets = append(targets, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- data:
		case <-sub.stopCh:
		}
	}

	return nil
}

// PublishEdit implements types.Transport.
//
// The memory ordering authority is a per-room counter; sequences are assigned
// in publish order and are unique within the room.
func (m *Memory) PublishEdit(_ context.Context, roomID string, rec types.EditRecord) (uint64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.status != types.StatusConnected {
		return 0, types.ErrNotConnected
	}

	m.editSeq[roomID]++

	return m.editSeq[roomID], nil
}

// Subscribe implements types.Transport.
func (m *Memory) Subscribe(roomID string, eventType types.EventType, handler types.EventHandler) (types.Unsubscribe, error) {
	sub := &memorySub{
		roomID:    roomID,
		eventType: eventType,
		ch:        make(chan []byte, 64),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, types.ErrNotConnected
	}
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = sub
	m.mu.Unlock()

	go sub.pump(handler)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			sub.stop()
		})
	}

	return unsub, nil
}

// Status implements types.Transport.
func (m *Memory) Status() types.ConnStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

// OnStatusChange implements types.Transport.
func (m *Memory) OnStatusChange(fn func(types.ConnStatus)) types.Unsubscribe {
	m.mu.Lock()
	id := m.nextStatID
	m.nextStatID++
	m.statusSubs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.statusSubs, id)
		m.mu.Unlock()
	}
}

// SetStatus simulates a connectivity transition.
//
// While not connected, Publish and PublishEdit fail with ErrNotConnected.
// Status listeners are invoked synchronously in registration-independent
// order.
func (m *Memory) SetStatus(status types.ConnStatus) {
	m.mu.Lock()
	if m.status == status {
		m.mu.Unlock()
		return
	}
	m.status = status

	listeners := make([]func(types.ConnStatus), 0, len(m.statusSubs))
	for _, fn := range m.statusSubs {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

// Close shuts down the hub and all delivery goroutines.
func (m *Memory) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true

	subs := make([]*memorySub, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subs = make(map[int]*memorySub)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

// pump decodes queued envelopes and invokes the handler until stopped.
func (s *memorySub) pump(handler types.EventHandler) {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case data := <-s.ch:
			_, ev, err := types.DecodeEvent(data)
			if err != nil {
				continue
			}
			handler(ev)
		}
	}
}

// stop terminates the pump goroutine and waits for it to exit. Safe to call
// more than once; Close and a deferred Unsubscribe may both reach it.
func (s *memorySub) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// MemoryLeases is an in-process LeaseStore for tests and examples.
//
// Revisions are globally monotonic. Entries never expire on their own; expiry
// lives in the stored lease value and is enforced by readers, matching the
// contract a TTL-less store must satisfy.
type MemoryLeases struct {
	mu      sync.Mutex
	entries map[string]leaseEntry
	nextRev uint64
}

type leaseEntry struct {
	value    []byte
	revision uint64
}

// NewMemoryLeases creates an in-process lease store.
func NewMemoryLeases() *MemoryLeases {
	return &MemoryLeases{
		entries: make(map[string]leaseEntry),
	}
}

// Create implements types.LeaseStore.
func (s *MemoryLeases) Create(_ context.Context, key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		return 0, fmt.Errorf("%w: %s", types.ErrLeaseExists, key)
	}

	s.nextRev++
	s.entries[key] = leaseEntry{value: append([]byte(nil), value...), revision: s.nextRev}

	return s.nextRev, nil
}

// Get implements types.LeaseStore.
func (s *MemoryLeases) Get(_ context.Context, key string) ([]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", types.ErrLeaseNotFound, key)
	}

	return append([]byte(nil), entry.value...), entry.revision, nil
}

// Update implements types.LeaseStore.
func (s *MemoryLeases) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrLeaseNotFound, key)
	}
	if entry.revision != revision {
		return 0, fmt.Errorf("%w: %s: expected revision %d, have %d",
			types.ErrLeaseConflict, key, revision, entry.revision)
	}

	s.nextRev++
	s.entries[key] = leaseEntry{value: append([]byte(nil), value...), revision: s.nextRev}

	return s.nextRev, nil
}

// Delete implements types.LeaseStore.
func (s *MemoryLeases) Delete(_ context.Context, key string, revision uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	if revision != 0 && entry.revision != revision {
		return fmt.Errorf("%w: %s: expected revision %d, have %d",
			types.ErrLeaseConflict, key, revision, entry.revision)
	}

	delete(s.entries, key)

	return nil
}
