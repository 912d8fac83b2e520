package editlog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roomkit-io/roomkit/types"
)

// entityLog holds one entity's ordered records plus the dedup indexes.
type entityLog struct {
	records []types.EditRecord
	byID    map[string]struct{}
	bySeq   map[uint64]struct{}
}

// Log is the in-memory edit history for one room, partitioned by entity.
//
// Records are ordered by their authoritative sequence; unsequenced local
// records (Sequence zero) rank after all sequenced ones, tie-broken by
// timestamp then ID. Both Append and ApplyRemote are idempotent, so replays
// from an at-least-once transport leave the log unchanged.
type Log struct {
	mu       sync.RWMutex
	byEntity map[string]*entityLog
}

// NewLog creates an empty edit log.
func NewLog() *Log {
	return &Log{
		byEntity: make(map[string]*entityLog),
	}
}

// Append adds a locally-authored record to the log.
//
// The record may be unsequenced (Sequence zero); SetSequence promotes it once
// the broadcast is acknowledged. Appending a record whose ID is already
// present is a no-op.
//
// Parameters:
//   - rec: Record to append
//
// Returns:
//   - error: Validation error for records missing an ID, entity or author
func (l *Log) Append(rec types.EditRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid edit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.insert(rec)

	return nil
}

// ApplyRemote merges a broadcast record into the log.
//
// Idempotent in both dimensions a lossy broker can violate: a record whose ID
// is already present only promotes the stored copy's sequence (the author's
// own echo), and a sequence already applied for the entity is dropped.
// Out-of-order arrivals are inserted at their sequence position.
//
// Parameters:
//   - rec: Broadcast record, normally sequenced
//
// Returns:
//   - error: Validation error, nil for duplicates
func (l *Log) ApplyRemote(rec types.EditRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid edit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.byEntity[rec.EntityKey()]
	if ok {
		if _, seen := el.byID[rec.ID]; seen {
			// The author's own echo: promote the pending copy's sequence.
			l.promoteLocked(el, rec.ID, rec.Sequence)

			return nil
		}
		if rec.Sequence > 0 {
			if _, seen := el.bySeq[rec.Sequence]; seen {
				return nil
			}
		}
	}

	l.insert(rec)

	return nil
}

// SetSequence promotes a pending local record once its broadcast is
// acknowledged with an authoritative sequence.
//
// A no-op when the record is unknown or already sequenced.
func (l *Log) SetSequence(entityType, entityID, recordID string, seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	el, ok := l.byEntity[types.EntityKey(entityType, entityID)]
	if !ok {
		return
	}

	l.promoteLocked(el, recordID, seq)
}

// History returns the ordered edit history for an entity.
//
// The returned slice is a copy; records are in sequence order with pending
// local records at the tail.
func (l *Log) History(entityType, entityID string) []types.EditRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	el, ok := l.byEntity[types.EntityKey(entityType, entityID)]
	if !ok {
		return nil
	}

	out := make([]types.EditRecord, len(el.records))
	copy(out, el.records)

	return out
}

// Pending returns all unsequenced local records across entities.
//
// Used after a reconnection to decide which local edits never reached the
// ordering authority.
func (l *Log) Pending() []types.EditRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var pending []types.EditRecord
	for _, el := range l.byEntity {
		for _, rec := range el.records {
			if rec.Sequence == 0 {
				pending = append(pending, rec)
			}
		}
	}

	return pending
}

// Len returns the number of records stored for an entity.
func (l *Log) Len(entityType, entityID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	el, ok := l.byEntity[types.EntityKey(entityType, entityID)]
	if !ok {
		return 0
	}

	return len(el.records)
}

// insert places a record at its ordered position. Caller holds the lock.
func (l *Log) insert(rec types.EditRecord) {
	key := rec.EntityKey()

	el, ok := l.byEntity[key]
	if !ok {
		el = &entityLog{
			byID:  make(map[string]struct{}),
			bySeq: make(map[uint64]struct{}),
		}
		l.byEntity[key] = el
	}

	if _, seen := el.byID[rec.ID]; seen {
		return
	}

	el.records = append(el.records, rec)
	el.byID[rec.ID] = struct{}{}
	if rec.Sequence > 0 {
		el.bySeq[rec.Sequence] = struct{}{}
	}

	sortRecords(el.records)
}

// promoteLocked assigns a sequence to a stored pending record and restores
// order. Caller holds the lock.
func (l *Log) promoteLocked(el *entityLog, recordID string, seq uint64) {
	if seq == 0 {
		return
	}

	for i := range el.records {
		if el.records[i].ID != recordID {
			continue
		}
		if el.records[i].Sequence != 0 {
			return
		}

		el.records[i].Sequence = seq
		el.bySeq[seq] = struct{}{}
		sortRecords(el.records)

		return
	}
}

// sortRecords orders records by sequence, pending records last.
func sortRecords(records []types.EditRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]

		switch {
		case a.Sequence == 0 && b.Sequence == 0:
			if !a.Timestamp.Equal(b.Timestamp) {
				return a.Timestamp.Before(b.Timestamp)
			}

			return a.ID < b.ID
		case a.Sequence == 0:
			return false
		case b.Sequence == 0:
			return true
		default:
			return a.Sequence < b.Sequence
		}
	})
}
