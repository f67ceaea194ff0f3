package domain

import "time"

// EventKey is the dedupe key of a forwarded event
type EventKey struct {
	RoomID   string
	DateTime string
}

// ForwardedEntry records everything the relay sent because of one source message
type ForwardedEntry struct {
	SourceMessageID    string    `json:"source_message_id"`
	ChannelID          string    `json:"channel_id"` // Chat the source message came from
	ForwardedMessageID string    `json:"forwarded_message_id"`
	HelperMessageID    string    `json:"helper_message_id,omitempty"` // Empty when no helper note was sent
	RoomID             string    `json:"room_id"`
	DateTime           string    `json:"date_time"`
	CreatedAt          time.Time `json:"created_at"`
}

// Key returns the dedupe key of the entry
func (e *ForwardedEntry) Key() EventKey {
	return EventKey{RoomID: e.RoomID, DateTime: e.DateTime}
}

// Ledger is the bounded, ordered record of forwarded events.
// It is both the duplicate tracker and the retraction ledger.
// Ledger is not safe for concurrent use.
type Ledger struct {
	capacity int
	entries  []ForwardedEntry // Oldest first
	inflight map[EventKey]struct{}
}

// NewLedger creates a ledger holding at most capacity entries
func NewLedger(capacity int) *Ledger {
	if capacity < 1 {
		capacity = 1
	}
	return &Ledger{
		capacity: capacity,
		entries:  make([]ForwardedEntry, 0, capacity),
		inflight: make(map[EventKey]struct{}),
	}
}

// Capacity returns the configured capacity
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Len returns the number of live entries
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Contains checks if a live entry exists for the key
func (l *Ledger) Contains(key EventKey) bool {
	for i := range l.entries {
		if l.entries[i].Key() == key {
			return true
		}
	}
	return false
}

// Reserve claims the key for an in-flight forward.
// Returns false if the key is already live or claimed by another forward.
func (l *Ledger) Reserve(key EventKey) bool {
	if l.Contains(key) {
		return false
	}
	if _, busy := l.inflight[key]; busy {
		return false
	}
	l.inflight[key] = struct{}{}
	return true
}

// Release drops a reservation without recording anything
func (l *Ledger) Release(key EventKey) {
	delete(l.inflight, key)
}

// Commit appends an entry, clearing its reservation.
// Entries beyond capacity are evicted oldest first and returned.
func (l *Ledger) Commit(entry ForwardedEntry) []ForwardedEntry {
	key := entry.Key()
	delete(l.inflight, key)

	// Keep at most one live entry per key
	for i := range l.entries {
		if l.entries[i].Key() == key {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}

	l.entries = append(l.entries, entry)

	var evicted []ForwardedEntry
	if over := len(l.entries) - l.capacity; over > 0 {
		evicted = append(evicted, l.entries[:over]...)
		l.entries = append(l.entries[:0], l.entries[over:]...)
	}
	return evicted
}

// TakeBySource removes and returns the entry created for a source message
func (l *Ledger) TakeBySource(sourceMessageID string) (ForwardedEntry, bool) {
	for i := range l.entries {
		if l.entries[i].SourceMessageID == sourceMessageID {
			entry := l.entries[i]
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return entry, true
		}
	}
	return ForwardedEntry{}, false
}

// Entries returns a copy of the live entries, oldest first
func (l *Ledger) Entries() []ForwardedEntry {
	out := make([]ForwardedEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// PendingWarning links a source message to the duplicate notice sent for it
type PendingWarning struct {
	SourceMessageID  string
	WarningMessageID string
	ChannelID        string
}

// WarningBook is a bounded FIFO mapping of source message id to duplicate notice.
// WarningBook is not safe for concurrent use.
type WarningBook struct {
	capacity int
	order    []string
	items    map[string]PendingWarning
}

// NewWarningBook creates a warning book holding at most capacity notices
func NewWarningBook(capacity int) *WarningBook {
	if capacity < 1 {
		capacity = 1
	}
	return &WarningBook{
		capacity: capacity,
		items:    make(map[string]PendingWarning),
	}
}

// Len returns the number of tracked notices
func (b *WarningBook) Len() int {
	return len(b.order)
}

// Put records a notice; the oldest notices beyond capacity are evicted and returned
func (b *WarningBook) Put(w PendingWarning) []PendingWarning {
	if _, exists := b.items[w.SourceMessageID]; exists {
		b.items[w.SourceMessageID] = w
		return nil
	}
	b.items[w.SourceMessageID] = w
	b.order = append(b.order, w.SourceMessageID)

	var evicted []PendingWarning
	for len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		evicted = append(evicted, b.items[oldest])
		delete(b.items, oldest)
	}
	return evicted
}

// Take removes and returns the notice recorded for a source message
func (b *WarningBook) Take(sourceMessageID string) (PendingWarning, bool) {
	w, ok := b.items[sourceMessageID]
	if !ok {
		return PendingWarning{}, false
	}
	delete(b.items, sourceMessageID)
	for i, id := range b.order {
		if id == sourceMessageID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return w, true
}
