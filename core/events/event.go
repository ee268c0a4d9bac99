package events

import "sync"

// Event represents a structured state change emitted by the sale ledger.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a deep copy so subscribers can safely retain the event.
func (e Event) Clone() Event {
	clone := Event{Type: e.Type}
	if e.Attributes != nil {
		clone.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			clone.Attributes[k] = v
		}
	}
	return clone
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, audit log).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Ring retains the most recent events in a fixed-size buffer so callers can
// replay the audit trail without unbounded growth.
type Ring struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	total int
}

// NewRing constructs a ring buffer holding up to capacity events.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]Event, capacity)}
}

// Emit records the event, evicting the oldest entry once full.
func (r *Ring) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e.Clone()
	r.next = (r.next + 1) % len(r.buf)
	if r.total < len(r.buf) {
		r.total++
	}
}

// Events returns the retained events oldest first.
func (r *Ring) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, r.total)
	start := r.next - r.total
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.total; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)].Clone())
	}
	return out
}

// Fanout emits every event to each of the supplied emitters in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(e Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(e)
		}
	}
}
