package devtools

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/fluxstore/module"
	"github.com/dshills/fluxstore/store"
)

// Kind classifies a timeline event.
type Kind string

// Timeline event kinds.
const (
	KindMutation    Kind = "mutation"
	KindActionStart Kind = "action.start"
	KindActionEnd   Kind = "action.end"
	KindActionError Kind = "action.error"
)

// Event is one entry on the bridge's timeline. Mutation events get a fresh
// ID per commit. Action events reuse the dispatch ID, so an action's start
// and settle entries correlate.
type Event struct {
	ID       string
	Kind     Kind
	Type     string
	Payload  any
	At       time.Time
	Duration time.Duration
	Err      string
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLimit caps the timeline length. Once full, the oldest events are
// dropped. Zero means unbounded.
func WithLimit(n int) Option {
	return func(b *Bridge) { b.limit = n }
}

// Bridge observes a store and exposes its timeline and snapshots.
type Bridge struct {
	store *store.Store
	limit int

	mu      sync.Mutex
	events  []Event
	started map[string]time.Time
	stops   []func()
}

// Attach wires a bridge to the store. The bridge subscribes with prepend so
// it observes every mutation and action before user subscribers do.
func Attach(s *store.Store, opts ...Option) *Bridge {
	b := &Bridge{
		store:   s,
		started: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(b)
	}

	unsubMut := s.Subscribe(func(m store.Mutation, _ module.StateMap) {
		b.record(Event{
			ID:      uuid.NewString(),
			Kind:    KindMutation,
			Type:    m.Type,
			Payload: m.Payload,
			At:      time.Now(),
		})
	}, store.WithPrepend())

	unsubAct := s.SubscribeAction(store.ActionHooks{
		Before: func(a store.Action, _ module.StateMap) {
			now := time.Now()
			b.mu.Lock()
			b.started[a.ID] = now
			b.mu.Unlock()
			b.record(Event{ID: a.ID, Kind: KindActionStart, Type: a.Type, Payload: a.Payload, At: now})
		},
		After: func(a store.Action, _ module.StateMap) {
			b.settle(a, KindActionEnd, "")
		},
		Error: func(a store.Action, _ module.StateMap, err error) {
			b.settle(a, KindActionError, err.Error())
		},
	}, store.WithPrepend())

	b.stops = []func(){unsubMut, unsubAct}
	return b
}

// Detach unsubscribes the bridge from the store. The recorded timeline
// remains readable.
func (b *Bridge) Detach() {
	for _, stop := range b.stops {
		stop()
	}
}

// Events returns a copy of the timeline in recording order.
func (b *Bridge) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Clear drops the recorded timeline.
func (b *Bridge) Clear() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

func (b *Bridge) record(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	if b.limit > 0 && len(b.events) > b.limit {
		b.events = b.events[len(b.events)-b.limit:]
	}
}

func (b *Bridge) settle(a store.Action, kind Kind, errMsg string) {
	now := time.Now()
	b.mu.Lock()
	start, ok := b.started[a.ID]
	delete(b.started, a.ID)
	b.mu.Unlock()

	e := Event{ID: a.ID, Kind: kind, Type: a.Type, Payload: a.Payload, At: now, Err: errMsg}
	if ok {
		e.Duration = now.Sub(start)
	}
	b.record(e)
}
