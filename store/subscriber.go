package store

import (
	"reflect"

	"github.com/dshills/fluxstore/module"
)

// Mutation describes a committed mutation to subscribers.
type Mutation struct {
	Type    string
	Payload any
}

// Action describes a dispatched action to subscribers. ID is unique per
// dispatch so concurrent actions of the same type can be told apart.
type Action struct {
	ID      string
	Type    string
	Payload any
}

// SubscribeFunc observes committed mutations. It is called synchronously
// after every handler for the mutation has run, with the post-mutation
// state.
type SubscribeFunc func(m Mutation, state module.StateMap)

// ActionHooks observes dispatched actions. Before runs ahead of the
// handlers; After runs when every handler resolved; Error runs when the
// dispatch rejected. Nil hooks are skipped.
type ActionHooks struct {
	Before func(a Action, state module.StateMap)
	After  func(a Action, state module.StateMap)
	Error  func(a Action, state module.StateMap, err error)
}

// BeforeHook wraps a plain before-observer into ActionHooks.
func BeforeHook(fn func(a Action, state module.StateMap)) ActionHooks {
	return ActionHooks{Before: fn}
}

type mutationSubscriber struct {
	key uintptr
	fn  SubscribeFunc
}

type actionSubscriber struct {
	key   [3]uintptr
	hooks ActionHooks
}

// fnPointer returns an identity key for a function value. Nil functions map
// to zero.
func fnPointer(v any) uintptr {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.IsNil() {
		return 0
	}
	return rv.Pointer()
}

// Subscribe registers a mutation observer. Subscribing the same function
// twice is a no-op. The returned unsubscribe is idempotent. WithPrepend
// inserts the observer ahead of existing ones.
func (s *Store) Subscribe(fn SubscribeFunc, opts ...SubscribeOption) func() {
	if fn == nil {
		return func() {}
	}
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	key := fnPointer(fn)
	s.subMu.Lock()
	exists := false
	for _, sub := range s.subs {
		if sub.key == key {
			exists = true
			break
		}
	}
	if !exists {
		sub := &mutationSubscriber{key: key, fn: fn}
		if cfg.prepend {
			s.subs = append([]*mutationSubscriber{sub}, s.subs...)
		} else {
			s.subs = append(s.subs, sub)
		}
	}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.key == key {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAction registers an action observer. Hook functions are
// deduplicated by identity, and the returned unsubscribe is idempotent.
func (s *Store) SubscribeAction(hooks ActionHooks, opts ...SubscribeOption) func() {
	if hooks.Before == nil && hooks.After == nil && hooks.Error == nil {
		return func() {}
	}
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	key := [3]uintptr{fnPointer(hooks.Before), fnPointer(hooks.After), fnPointer(hooks.Error)}
	s.subMu.Lock()
	exists := false
	for _, sub := range s.actionSubs {
		if sub.key == key {
			exists = true
			break
		}
	}
	if !exists {
		sub := &actionSubscriber{key: key, hooks: hooks}
		if cfg.prepend {
			s.actionSubs = append([]*actionSubscriber{sub}, s.actionSubs...)
		} else {
			s.actionSubs = append(s.actionSubs, sub)
		}
	}
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.actionSubs {
			if sub.key == key {
				s.actionSubs = append(s.actionSubs[:i], s.actionSubs[i+1:]...)
				return
			}
		}
	}
}

// snapshotSubs copies the mutation subscriber list so a subscriber
// unsubscribing itself mid-notification cannot corrupt the loop.
func (s *Store) snapshotSubs() []*mutationSubscriber {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]*mutationSubscriber, len(s.subs))
	copy(out, s.subs)
	return out
}

func (s *Store) snapshotActionSubs() []*actionSubscriber {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]*actionSubscriber, len(s.actionSubs))
	copy(out, s.actionSubs)
	return out
}
