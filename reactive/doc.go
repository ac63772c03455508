// Package reactive provides the reactivity capability the store is built on:
// tracked value cells, lazily memoized derived cells, disposable effect
// scopes, and watchers.
//
// # Architecture
//
// The package is built around two roles:
//
//  1. Sources: a Ref (plain value cell) or a Computed (derived cell) that
//     observers can depend on. Reading a source inside a tracked evaluation
//     records it as a dependency.
//
//  2. Observers: a Computed or a Watcher. When any source an observer read
//     during its last evaluation changes, the observer is invalidated.
//
// A Computed is both: it observes the sources it reads and is itself a
// source for anything that reads it, so derived cells chain naturally.
//
// # Invalidation
//
// Computed cells are lazy. Invalidation only marks them dirty and propagates
// to their own observers; recomputation happens at most once per
// invalidation, on the next Get. Watchers re-evaluate synchronously inside
// the notification and fire their callback when the observed value changed
// (deep watchers compare against a deep-cloned snapshot, so in-place edits
// of maps and slices are detected when the holding cell is touched).
//
// # Concurrency
//
// Tracked evaluation (reading cells inside a Computed or Watcher) must be
// serialized by the caller; the store holds a single state lock around every
// evaluation and every notification. The dependency stack itself is
// mutex-guarded, so untracked reads (Ref.Get outside any evaluation) are
// safe from any goroutine. Observer registries are mutex-guarded and
// notification iterates a defensive copy, so subscriptions may be added or
// removed from other goroutines and an observer may detach itself
// mid-notification.
package reactive
