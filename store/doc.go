// Package store implements the state container: a single reactive state
// tree mutated only through declared mutations, asynchronous actions that
// may commit mutations and call external services, and memoized derived
// getters, all composed from a tree of modules.
//
// # Architecture
//
// The store routes every call through three global routing tables, rebuilt
// wholesale whenever the module tree changes shape:
//
//  1. Mutation table: type -> handlers, in registration order. Multiple
//     modules may share a mutation type; all handlers run.
//
//  2. Action table: type -> handlers. A single handler's result resolves the
//     dispatch directly; multiple handlers run concurrently and the dispatch
//     resolves with the ordered aggregate of their results.
//
//  3. Getter table: type -> one derived cell. Duplicate getter keys are a
//     fatal authoring error.
//
// # Module installation
//
// Installing a module computes its namespace from the chain of Namespaced
// flags on its path, attaches its state map onto the parent state under its
// key, and builds a local context: Commit and Dispatch closures that prefix
// the namespace onto unqualified types (unless the WithRoot call option is
// given) and always resolve through the global tables, plus lazy accessors
// for the module's state slice and namespace-scoped getters.
//
// # The committing scope
//
// The state tree is mutated only inside the committing scope: a single state
// lock held across every mutation handler run, state attachment and
// detachment, and ReplaceState, with a committing flag set while it is held.
// Getter evaluation and watcher notification take the same lock, so commits
// from concurrent dispatches serialize and no tracked evaluation overlaps a
// write. Watcher callbacks are queued during the write and delivered after
// the lock is released, so a callback may itself commit. In strict mode a
// deep watcher over the root state asserts the flag on every change; in dev
// mode the violation panics, in production it is logged. Strict mode costs a
// deep snapshot per commit and is meant for development.
//
// # Dispatch lifecycle
//
// Dispatch returns a Pending immediately. Before-subscribers run first,
// then every handler for the type runs in its own goroutine. When all
// settle, after-subscribers (on success) or error-subscribers (on the first
// handler error) run, and the Pending resolves or rejects. Subscriber
// callbacks are error-isolated: one panicking subscriber is logged and does
// not stop the others. Unknown mutation and action types are logged no-ops.
//
// # Dynamic modules
//
// RegisterModule installs a runtime module subtree and rebuilds the derived
// getter layer. UnregisterModule refuses construction-time modules, detaches
// the state key inside the committing scope, and rebuilds every routing
// table from scratch (the tables are global maps keyed by namespaced type
// strings with no per-module index). HotUpdate overlays new handler
// definitions onto existing modules and rebuilds tables and getters without
// touching state.
package store
