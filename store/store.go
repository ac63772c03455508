package store

import (
	"fmt"
	"log"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/fluxstore/module"
	"github.com/dshills/fluxstore/reactive"
)

// Store is the façade over the module tree: it owns the root reactive state,
// the routing tables, and the subscriber lists.
type Store struct {
	logger  *log.Logger
	devMode bool
	strict  bool

	modules *module.Collection

	// Routing tables, global to the store and rebuilt wholesale on any
	// tree-shape change.
	mutations      map[string][]wrappedMutation
	actions        map[string][]wrappedAction
	getterFns      map[string]registeredGetter
	namespaceIndex map[string]*module.Module

	// Derived-value layer, rebuilt by resetStoreState.
	rootRef  *reactive.Ref
	scope    *reactive.Scope
	computed map[string]*reactive.Computed

	localGettersMu sync.Mutex
	localGetters   map[string][]string

	subMu      sync.Mutex
	subs       []*mutationSubscriber
	actionSubs []*actionSubscriber

	// writeMu serializes every sanctioned state write and every tracked
	// evaluation: mutation handler runs, getter reads, watcher setup and
	// notification. The committing flag is set while a write is sanctioned;
	// watchQueue collects watcher callbacks raised during a write, delivered
	// after the lock is released so a callback may itself commit.
	writeMu    sync.Mutex
	committing bool
	watchQueue []func()

	// Dev-mode checkpoint of the last sanctioned state, used with strict
	// mode to catch in-place writes that bypassed commit entirely.
	strictSnapshot any
}

// New builds a store from the root module configuration, installs the whole
// tree, builds the derived getter layer, and runs plugins.
func New(rootCfg *module.Config, opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Store{
		logger:         cfg.logger,
		devMode:        cfg.devMode,
		strict:         cfg.strict,
		mutations:      make(map[string][]wrappedMutation),
		actions:        make(map[string][]wrappedAction),
		getterFns:      make(map[string]registeredGetter),
		namespaceIndex: make(map[string]*module.Module),
		localGetters:   make(map[string][]string),
	}

	coll, err := module.NewCollection(rootCfg, cfg.devMode, cfg.logger)
	if err != nil {
		return nil, err
	}
	s.modules = coll

	state := coll.Root().State()
	var installErr error
	s.withCommit(func() {
		installErr = s.installModule(state, nil, coll.Root(), false)
	})
	if err := s.handleAuthoringError(installErr); err != nil {
		return nil, err
	}
	s.resetStoreState(state)

	for _, plugin := range cfg.plugins {
		if plugin != nil {
			plugin(s)
		}
	}
	return s, nil
}

// State returns the root state map.
func (s *Store) State() module.StateMap {
	var st module.StateMap
	s.withEval(func() { st = s.rootState() })
	return st
}

// rootState reads the root map without taking the state lock. Reads inside
// getters and watchers are dependency-tracked.
func (s *Store) rootState() module.StateMap {
	st, _ := s.rootRef.Get().(module.StateMap)
	return st
}

// Getter returns the current value of the getter registered under typ, or
// nil if no such getter exists. Values are memoized and recomputed after
// state changes.
func (s *Store) Getter(typ string) any {
	var v any
	s.withEval(func() { v = s.getterValue(typ) })
	return v
}

// getterValue evaluates one derived cell. Caller holds the state lock, or is
// itself running inside a locked evaluation.
func (s *Store) getterValue(typ string) any {
	c, ok := s.computed[typ]
	if !ok {
		return nil
	}
	return c.Get()
}

// HasGetter reports whether a getter is registered under typ.
func (s *Store) HasGetter(typ string) bool {
	var ok bool
	s.withEval(func() { _, ok = s.computed[typ] })
	return ok
}

// GetterKeys lists every registered getter key, sorted.
func (s *Store) GetterKeys() []string {
	var keys []string
	s.withEval(func() { keys = s.getterKeys() })
	return keys
}

func (s *Store) getterKeys() []string {
	keys := make([]string, 0, len(s.computed))
	for k := range s.computed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Getters returns the unscoped getter view.
func (s *Store) Getters() module.GetterReader {
	return rootGetters{s: s}
}

// Commit runs every handler registered under typ, in registration order,
// inside the committing scope, then notifies mutation subscribers
// synchronously. Commits from concurrent dispatches serialize on the state
// lock. An unknown type is a logged no-op.
func (s *Store) Commit(typ string, payload any, opts ...CallOption) {
	_ = module.ApplyCallOptions(opts) // Root has no effect at the store surface.

	known := false
	var state module.StateMap
	s.withCommit(func() {
		entries := s.mutations[typ]
		if len(entries) == 0 {
			return
		}
		known = true
		s.checkExternalWrites()
		for _, entry := range entries {
			entry(payload)
		}
		s.rootRef.Touch()
		s.markSanctioned()
		state = s.rootState()
	})
	if !known {
		s.logger.Printf("fluxstore: unknown mutation type %q", typ)
		return
	}

	m := Mutation{Type: typ, Payload: payload}
	for _, sub := range s.snapshotSubs() {
		s.safely("mutation subscriber", func() { sub.fn(m, state) })
	}
}

// Dispatch runs every action handler registered under typ and returns the
// pending result. A single handler's result resolves the dispatch directly;
// multiple handlers run concurrently and the dispatch resolves with the
// ordered aggregate of their results once all complete, or rejects with the
// first handler's error. An unknown type logs and resolves to nil.
func (s *Store) Dispatch(typ string, payload any, opts ...CallOption) *Pending {
	_ = module.ApplyCallOptions(opts)

	var entries []wrappedAction
	var state module.StateMap
	s.withEval(func() {
		entries = s.actions[typ]
		state = s.rootState()
	})
	if len(entries) == 0 {
		s.logger.Printf("fluxstore: unknown action type %q", typ)
		return resolvedPending(nil)
	}

	act := Action{ID: uuid.NewString(), Type: typ, Payload: payload}

	for _, sub := range s.snapshotActionSubs() {
		if sub.hooks.Before != nil {
			s.safely("action before subscriber", func() { sub.hooks.Before(act, state) })
		}
	}

	p := newPending()
	if len(entries) == 1 {
		handler := entries[0]
		go func() {
			res, err := s.runAction(handler, payload)
			s.finishDispatch(p, act, res, err)
		}()
		return p
	}

	go func() {
		results := make([]any, len(entries))
		errs := make([]error, len(entries))
		var wg sync.WaitGroup
		for i, handler := range entries {
			wg.Add(1)
			go func(i int, handler wrappedAction) {
				defer wg.Done()
				results[i], errs[i] = s.runAction(handler, payload)
			}(i, handler)
		}
		wg.Wait()

		var firstErr error
		for _, err := range errs {
			if err != nil {
				firstErr = err
				break
			}
		}
		s.finishDispatch(p, act, results, firstErr)
	}()
	return p
}

// runAction executes one wrapped handler with panic recovery, so a
// panicking handler rejects its dispatch instead of crashing the process.
func (s *Store) runAction(handler wrappedAction, payload any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanic, r)
		}
	}()
	return handler(payload)
}

func (s *Store) finishDispatch(p *Pending, act Action, res any, err error) {
	var state module.StateMap
	s.withEval(func() { state = s.rootState() })
	if err != nil {
		for _, sub := range s.snapshotActionSubs() {
			if sub.hooks.Error != nil {
				s.safely("action error subscriber", func() { sub.hooks.Error(act, state, err) })
			}
		}
		p.reject(err)
		return
	}
	for _, sub := range s.snapshotActionSubs() {
		if sub.hooks.After != nil {
			s.safely("action after subscriber", func() { sub.hooks.After(act, state) })
		}
	}
	p.resolve(res)
}

// Watch observes getter(state, getters) and calls cb when its value changes.
// Watchers survive module registration and hot updates: they re-resolve the
// current state on every evaluation. Callbacks are delivered after the
// triggering write releases the state lock, so a callback may itself commit.
// Returns a stop function.
func (s *Store) Watch(
	getter func(state module.StateMap, getters module.GetterReader) any,
	cb func(newVal, oldVal any),
	opts ...reactive.WatchOption,
) func() {
	var w *reactive.Watcher
	s.withEval(func() {
		w = reactive.NewWatcher(func() any {
			return getter(s.rootState(), rootGetters{s: s, eval: true})
		}, func(newVal, oldVal any) {
			s.watchQueue = append(s.watchQueue, func() { cb(newVal, oldVal) })
		}, opts...)
	})
	return func() { s.withEval(w.Stop) }
}

// ReplaceState swaps the root state wholesale inside the committing scope.
// Handlers and getters keep their bindings: they close over the store, not
// the state value.
func (s *Store) ReplaceState(state module.StateMap) {
	s.withCommit(func() {
		s.rootRef.Set(state)
		s.markSanctioned()
	})
}

// RegisterModule registers a runtime module at path, installs its subtree's
// routes, and rebuilds the derived getter layer. WithPreserveState keeps
// state already present at the module's key.
func (s *Store) RegisterModule(path []string, cfg *module.Config, opts ...RegisterOption) error {
	if len(path) == 0 {
		return ErrRegisterRoot
	}
	var rc registerConfig
	for _, opt := range opts {
		opt(&rc)
	}

	if err := s.modules.Register(path, cfg, true); err != nil {
		return err
	}
	var installErr error
	s.withCommit(func() {
		installErr = s.installModule(s.rootState(), path, s.modules.Get(path), rc.preserveState)
		s.markSanctioned()
	})
	if err := s.handleAuthoringError(installErr); err != nil {
		return err
	}
	s.resetStoreState(s.rootState())
	return nil
}

// UnregisterModule removes the runtime module at path: detaches it from the
// tree, deletes its state key inside the committing scope, and rebuilds all
// routing tables from scratch. Construction-time modules are refused and
// remain registered.
func (s *Store) UnregisterModule(path []string) {
	if len(path) == 0 {
		s.logger.Printf("fluxstore: cannot unregister the root module")
		return
	}
	if !s.modules.Unregister(path) {
		return
	}

	s.withCommit(func() {
		parentState := stateAt(s.rootState(), path[:len(path)-1])
		if parentState == nil {
			return
		}
		delete(parentState, path[len(path)-1])
		s.rootRef.Touch()
		s.markSanctioned()
	})
	s.resetStore()
}

// HasModule reports whether a module is registered at path. A pure tree
// lookup with no side effects.
func (s *Store) HasModule(path []string) bool {
	return len(path) > 0 && s.modules.IsRegistered(path)
}

// HotUpdate overlays new mutation, action and getter definitions onto
// existing modules, then rebuilds routing tables and derived values without
// re-attaching state.
func (s *Store) HotUpdate(cfg *module.Config) error {
	if err := s.modules.Update(cfg); err != nil {
		return err
	}
	s.resetStore()
	return nil
}

// ModuleInfo is the traversal surface exposed to the devtools bridge.
type ModuleInfo struct {
	Path            []string
	Namespace       string
	Namespaced      bool
	State           module.StateMap
	ChildKeys       []string
	LocalGetterKeys []string
}

// Inspect resolves a module path for external inspectors: its namespace,
// live state slice, child keys, and the getter keys visible locally.
func (s *Store) Inspect(path []string) (*ModuleInfo, bool) {
	m := s.modules.Get(path)
	if m == nil {
		return nil, false
	}
	ns := s.modules.GetNamespace(path)

	childKeys := m.ChildKeys()
	sort.Strings(childKeys)

	var info *ModuleInfo
	s.withEval(func() {
		var local module.GetterReader = rootGetters{s: s, eval: true}
		if ns != "" {
			local = s.makeLocalGetters(ns, true)
		}
		info = &ModuleInfo{
			Path:            append([]string{}, path...),
			Namespace:       ns,
			Namespaced:      m.Namespaced(),
			State:           stateAt(s.rootState(), path),
			ChildKeys:       childKeys,
			LocalGetterKeys: local.Keys(),
		}
	})
	return info, true
}

// withCommit runs fn holding the state lock with writes sanctioned. Watcher
// callbacks queued while the lock was held are delivered after it is
// released, so a callback may commit or dispatch without deadlocking. The
// unlock is deferred so a dev-mode assertion panic does not poison the lock.
func (s *Store) withCommit(fn func()) {
	s.writeMu.Lock()
	s.committing = true
	defer func() {
		s.committing = false
		queue := s.watchQueue
		s.watchQueue = nil
		s.writeMu.Unlock()
		for _, cb := range queue {
			cb()
		}
	}()
	fn()
}

// withEval runs fn holding the state lock without sanctioning writes. Used
// for tracked evaluations and for table reads that would otherwise race a
// concurrent commit or reset.
func (s *Store) withEval(fn func()) {
	s.writeMu.Lock()
	defer func() {
		queue := s.watchQueue
		s.watchQueue = nil
		s.writeMu.Unlock()
		for _, cb := range queue {
			cb()
		}
	}()
	fn()
}

// isCommitting is only consulted from watcher notifications, which fire
// while the state lock is held, so the flag read needs no further guard.
func (s *Store) isCommitting() bool {
	return s.committing
}

// markSanctioned records the current state as the last sanctioned write.
// Caller holds the state lock.
func (s *Store) markSanctioned() {
	if !s.strict || !s.devMode || s.rootRef == nil {
		return
	}
	s.strictSnapshot = reactive.DeepClone(s.rootState())
}

// checkExternalWrites fails a dev-mode assertion when the state no longer
// matches the last sanctioned snapshot, catching in-place writes that never
// went through a mutation. Caller holds the state lock.
func (s *Store) checkExternalWrites() {
	if !s.strict || !s.devMode || s.strictSnapshot == nil {
		return
	}
	if !reflect.DeepEqual(s.strictSnapshot, any(s.rootState())) {
		s.failf("do not mutate store state outside mutation handlers")
	}
}

// failf raises an authoring error: a panic in dev mode, a log line in
// production.
func (s *Store) failf(format string, args ...any) {
	msg := fmt.Sprintf("fluxstore: "+format, args...)
	if s.devMode {
		panic(msg)
	}
	s.logger.Print(msg)
}

// handleAuthoringError propagates err in dev mode and degrades it to a log
// line in production.
func (s *Store) handleAuthoringError(err error) error {
	if err == nil {
		return nil
	}
	if s.devMode {
		return err
	}
	s.logger.Printf("fluxstore: %v", err)
	return nil
}

// safely runs a subscriber callback with panic isolation: one failing
// subscriber is logged and does not stop the others.
func (s *Store) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("fluxstore: %s panicked: %v", what, r)
		}
	}()
	fn()
}
