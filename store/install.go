package store

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/dshills/fluxstore/module"
	"github.com/dshills/fluxstore/reactive"
)

type wrappedMutation func(payload any)

type wrappedAction func(payload any) (any, error)

// registeredGetter keeps the raw getter with the local context it was
// declared in, so resetStoreState can rebuild the derived cell against the
// store's current state rather than the state present at registration time.
type registeredGetter struct {
	fn    module.GetterFunc
	local *localContext
}

// localContext is a module's namespace-scoped view of the store: commit and
// dispatch closures that prefix the namespace onto unqualified types, plus
// lazy accessors for the module's state slice and local getters. Contexts
// are recreated whenever the module tree changes.
type localContext struct {
	s    *Store
	ns   string
	path []string
}

// state resolves the module's state slice from the current root, so a hot
// state swap is always observed.
func (l *localContext) state() module.StateMap {
	return stateAt(l.s.rootState(), l.path)
}

// getters builds the module-scoped getter view. eval readers skip the state
// lock and are only handed to code that already runs inside a locked
// evaluation (getter functions, watcher getters).
func (l *localContext) getters(eval bool) module.GetterReader {
	if l.ns == "" {
		return rootGetters{s: l.s, eval: eval}
	}
	return l.s.makeLocalGetters(l.ns, eval)
}

func (l *localContext) commit(typ string, payload any, opts ...module.CallOption) {
	cfg := module.ApplyCallOptions(opts)
	if !cfg.Root && l.ns != "" {
		typ = l.ns + typ
	}
	l.s.Commit(typ, payload)
}

func (l *localContext) dispatch(typ string, payload any, opts ...module.CallOption) module.Future {
	cfg := module.ApplyCallOptions(opts)
	if !cfg.Root && l.ns != "" {
		typ = l.ns + typ
	}
	return l.s.Dispatch(typ, payload)
}

func (l *localContext) actionContext() module.ActionContext {
	return module.ActionContext{
		State:       l.state(),
		Getters:     l.getters(false),
		RootState:   l.s.rootState(),
		RootGetters: rootGetters{s: l.s},
		Commit:      l.commit,
		Dispatch:    l.dispatch,
	}
}

func (l *localContext) getterContext() module.GetterContext {
	return module.GetterContext{
		State:       l.state(),
		Getters:     l.getters(true),
		RootState:   l.s.rootState(),
		RootGetters: rootGetters{s: l.s, eval: true},
	}
}

// rootGetters is the unscoped getter view. With eval set, reads go straight
// to the derived cells because the caller is already inside a locked
// evaluation; re-locking there would deadlock.
type rootGetters struct {
	s    *Store
	eval bool
}

func (g rootGetters) Value(key string) any {
	if g.eval {
		return g.s.getterValue(key)
	}
	return g.s.Getter(key)
}

func (g rootGetters) Keys() []string {
	if g.eval {
		return g.s.getterKeys()
	}
	return g.s.GetterKeys()
}

// namespacedGetters projects the global getter table onto one namespace with
// the prefix stripped.
type namespacedGetters struct {
	s    *Store
	ns   string
	keys []string
	eval bool
}

func (g *namespacedGetters) Value(key string) any {
	if g.eval {
		return g.s.getterValue(g.ns + key)
	}
	return g.s.Getter(g.ns + key)
}

func (g *namespacedGetters) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// makeLocalGetters lazily builds and memoizes the key projection for a
// namespace. The cache is invalidated on every reset because the tree shape
// may have changed.
func (s *Store) makeLocalGetters(ns string, eval bool) module.GetterReader {
	s.localGettersMu.Lock()
	keys, ok := s.localGetters[ns]
	if !ok {
		for typ := range s.getterFns {
			if strings.HasPrefix(typ, ns) {
				keys = append(keys, strings.TrimPrefix(typ, ns))
			}
		}
		sort.Strings(keys)
		s.localGetters[ns] = keys
	}
	s.localGettersMu.Unlock()
	return &namespacedGetters{s: s, ns: ns, keys: keys, eval: eval}
}

// installModule registers one module's handlers into the routing tables,
// attaches its state, builds its local context, and recurses into children.
// hot skips state attachment: the tree shape is already in place. The caller
// holds the committing scope for the whole install.
func (s *Store) installModule(rootState module.StateMap, path []string, m *module.Module, hot bool) error {
	isRoot := len(path) == 0
	ns := s.modules.GetNamespace(path)

	if m.Namespaced() {
		if prev, ok := s.namespaceIndex[ns]; ok && prev != m {
			// Non-fatal: last writer wins in the namespace index.
			s.logger.Printf("fluxstore: duplicate namespace %q for module at %q", ns, pathString(path))
		}
		s.namespaceIndex[ns] = m
	}

	if !isRoot && !hot {
		parentState := stateAt(rootState, path[:len(path)-1])
		key := path[len(path)-1]
		if existing, ok := parentState[key]; ok && !sameStateMap(existing, m.State()) {
			s.logger.Printf("fluxstore: state field %q is overwritten by a module with the same key at %q", key, pathString(path))
		}
		parentState[key] = m.State()
	}

	local := &localContext{s: s, ns: ns, path: append([]string{}, path...)}

	m.ForEachMutation(func(key string, fn module.MutationFunc) {
		typ := ns + key
		s.mutations[typ] = append(s.mutations[typ], func(payload any) {
			fn(local.state(), payload)
		})
	})

	m.ForEachAction(func(key string, spec module.ActionSpec) {
		typ := ns + key
		if spec.Root {
			typ = key
		}
		handler := spec.Handler
		s.actions[typ] = append(s.actions[typ], func(payload any) (any, error) {
			return handler(local.actionContext(), payload)
		})
	})

	var installErr error
	m.ForEachGetter(func(key string, fn module.GetterFunc) {
		typ := ns + key
		if _, dup := s.getterFns[typ]; dup {
			// Fail fast; the later registration is dropped.
			if installErr == nil {
				installErr = fmt.Errorf("%w: %q", ErrDuplicateGetter, typ)
			}
			return
		}
		s.getterFns[typ] = registeredGetter{fn: fn, local: local}
	})

	var childErr error
	m.ForEachChild(func(key string, child *module.Module) {
		childPath := append(append([]string{}, path...), key)
		if err := s.installModule(rootState, childPath, child, hot); err != nil && childErr == nil {
			childErr = err
		}
	})
	if installErr == nil {
		installErr = childErr
	}
	return installErr
}

// resetStore rebuilds every routing table from scratch and reinstalls the
// whole tree. Tables are global maps keyed by namespaced type strings with
// no per-module index, so partial invalidation is not possible; rebuild cost
// is proportional to tree size and tree changes are rare. State is never
// re-attached here: the tree's state shape is already in place on both the
// unregister and hot-update paths.
func (s *Store) resetStore() {
	state := s.rootState()
	var installErr error
	s.withCommit(func() {
		s.mutations = make(map[string][]wrappedMutation)
		s.actions = make(map[string][]wrappedAction)
		s.getterFns = make(map[string]registeredGetter)
		s.namespaceIndex = make(map[string]*module.Module)

		// State is already in place; installing with hot=true skips
		// re-attachment.
		installErr = s.installModule(state, nil, s.modules.Root(), true)
	})
	if err := s.handleAuthoringError(installErr); err != nil {
		// Dev mode surfaces authoring errors as panics on the reset path,
		// since there is no caller to return them to.
		panic(err)
	}
	s.resetStoreState(state)
}

// resetStoreState rebuilds the derived-value layer: every registered getter
// is wrapped in a computed cell that closes over the store (never over old
// state), all inside a fresh disposable scope so the previous layer is
// released without relying on any component lifecycle.
func (s *Store) resetStoreState(state module.StateMap) {
	var oldScope *reactive.Scope
	s.withCommit(func() {
		oldScope = s.scope

		s.localGettersMu.Lock()
		s.localGetters = make(map[string][]string)
		s.localGettersMu.Unlock()

		s.scope = reactive.NewScope()
		s.computed = make(map[string]*reactive.Computed, len(s.getterFns))
		for typ, reg := range s.getterFns {
			reg := reg
			s.computed[typ] = s.scope.Computed(func() any {
				return reg.fn(reg.local.getterContext())
			})
		}

		if s.rootRef == nil {
			s.rootRef = reactive.NewRef(state)
		} else {
			s.rootRef.Set(state)
		}
		s.markSanctioned()

		if s.strict {
			s.enableStrictMode()
		}
	})

	// The old scope is disposed after the new layer is in place: disposed
	// cells freeze on their last value instead of recomputing, so a stale
	// reference held through a hot reload degrades to a harmless stale read.
	if oldScope != nil {
		s.withEval(oldScope.Dispose)
	}
}

// enableStrictMode installs a deep watcher over the root state whose sole
// job is to fail a developer-visible assertion when the tree changes outside
// the committing scope.
func (s *Store) enableStrictMode() {
	s.scope.Watcher(func() any { return s.rootRef.Get() }, func(_, _ any) {
		if !s.isCommitting() {
			s.failf("do not mutate store state outside mutation handlers")
		}
	}, reactive.WithDeep())
}

// stateAt resolves a module path to its state slice in the tree.
func stateAt(root module.StateMap, path []string) module.StateMap {
	state := root
	for _, key := range path {
		if state == nil {
			return nil
		}
		child, _ := state[key].(module.StateMap)
		state = child
	}
	return state
}

// sameStateMap reports whether existing is the exact map already owned by
// the module, so rebuild passes do not warn about the module's own state.
func sameStateMap(existing any, state module.StateMap) bool {
	m, ok := existing.(module.StateMap)
	if !ok || m == nil || state == nil {
		return false
	}
	return reflect.ValueOf(m).Pointer() == reflect.ValueOf(state).Pointer()
}

func pathString(path []string) string {
	return strings.Join(path, "/")
}
