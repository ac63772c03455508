package module

import "context"

// StateMap is a module's state object. Child module state is attached to the
// parent's StateMap under the child's key, so the state tree always mirrors
// the module tree.
type StateMap = map[string]any

// StateFactory produces a fresh state map. Declaring module state as a
// factory lets the same configuration be registered more than once without
// sharing state.
type StateFactory = func() StateMap

// MutationFunc is a synchronous, named state transition. It receives the
// owning module's state map and the commit payload.
type MutationFunc func(state StateMap, payload any)

// GetterReader is a read-only view over a set of getters.
type GetterReader interface {
	// Value returns the current value of the getter registered under key,
	// or nil if no such getter exists.
	Value(key string) any

	// Keys lists the getter keys visible in this view.
	Keys() []string
}

// GetterContext is passed to getter functions. State and Getters are scoped
// to the owning module; RootState and RootGetters span the whole tree.
type GetterContext struct {
	State       StateMap
	Getters     GetterReader
	RootState   StateMap
	RootGetters GetterReader
}

// GetterFunc derives a value from state and other getters. Results are
// memoized by the store and recomputed after state changes.
type GetterFunc func(ctx GetterContext) any

// Future is the pending result of a dispatched action.
type Future interface {
	// Done is closed when the action has settled.
	Done() <-chan struct{}

	// Wait blocks until the action settles or ctx is cancelled. Cancelling
	// ctx abandons the wait; it does not cancel the action.
	Wait(ctx context.Context) (any, error)
}

// CommitFunc commits a mutation. Inside an ActionContext the type is
// resolved against the module's namespace unless the Root call option is
// given.
type CommitFunc func(typ string, payload any, opts ...CallOption)

// DispatchFunc dispatches an action, with the same namespace resolution as
// CommitFunc.
type DispatchFunc func(typ string, payload any, opts ...CallOption) Future

// ActionContext is passed to action handlers. Commit and Dispatch resolve
// unqualified types against the owning module's namespace and always route
// through the store's global tables.
type ActionContext struct {
	State       StateMap
	Getters     GetterReader
	RootState   StateMap
	RootGetters GetterReader
	Commit      CommitFunc
	Dispatch    DispatchFunc
}

// ActionFunc is an asynchronous workflow. It may commit mutations, dispatch
// further actions and call external services. The returned value resolves
// the dispatch; a returned error rejects it.
type ActionFunc func(ctx ActionContext, payload any) (any, error)

// CallOption modifies a single Commit or Dispatch call.
type CallOption func(*CallConfig)

// CallConfig is the resolved set of call options.
type CallConfig struct {
	// Root resolves the type against the global table instead of the
	// module's namespace.
	Root bool
}

// WithRoot resolves the call's type globally, bypassing namespace
// prefixing.
func WithRoot() CallOption {
	return func(c *CallConfig) { c.Root = true }
}

// ApplyCallOptions resolves opts into a CallConfig.
func ApplyCallOptions(opts []CallOption) CallConfig {
	var cfg CallConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
