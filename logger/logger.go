// Package logger provides a store plugin that logs committed mutations and
// dispatched actions, with pluggable filters and transformers. State passed
// to filters and transformers is a deep copy, so a misbehaving transformer
// cannot corrupt the store.
package logger

import (
	"log"
	"sync"

	"github.com/dshills/fluxstore/module"
	"github.com/dshills/fluxstore/reactive"
	"github.com/dshills/fluxstore/store"
)

// Filter decides whether a mutation is logged. Both states are deep copies.
type Filter func(m store.Mutation, stateBefore, stateAfter module.StateMap) bool

// ActionFilter decides whether an action is logged.
type ActionFilter func(a store.Action, state module.StateMap) bool

// Transformer rewrites a state map before it is logged, e.g. to drop large
// or sensitive slices.
type Transformer func(state module.StateMap) any

// MutationTransformer rewrites a mutation before it is logged.
type MutationTransformer func(m store.Mutation) any

// ActionTransformer rewrites an action before it is logged.
type ActionTransformer func(a store.Action) any

// Option configures the logging plugin.
type Option func(*config)

type config struct {
	logger       *log.Logger
	logMutations bool
	logActions   bool

	filter       Filter
	actionFilter ActionFilter

	transformer  Transformer
	mutationTr   MutationTransformer
	actionTr     ActionTransformer
}

func defaultsConfig() config {
	return config{
		logger:       log.Default(),
		logMutations: true,
		logActions:   false,
		filter:       func(store.Mutation, module.StateMap, module.StateMap) bool { return true },
		actionFilter: func(store.Action, module.StateMap) bool { return true },
		transformer:  func(state module.StateMap) any { return state },
		mutationTr:   func(m store.Mutation) any { return m },
		actionTr:     func(a store.Action) any { return a },
	}
}

// WithLogger routes output through logger instead of the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithFilter logs only mutations the filter accepts.
func WithFilter(f Filter) Option {
	return func(c *config) {
		if f != nil {
			c.filter = f
		}
	}
}

// WithActionFilter logs only actions the filter accepts.
func WithActionFilter(f ActionFilter) Option {
	return func(c *config) {
		if f != nil {
			c.actionFilter = f
		}
	}
}

// WithTransformer rewrites state before logging.
func WithTransformer(f Transformer) Option {
	return func(c *config) {
		if f != nil {
			c.transformer = f
		}
	}
}

// WithMutationTransformer rewrites mutations before logging.
func WithMutationTransformer(f MutationTransformer) Option {
	return func(c *config) {
		if f != nil {
			c.mutationTr = f
		}
	}
}

// WithActionTransformer rewrites actions before logging.
func WithActionTransformer(f ActionTransformer) Option {
	return func(c *config) {
		if f != nil {
			c.actionTr = f
		}
	}
}

// LogMutations toggles mutation logging. On by default.
func LogMutations(on bool) Option {
	return func(c *config) { c.logMutations = on }
}

// LogActions toggles action logging. Off by default.
func LogActions(on bool) Option {
	return func(c *config) { c.logActions = on }
}

// New builds the logging plugin. Install it with store.WithPlugins or call
// it with a constructed store.
func New(opts ...Option) store.Plugin {
	cfg := defaultsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(s *store.Store) {
		if cfg.logMutations {
			var mu sync.Mutex
			prev := cloneState(s.State())
			s.Subscribe(func(m store.Mutation, state module.StateMap) {
				next := cloneState(state)
				mu.Lock()
				before := prev
				prev = next
				mu.Unlock()

				if !cfg.filter(m, before, next) {
					return
				}
				cfg.logger.Printf("mutation %s %+v", m.Type, cfg.mutationTr(m))
				cfg.logger.Printf("  prev state %+v", cfg.transformer(before))
				cfg.logger.Printf("  next state %+v", cfg.transformer(next))
			})
		}

		if cfg.logActions {
			s.SubscribeAction(store.ActionHooks{
				Before: func(a store.Action, state module.StateMap) {
					snap := cloneState(state)
					if !cfg.actionFilter(a, snap) {
						return
					}
					cfg.logger.Printf("action %s %+v", a.Type, cfg.actionTr(a))
				},
				Error: func(a store.Action, state module.StateMap, err error) {
					snap := cloneState(state)
					if !cfg.actionFilter(a, snap) {
						return
					}
					cfg.logger.Printf("action %s failed: %v", a.Type, err)
				},
			})
		}
	}
}

func cloneState(state module.StateMap) module.StateMap {
	cloned, ok := reactive.DeepClone(state).(module.StateMap)
	if !ok {
		return module.StateMap{}
	}
	return cloned
}
