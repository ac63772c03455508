package luaplugin

import (
	"context"
	"log"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/fluxstore/module"
	"github.com/dshills/fluxstore/store"
)

// Option configures a Host.
type Option func(*Host)

// WithLogger routes script errors through logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCallBudget bounds each script invocation. A handler that runs past
// the budget is cancelled through the LState's context.
func WithCallBudget(d time.Duration) Option {
	return func(h *Host) { h.budget = d }
}

type invocation struct {
	fn   *lua.LFunction
	args []any
}

// Host owns one sandboxed LState and wires its handler globals to a store.
type Host struct {
	store  *store.Store
	logger *log.Logger
	budget time.Duration

	L      *lua.LState
	bridge *bridge

	mu      sync.Mutex
	busy    bool
	closed  bool
	pending []invocation
	stops   []func()

	onMutation *lua.LFunction
	onAction   *lua.LFunction
}

// NewHost creates a host bound to the store. Scripts loaded into it can
// call commit(type, payload), dispatch(type, payload) and getter(key).
func NewHost(s *store.Store, opts ...Option) *Host {
	h := &Host{
		store:  s,
		logger: log.Default(),
		budget: 5 * time.Second,
		L:      lua.NewState(),
	}
	h.bridge = &bridge{L: h.L}
	for _, opt := range opts {
		opt(h)
	}

	sandbox(h.L)
	h.installStoreAPI()

	h.stops = append(h.stops, s.Subscribe(func(m store.Mutation, state module.StateMap) {
		h.mu.Lock()
		fn := h.onMutation
		h.mu.Unlock()
		if fn != nil {
			h.call(fn, m.Type, m.Payload, state)
		}
	}))
	h.stops = append(h.stops, s.SubscribeAction(store.ActionHooks{
		Before: func(a store.Action, _ module.StateMap) { h.callAction("before", a) },
		After:  func(a store.Action, _ module.StateMap) { h.callAction("after", a) },
		Error:  func(a store.Action, _ module.StateMap, _ error) { h.callAction("error", a) },
	}))

	return h
}

// Load executes a script and picks up the onmutation and onaction globals
// it defines. Loading replaces handlers from earlier loads.
func (h *Host) Load(source string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.busy {
		h.mu.Unlock()
		return ErrBusy
	}
	h.busy = true
	h.mu.Unlock()

	err := h.L.DoString(source)

	onMutation, _ := h.L.GetGlobal("onmutation").(*lua.LFunction)
	onAction, _ := h.L.GetGlobal("onaction").(*lua.LFunction)

	h.mu.Lock()
	h.onMutation = onMutation
	h.onAction = onAction
	h.mu.Unlock()

	h.drain()

	if err != nil {
		return err
	}
	if onMutation == nil && onAction == nil {
		return ErrNoHandlers
	}
	return nil
}

// Close unsubscribes from the store and releases the LState.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	stops := h.stops
	h.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	h.L.Close()
}

func (h *Host) callAction(kind string, a store.Action) {
	h.mu.Lock()
	fn := h.onAction
	h.mu.Unlock()
	if fn != nil {
		h.call(fn, kind, a.Type, a.Payload)
	}
}

// call runs a handler, serializing LState access. A handler arriving while
// another runs, which happens when a script commits from inside onmutation,
// is queued and drained after the running call returns.
func (h *Host) call(fn *lua.LFunction, args ...any) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if h.busy {
		h.pending = append(h.pending, invocation{fn: fn, args: args})
		h.mu.Unlock()
		return
	}
	h.busy = true
	h.mu.Unlock()

	h.invoke(fn, args)
	h.drain()
}

// drain runs queued invocations and releases the busy slot.
func (h *Host) drain() {
	for {
		h.mu.Lock()
		if len(h.pending) == 0 || h.closed {
			h.pending = nil
			h.busy = false
			h.mu.Unlock()
			return
		}
		next := h.pending[0]
		h.pending = h.pending[1:]
		h.mu.Unlock()

		h.invoke(next.fn, next.args)
	}
}

func (h *Host) invoke(fn *lua.LFunction, args []any) {
	if h.budget > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), h.budget)
		h.L.SetContext(ctx)
		defer cancel()
		defer h.L.RemoveContext()
	}
	if err := h.bridge.call(fn, args...); err != nil {
		h.logger.Printf("luaplugin: handler error: %v", err)
	}
}

// installStoreAPI exposes the store to scripts.
func (h *Host) installStoreAPI() {
	h.L.SetGlobal("commit", h.L.NewFunction(func(L *lua.LState) int {
		typ := L.CheckString(1)
		var payload any
		if L.GetTop() >= 2 {
			payload = h.bridge.toGo(L.Get(2))
		}
		h.store.Commit(typ, payload)
		return 0
	}))

	h.L.SetGlobal("dispatch", h.L.NewFunction(func(L *lua.LState) int {
		typ := L.CheckString(1)
		var payload any
		if L.GetTop() >= 2 {
			payload = h.bridge.toGo(L.Get(2))
		}
		h.store.Dispatch(typ, payload)
		return 0
	}))

	h.L.SetGlobal("getter", h.L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		L.Push(h.bridge.toLua(h.store.Getter(key)))
		return 1
	}))
}
