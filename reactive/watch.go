package reactive

import "reflect"

// WatchOption configures a Watcher.
type WatchOption func(*watchConfig)

type watchConfig struct {
	deep      bool
	immediate bool
}

// WithDeep compares deep-cloned snapshots of the observed value, so in-place
// edits of maps and slices are detected when the holding cell notifies.
func WithDeep() WatchOption {
	return func(c *watchConfig) { c.deep = true }
}

// WithImmediate fires the callback once at creation with the initial value.
func WithImmediate() WatchOption {
	return func(c *watchConfig) { c.immediate = true }
}

// Watcher observes the value produced by a getter and fires a callback when
// it changes. Re-evaluation happens synchronously inside the notification.
type Watcher struct {
	getter  func() any
	cb      func(newVal, oldVal any)
	deep    bool
	last    any
	deps    []source
	stopped bool
}

// NewWatcher creates a watcher outside any scope. Most callers should use
// Scope.Watcher so the watcher is released when the scope is disposed.
func NewWatcher(getter func() any, cb func(newVal, oldVal any), opts ...WatchOption) *Watcher {
	cfg := watchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := &Watcher{getter: getter, cb: cb, deep: cfg.deep}
	w.last = w.snapshot(w.evaluate())
	if cfg.immediate {
		w.cb(w.last, nil)
	}
	return w
}

// evaluate runs the getter with dependency tracking, re-collecting the
// watcher's dependency set.
func (w *Watcher) evaluate() any {
	for _, s := range w.deps {
		s.removeObserver(w)
	}
	w.deps = nil

	t := pushTracker(w)
	defer func() {
		popTracker()
		w.deps = t.deps
	}()
	return w.getter()
}

func (w *Watcher) snapshot(v any) any {
	if w.deep {
		return DeepClone(v)
	}
	return v
}

func (w *Watcher) invalidate() {
	if w.stopped {
		return
	}
	next := w.evaluate()

	var changed bool
	if w.deep {
		changed = !reflect.DeepEqual(next, w.last)
	} else {
		changed = !shallowEqual(next, w.last)
	}
	if !changed {
		return
	}

	old := w.last
	w.last = w.snapshot(next)
	w.cb(next, old)
}

// shallowEqual compares with == when both values are comparable; values of
// non-comparable types (maps, slices) are always reported as changed.
func shallowEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// Stop detaches the watcher from its dependencies. Stopping twice is a no-op.
func (w *Watcher) Stop() {
	if w.stopped {
		return
	}
	w.stopped = true
	for _, s := range w.deps {
		s.removeObserver(w)
	}
	w.deps = nil
}
