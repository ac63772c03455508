package reactive

import "sync"

// Computed is a lazily memoized derived cell. The function runs at most once
// per invalidation, on the next Get. A Computed is itself a source, so
// derived cells may read other derived cells.
type Computed struct {
	obsMu     sync.Mutex
	observers map[observer]struct{}

	fn       func() any
	value    any
	dirty    bool
	disposed bool
	deps     []source
}

// NewComputed creates a derived cell outside any scope. Most callers should
// use Scope.Computed so the cell is released when the scope is disposed.
func NewComputed(fn func() any) *Computed {
	return &Computed{
		fn:        fn,
		dirty:     true,
		observers: make(map[observer]struct{}),
	}
}

// Get returns the derived value, recomputing it if a dependency changed
// since the last read. A disposed cell returns its last value without
// recomputing.
func (c *Computed) Get() any {
	track(c)
	if c.disposed {
		return c.value
	}
	if c.dirty {
		c.recompute()
	}
	return c.value
}

func (c *Computed) recompute() {
	c.detach()
	t := pushTracker(c)
	defer func() {
		popTracker()
		c.deps = t.deps
	}()
	c.value = c.fn()
	c.dirty = false
}

// invalidate marks the cell dirty and propagates to its own observers.
func (c *Computed) invalidate() {
	if c.dirty || c.disposed {
		return
	}
	c.dirty = true

	c.obsMu.Lock()
	obs := make([]observer, 0, len(c.observers))
	for o := range c.observers {
		obs = append(obs, o)
	}
	c.obsMu.Unlock()

	for _, o := range obs {
		o.invalidate()
	}
}

// dispose detaches the cell from its dependencies. Subsequent reads return
// the last computed value.
func (c *Computed) dispose() {
	c.detach()
	c.disposed = true
}

func (c *Computed) detach() {
	for _, s := range c.deps {
		s.removeObserver(c)
	}
	c.deps = nil
}

func (c *Computed) addObserver(o observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers[o] = struct{}{}
}

func (c *Computed) removeObserver(o observer) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	delete(c.observers, o)
}
