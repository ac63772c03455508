package reactive

import "sync"

// Scope owns the computed cells and watchers created through it. Disposing
// the scope detaches all of them from their dependencies in one step, so a
// whole derived-value layer can be torn down and rebuilt without leaking
// observers.
type Scope struct {
	mu        sync.Mutex
	computeds []*Computed
	watchers  []*Watcher
	disposed  bool
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Computed creates a derived cell owned by the scope.
func (s *Scope) Computed(fn func() any) *Computed {
	c := NewComputed(fn)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		c.dispose()
		return c
	}
	s.computeds = append(s.computeds, c)
	return c
}

// Watcher creates a watcher owned by the scope.
func (s *Scope) Watcher(getter func() any, cb func(newVal, oldVal any), opts ...WatchOption) *Watcher {
	w := NewWatcher(getter, cb, opts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		w.Stop()
		return w
	}
	s.watchers = append(s.watchers, w)
	return w
}

// Dispose detaches every cell and watcher owned by the scope. Disposed
// computed cells keep returning their last value without recomputing.
// Disposing twice is a no-op.
func (s *Scope) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	computeds := s.computeds
	watchers := s.watchers
	s.computeds = nil
	s.watchers = nil
	s.mu.Unlock()

	for _, c := range computeds {
		c.dispose()
	}
	for _, w := range watchers {
		w.Stop()
	}
}
