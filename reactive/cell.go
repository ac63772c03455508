package reactive

import "sync"

// observer is notified when a source it depends on changes.
type observer interface {
	invalidate()
}

// source is anything an observer can depend on.
type source interface {
	addObserver(observer)
	removeObserver(observer)
}

// tracker collects the sources read during one tracked evaluation.
type tracker struct {
	obs  observer
	deps []source
	seen map[source]struct{}
}

// trackStack holds the trackers of in-flight tracked evaluations. Callers
// serialize the evaluations themselves (the store holds its state lock
// around every one); trackMu guards the stack and the innermost tracker so
// untracked reads from other goroutines stay race-free.
var (
	trackMu    sync.Mutex
	trackStack []*tracker
)

func pushTracker(o observer) *tracker {
	t := &tracker{obs: o, seen: make(map[source]struct{})}
	trackMu.Lock()
	trackStack = append(trackStack, t)
	trackMu.Unlock()
	return t
}

func popTracker() {
	trackMu.Lock()
	trackStack = trackStack[:len(trackStack)-1]
	trackMu.Unlock()
}

// track records s as a dependency of the innermost tracked evaluation.
// A no-op when no tracked evaluation is running.
func track(s source) {
	trackMu.Lock()
	defer trackMu.Unlock()
	if len(trackStack) == 0 {
		return
	}
	t := trackStack[len(trackStack)-1]
	if _, ok := t.seen[s]; ok {
		return
	}
	t.seen[s] = struct{}{}
	t.deps = append(t.deps, s)
	s.addObserver(t.obs)
}

// Ref is a reactive value cell. Reads inside a tracked evaluation are
// recorded as dependencies; writes notify observers.
type Ref struct {
	mu        sync.Mutex
	value     any
	observers map[observer]struct{}
}

// NewRef creates a cell holding v.
func NewRef(v any) *Ref {
	return &Ref{value: v, observers: make(map[observer]struct{})}
}

// Get returns the current value and records the cell as a dependency of the
// running tracked evaluation, if any.
func (r *Ref) Get() any {
	track(r)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Peek returns the current value without dependency tracking.
func (r *Ref) Peek() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Set replaces the value and notifies observers.
func (r *Ref) Set(v any) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
	r.notify()
}

// Touch notifies observers without replacing the value. Used after the held
// value has been mutated in place.
func (r *Ref) Touch() {
	r.notify()
}

func (r *Ref) notify() {
	r.mu.Lock()
	obs := make([]observer, 0, len(r.observers))
	for o := range r.observers {
		obs = append(obs, o)
	}
	r.mu.Unlock()

	for _, o := range obs {
		o.invalidate()
	}
}

func (r *Ref) addObserver(o observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[o] = struct{}{}
}

func (r *Ref) removeObserver(o observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, o)
}
