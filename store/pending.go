package store

import (
	"context"
	"sync"
	"sync/atomic"
)

// PendingState is the settlement state of a dispatch result.
type PendingState int32

const (
	// StatePending means the action has not settled.
	StatePending PendingState = iota

	// StateResolved means the action completed successfully.
	StateResolved

	// StateRejected means the action failed.
	StateRejected
)

// String returns a human-readable state name.
func (s PendingState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Pending is the asynchronous result of a dispatch. It settles exactly once.
// Pending implements module.Future.
type Pending struct {
	done  chan struct{}
	state atomic.Int32

	mu    sync.Mutex
	value any
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolvedPending(v any) *Pending {
	p := newPending()
	p.resolve(v)
	return p
}

// Done is closed when the action has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// State returns the current settlement state.
func (p *Pending) State() PendingState {
	return PendingState(p.state.Load())
}

// Wait blocks until the action settles or ctx is cancelled. Cancelling ctx
// abandons the wait; the action itself keeps running.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.Value()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Value returns the settled result. Before settlement it returns nil, nil.
func (p *Pending) Value() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

func (p *Pending) resolve(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.State() != StatePending {
		return
	}
	p.value = v
	p.state.Store(int32(StateResolved))
	close(p.done)
}

func (p *Pending) reject(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.State() != StatePending {
		return
	}
	p.err = err
	p.state.Store(int32(StateRejected))
	close(p.done)
}
