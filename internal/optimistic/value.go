// Package optimistic holds a value that is shown to the user before the write
// backing it has been confirmed.
package optimistic

import (
	"context"
	"sync"
)

// Token identifies one optimistic write started by Begin.
type Token uint64

// Value is a displayed value plus the last confirmed one. Begin shows a new
// value at once; Commit confirms it and Fail rolls the display back. Only the
// most recent Begin may settle the display: a write that was superseded by a
// later Begin (or cancelled by Rollback) only updates the confirmed value, and
// only while no newer write has committed.
type Value[T any] struct {
	mu        sync.Mutex
	displayed T
	confirmed T
	gen       Token
	settled   Token
	pending   bool
}

// New returns a Value whose displayed and confirmed values are initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{displayed: initial, confirmed: initial}
}

// Displayed returns what the user should see.
func (v *Value[T]) Displayed() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.displayed
}

// Confirmed returns the last value known to be persisted.
func (v *Value[T]) Confirmed() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.confirmed
}

// Pending reports whether an optimistic write is in flight.
func (v *Value[T]) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending
}

// Begin displays next immediately and returns the token of the new write.
func (v *Value[T]) Begin(next T) Token {
	_, tok := v.BeginFunc(func(T) T { return next })
	return tok
}

// BeginFunc displays next(displayed) immediately, computed under the value's
// lock, and returns the new value with the token of the write.
func (v *Value[T]) BeginFunc(next func(displayed T) T) (T, Token) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.displayed = next(v.displayed)
	v.pending = true
	return v.displayed, v.gen
}

// Commit records the persisted result of the write identified by tok. A
// commit older than one already recorded is ignored.
func (v *Value[T]) Commit(tok Token, result T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if tok < v.settled {
		return
	}
	v.settled = tok
	v.confirmed = result
	if tok != v.gen {
		return
	}
	v.displayed = result
	v.pending = false
}

// Fail reverts the display to the confirmed value if tok is still the latest
// write, and returns what is displayed afterwards.
func (v *Value[T]) Fail(tok Token) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	if tok == v.gen {
		v.displayed = v.confirmed
		v.pending = false
	}
	return v.displayed
}

// Rollback drops any in-flight write and shows the confirmed value again.
// A write still running when Rollback is called can no longer change the display.
func (v *Value[T]) Rollback() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.displayed = v.confirmed
	v.pending = false
	return v.displayed
}

// Reconcile applies an authoritative observation, such as a live query
// snapshot. The display follows it unless a write is in flight.
func (v *Value[T]) Reconcile(observed T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirmed = observed
	if !v.pending {
		v.displayed = observed
	}
}

// Apply runs the full optimistic cycle: display next, run write, then commit
// its result or roll back. The write's error is returned unchanged.
func (v *Value[T]) Apply(ctx context.Context, next T, write func(ctx context.Context) (T, error)) (T, error) {
	return v.ApplyFunc(ctx, func(T) T { return next }, func(ctx context.Context, _ T) (T, error) {
		return write(ctx)
	})
}

// ApplyFunc is Apply with the next value derived from the displayed one, as
// in a toggle. write receives the derived value.
func (v *Value[T]) ApplyFunc(ctx context.Context, next func(displayed T) T, write func(ctx context.Context, next T) (T, error)) (T, error) {
	n, tok := v.BeginFunc(next)
	result, err := write(ctx, n)
	if err != nil {
		return v.Fail(tok), err
	}
	v.Commit(tok, result)
	return result, nil
}
