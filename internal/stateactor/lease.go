package stateactor

import (
	"context"
	"sync"
)

// leaseTracker counts outstanding read guards and lets the actor goroutine
// block, synchronously, until the count drops back to zero — the
// "writer lease" the full-reinit procedure needs before it may swap the
// store handle (spec.md §4.1). It is the reader-count analogue of
// core/connection_pool.go's sync.Once-guarded shutdown channel in the
// teacher repo: instead of a one-shot close, the "drained" channel is
// closed and replaced every time the count transitions to and from zero.
type leaseTracker struct {
	mu    sync.Mutex
	count int
	zero  chan struct{}
}

func newLeaseTracker() *leaseTracker {
	lt := &leaseTracker{zero: make(chan struct{})}
	close(lt.zero) // starts drained: count == 0
	return lt
}

func (lt *leaseTracker) acquire() {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.count++
	if lt.count == 1 {
		lt.zero = make(chan struct{})
	}
}

func (lt *leaseTracker) release() {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.count == 0 {
		return // double release guarded against at the ReadGuard level too
	}
	lt.count--
	if lt.count == 0 {
		close(lt.zero)
	}
}

func (lt *leaseTracker) outstanding() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// waitDrained blocks until no read guards are outstanding or ctx is done,
// whichever happens first. Called only from the actor's own goroutine.
func (lt *leaseTracker) waitDrained(ctx context.Context) error {
	lt.mu.Lock()
	ch := lt.zero
	lt.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
