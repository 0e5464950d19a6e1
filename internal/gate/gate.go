// Package gate provides the short-lived growth lock shared by the column
// structures.
//
// A Gate admits one holder at a time. Callers choose how long they are
// willing to wait: NoWait tries once, Infinite blocks, and any positive
// duration bounds the wait.
package gate

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// NoWait makes TryEnter return immediately when the gate is held.
	NoWait time.Duration = 0
	// Infinite makes TryEnter block until the gate is free.
	Infinite time.Duration = -1
)

// Gate is a mutual-exclusion lock with a bounded acquire.
type Gate struct {
	sem *semaphore.Weighted
}

// New creates an open gate.
func New() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// TryEnter acquires the gate, waiting at most timeout.
// It reports whether the gate was acquired.
func (g *Gate) TryEnter(timeout time.Duration) bool {
	if g.sem.TryAcquire(1) {
		return true
	}
	switch {
	case timeout == NoWait:
		return false
	case timeout < 0:
		return g.sem.Acquire(context.Background(), 1) == nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.sem.Acquire(ctx, 1) == nil
}

// Enter blocks until the gate is acquired or ctx is done.
func (g *Gate) Enter(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Exit releases the gate.
func (g *Gate) Exit() {
	g.sem.Release(1)
}
