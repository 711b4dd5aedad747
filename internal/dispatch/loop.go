// Package dispatch runs closures one at a time on a single goroutine.
// Components that are not safe for concurrent use (route.Manager, the call
// controller) are only touched from inside a Loop.
package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Call once the loop has stopped.
var ErrStopped = errors.New("dispatch loop stopped")

// Loop is a single-goroutine executor.
type Loop struct {
	tasks   chan func()
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	running bool
}

// New creates a loop with the given queue size.
func New(queue int) *Loop {
	if queue <= 0 {
		queue = 64
	}
	return &Loop{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Run executes posted tasks until ctx is cancelled or Stop is called.
// It must be called exactly once.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case task := <-l.tasks:
			task()
		}
	}
}

// Post queues f. It never blocks the caller for longer than it takes the
// loop to drain one slot, and drops f after Stop.
func (l *Loop) Post(f func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.tasks <- f:
	case <-l.done:
	}
}

// Call runs f on the loop and waits for it to finish.
// It must not be called from inside the loop.
func (l *Loop) Call(f func()) error {
	finished := make(chan struct{})
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.tasks <- func() { defer close(finished); f() }:
	case <-l.done:
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Stop ends Run. Tasks still queued are discarded.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Running reports whether Run is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
