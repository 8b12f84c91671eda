// Package loop provides the single control context that owns session, hook and plugin state.
//
// Background goroutines (the engine read loop, HTTP handlers, timers) never touch that state
// directly; they hand work to the loop with Post or Call and the loop runs it in FIFO order.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when work is submitted to a loop that is no longer running.
var ErrStopped = errors.New("control loop stopped")

// DefaultQueueSize is the task queue capacity used by New when size <= 0.
const DefaultQueueSize = 256

// Loop runs submitted functions one at a time on a single goroutine.
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Loop with the given queue capacity.
func New(size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled. It must be called exactly once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopOnce.Do(func() { close(l.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn without waiting for it to run.
// Returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish.
// It must not be called from code already running on the loop.
func (l *Loop) Call(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// The task may have run just before the loop stopped.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Timer is a cancellable deferred task created by AfterFunc.
type Timer struct {
	timer    *time.Timer
	canceled atomic.Bool
}

// Stop cancels the task. It reports whether the task was still pending.
// Once Stop has been called from the loop, the task is guaranteed not to run.
func (t *Timer) Stop() bool {
	wasPending := !t.canceled.Swap(true)
	t.timer.Stop()
	return wasPending
}

// AfterFunc schedules fn to run on the loop after d.
// The wait happens on a runtime timer, never on the loop itself.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.canceled.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}
