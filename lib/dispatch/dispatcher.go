// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/vellum-project/vellum/lib/fault"
)

// Dispatcher serializes all operations on one entity. Work enqueued
// with Invoke, InvokeAsync, or Async runs on a single dedicated
// goroutine in strict FIFO order.
type Dispatcher struct {
	name string

	mu     sync.Mutex
	queue  []func()
	wake   *sync.Cond
	closed bool

	// gid is the id of the worker goroutine, used to detect calls
	// already running on this dispatcher.
	gid atomic.Uint64

	// done is closed when the worker has drained the queue and
	// exited.
	done chan struct{}
}

// New starts a dispatcher. The name appears in error messages and
// logs; by convention it names the owning entity ("users",
// "database/sales", "domains").
func New(name string) *Dispatcher {
	d := &Dispatcher{
		name: name,
		done: make(chan struct{}),
	}
	d.wake = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Name returns the dispatcher's name.
func (d *Dispatcher) Name() string { return d.name }

func (d *Dispatcher) run() {
	d.gid.Store(curGoroutineID())
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.wake.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		fn()
	}
}

// OnDispatcher reports whether the calling goroutine is the
// dispatcher's worker.
func (d *Dispatcher) OnDispatcher() bool {
	return d.gid.Load() == curGoroutineID()
}

// VerifyAccess fails with an invalid-operation fault when the caller
// is not running on this dispatcher. State accessors that must not be
// read off-thread call this first.
func (d *Dispatcher) VerifyAccess() error {
	if !d.OnDispatcher() {
		return fault.New(fault.InvalidOperation, "call must run on dispatcher %q", d.name)
	}
	return nil
}

// enqueue appends fn to the queue. Fails after Close.
func (d *Dispatcher) enqueue(fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fault.New(fault.InvalidOperation, "dispatcher %q is closed", d.name)
	}
	d.queue = append(d.queue, fn)
	d.wake.Signal()
	return nil
}

// Invoke runs fn on the dispatcher and waits for it to finish. When
// the caller is already on the dispatcher, fn runs inline, so
// reentrant Invoke does not deadlock.
func (d *Dispatcher) Invoke(fn func()) error {
	if d.OnDispatcher() {
		fn()
		return nil
	}
	finished := make(chan struct{})
	if err := d.enqueue(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}
	<-finished
	return nil
}

// InvokeAsync enqueues fn without waiting for it to run.
func (d *Dispatcher) InvokeAsync(fn func()) error {
	return d.enqueue(fn)
}

// Close stops the dispatcher after draining already-queued work. New
// work is rejected immediately. Close waits for the worker to exit
// unless called from the dispatcher itself, in which case the worker
// exits after the current operation returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.wake.Signal()
	d.mu.Unlock()

	if !d.OnDispatcher() {
		<-d.done
	}
}

// Future is the pending result of an Async call.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result blocks until the operation finishes and returns its outcome.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Async runs fn on the dispatcher and returns a Future for its result.
// Cross-entity calls use this path: an operation on one dispatcher
// that needs another entity marshals to that entity's dispatcher
// without blocking its own queue slot beyond the enqueue.
func Async[T any](d *Dispatcher, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	if err := d.enqueue(func() {
		defer close(f.done)
		f.value, f.err = fn()
	}); err != nil {
		f.err = err
		close(f.done)
	}
	return f
}

// Resolved returns an already-completed Future. Used when a cross-
// dispatcher call can be answered without dispatching.
func Resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}
