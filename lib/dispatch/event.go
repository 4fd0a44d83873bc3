// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "slices"

// Event is a typed notification fanned out from one owning dispatcher
// to any number of subscribers. All bookkeeping (subscribe,
// unsubscribe, emit) runs on the owning dispatcher, so the subscriber
// list needs no lock. Handlers never run on the owner: each is
// delivered by re-entering its subscriber's own dispatcher.
//
// Payloads must be immutable snapshots. An event that carried a live
// tree reference would race with the mutation that follows it.
type Event[T any] struct {
	owner  *Dispatcher
	nextID int
	subs   []*subscriber[T]
}

type subscriber[T any] struct {
	id      int
	target  *Dispatcher
	handler func(T)
	removed bool
}

// NewEvent creates an event owned by the given dispatcher.
func NewEvent[T any](owner *Dispatcher) *Event[T] {
	return &Event[T]{owner: owner}
}

// Subscription identifies one registered handler.
type Subscription struct {
	unsubscribe func() error
}

// Unsubscribe removes the handler. Like Subscribe, it must run on the
// event's owning dispatcher. Unsubscribing twice is harmless.
func (s *Subscription) Unsubscribe() error { return s.unsubscribe() }

// Subscribe registers handler to run on the target dispatcher whenever
// the event fires. Subscribe must be called on the owning dispatcher;
// calling it from anywhere else fails with an invalid-operation fault
// rather than silently racing the subscriber list.
func (e *Event[T]) Subscribe(target *Dispatcher, handler func(T)) (*Subscription, error) {
	if err := e.owner.VerifyAccess(); err != nil {
		return nil, err
	}
	e.nextID++
	sub := &subscriber[T]{id: e.nextID, target: target, handler: handler}
	e.subs = append(e.subs, sub)

	id := sub.id
	return &Subscription{unsubscribe: func() error {
		if err := e.owner.VerifyAccess(); err != nil {
			return err
		}
		for i, s := range e.subs {
			if s.id == id {
				s.removed = true
				e.subs = append(e.subs[:i], e.subs[i+1:]...)
				break
			}
		}
		return nil
	}}, nil
}

// Emit delivers value to every subscriber, each on its own dispatcher.
// Emit must run on the owning dispatcher, after the mutation the event
// describes has been applied. Subscribers whose dispatcher has closed
// are skipped; their sessions are already being torn down.
//
// Delivery walks a snapshot of the subscriber list. An inline handler
// may subscribe or unsubscribe during Emit: subscribers added mid-emit
// see only later emissions, subscribers removed mid-emit receive
// nothing further from this one.
func (e *Event[T]) Emit(value T) {
	if err := e.owner.VerifyAccess(); err != nil {
		panic("dispatch: Emit off owning dispatcher: " + err.Error())
	}
	subs := slices.Clone(e.subs)
	for _, sub := range subs {
		if sub.removed {
			continue
		}
		handler := sub.handler
		if sub.target == e.owner {
			// Same-entity observer: deliver inline while still
			// on the owner, preserving mutation/event ordering.
			handler(value)
			continue
		}
		_ = sub.target.InvokeAsync(func() { handler(value) })
	}
}
