// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch implements the per-entity execution model that
// makes shared-tree mutation race free.
//
// Each coarse-grained entity (the user context, each data base, the
// domain context, the host itself) owns one Dispatcher: a single
// goroutine draining a FIFO queue of closures. All reads and writes of
// the entity's state happen on that goroutine, so mutation of any one
// entity's subtree is linearizable without locks on the tree itself.
//
// The suspension points are the marshal-to-dispatcher boundary
// (waiting for the target dispatcher's queue) and whatever I/O a
// dispatched operation performs. Operations submitted to one
// dispatcher execute strictly in submission order; there is no
// ordering guarantee across dispatchers except via explicit TaskID
// correlation.
//
// Invoke from the dispatcher's own goroutine runs inline, so helper
// methods that Invoke are safe to call from already-dispatched code.
// VerifyAccess lets state accessors reject off-dispatcher reads
// instead of silently racing.
//
// Event[T] ties event subscription to the owning dispatcher: Subscribe
// and Unsubscribe must themselves run on the owner, and handlers are
// delivered by re-entering each subscriber's own dispatcher. A slow
// subscriber delays only itself, never the mutating entity.
package dispatch
