// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"fmt"
	"sync"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
)

// ExpireReason says why a session ended.
type ExpireReason int

const (
	// ReasonNone is the zero value of a live session.
	ReasonNone ExpireReason = iota

	// ReasonLogout: the user logged out.
	ReasonLogout

	// ReasonKick: an administrator disconnected the user.
	ReasonKick

	// ReasonBan: the account was banned while online.
	ReasonBan

	// ReasonShutdown: the server closed.
	ReasonShutdown

	// ReasonReleased: a commission was ended by its parent session.
	ReasonReleased
)

func (r ExpireReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonLogout:
		return "logout"
	case ReasonKick:
		return "kick"
	case ReasonBan:
		return "ban"
	case ReasonShutdown:
		return "shutdown"
	case ReasonReleased:
		return "released"
	default:
		return fmt.Sprintf("ExpireReason(%d)", int(r))
	}
}

// Authentication is a validated session identity. Expiry state and
// the commission slot are guarded by a mutex because every API in the
// system checks them, from whichever dispatcher the call lands on.
// Authority is fixed at login; authority changes apply to future
// logins only.
type Authentication struct {
	id        ref.UserID
	authority access.Authority
	invokeID  string

	// parent is nil for a login session and set for a commission.
	parent *Authentication

	mu         sync.Mutex
	expired    bool
	reason     ExpireReason
	commission *Authentication
	nextHook   int
	onExpired  []expiryHook
}

type expiryHook struct {
	id int
	fn func(ExpireReason)
}

// ID returns the authenticated user.
func (a *Authentication) ID() ref.UserID { return a.id }

// Authority returns the session's capability level.
func (a *Authentication) Authority() access.Authority { return a.authority }

// InvokeID identifies this session in event payloads. A commission
// carries its parent's InvokeID so observers correlate its work with
// the originating session.
func (a *Authentication) InvokeID() string { return a.invokeID }

// IsExpired reports whether the session has ended.
func (a *Authentication) IsExpired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expired
}

// Verify fails with AuthenticationExpired if the session has ended.
// Every public operation calls it at entry; expiry is detected
// lazily, never by polling.
func (a *Authentication) Verify() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.expired {
		return fault.New(fault.AuthenticationExpired, "session for %s ended (%s)", a.id, a.reason)
	}
	return nil
}

// BeginCommission opens the session's one commission slot and returns
// a child Authentication scoped to the in-flight logical call. A
// second BeginCommission before EndCommission is InvalidOperation.
func (a *Authentication) BeginCommission() (*Authentication, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.expired {
		return nil, fault.New(fault.AuthenticationExpired, "session for %s ended (%s)", a.id, a.reason)
	}
	if a.parent != nil {
		return nil, fault.New(fault.InvalidOperation, "a commission cannot open its own commission")
	}
	if a.commission != nil {
		return nil, fault.New(fault.InvalidOperation, "session for %s already has an open commission", a.id)
	}
	child := &Authentication{
		id:        a.id,
		authority: a.authority,
		invokeID:  a.invokeID,
		parent:    a,
	}
	a.commission = child
	return child, nil
}

// EndCommission closes the commission slot. Passing anything other
// than the currently open child is InvalidOperation; failing to pair
// Begin and End is a programming error this surfaces.
func (a *Authentication) EndCommission(child *Authentication) error {
	if child == nil {
		return fault.New(fault.ArgumentNull, "commission is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.commission == nil {
		return fault.New(fault.InvalidOperation, "session for %s has no open commission", a.id)
	}
	if a.commission != child {
		return fault.New(fault.InvalidOperation, "commission does not belong to this session")
	}
	a.commission = nil
	child.expireLocked(ReasonReleased)
	return nil
}

// OnExpired registers a callback run exactly once when the session
// ends, and returns a cancel that removes it. If the session already
// ended the callback runs immediately and cancel is a no-op. Callers
// whose interest outlives the registration (enter/leave cycles on a
// long session) cancel on the way out so the session does not
// accumulate dead closures. Callbacks run on the goroutine that
// expires the session; handlers needing their own dispatcher must
// marshal themselves.
func (a *Authentication) OnExpired(fn func(ExpireReason)) (cancel func()) {
	a.mu.Lock()
	if a.expired {
		reason := a.reason
		a.mu.Unlock()
		fn(reason)
		return func() {}
	}
	a.nextHook++
	id := a.nextHook
	a.onExpired = append(a.onExpired, expiryHook{id: id, fn: fn})
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		for i, hook := range a.onExpired {
			if hook.id == id {
				a.onExpired = append(a.onExpired[:i], a.onExpired[i+1:]...)
				break
			}
		}
	}
}

// expire ends the session and any open commission, then fires the
// expiry callbacks.
func (a *Authentication) expire(reason ExpireReason) {
	a.mu.Lock()
	if a.expired {
		a.mu.Unlock()
		return
	}
	a.expired = true
	a.reason = reason
	commission := a.commission
	a.commission = nil
	callbacks := a.onExpired
	a.onExpired = nil
	a.mu.Unlock()

	if commission != nil {
		commission.expire(reason)
	}
	for _, hook := range callbacks {
		hook.fn(reason)
	}
}

// expireLocked marks a commission child done while the parent's mutex
// is held. A child has no commission of its own.
func (child *Authentication) expireLocked(reason ExpireReason) {
	child.mu.Lock()
	if child.expired {
		child.mu.Unlock()
		return
	}
	child.expired = true
	child.reason = reason
	callbacks := child.onExpired
	child.onExpired = nil
	child.mu.Unlock()
	for _, hook := range callbacks {
		hook.fn(reason)
	}
}
