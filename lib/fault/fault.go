// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault defines Vellum's error taxonomy.
//
// Every public API call that fails does so with exactly one Kind, so
// callers (and the excluded transport layer) can map failures without
// string matching:
//
//	if fault.Is(err, fault.PermissionDenied) { ... }
//
// Validation failures are raised before any mutation is attempted.
// Once a mutation has started on a dispatcher it runs to completion;
// a failure inside the mutation rolls the tree back to its last
// consistent state and surfaces here as a failed call, never as a
// corrupted tree.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// Unknown is the zero Kind. No Vellum API returns it; it is the
	// result of classifying a foreign error.
	Unknown Kind = iota

	// ArgumentNull means a required parameter was absent.
	ArgumentNull

	// ArgumentInvalid means a parameter was present but malformed:
	// bad name or path, invalid enum value, rename to the same name,
	// move to the same parent, move under one's own descendant.
	ArgumentInvalid

	// AuthenticationExpired means the session behind an
	// Authentication is no longer valid: logged out, kicked,
	// connection closed, token past its TTL, or server shut down.
	AuthenticationExpired

	// PermissionDenied means the caller's authority or access tier
	// is insufficient, or a lock held by another user blocks the
	// operation, or the account is banned.
	PermissionDenied

	// NotFound means the referenced user, data base, category, item,
	// domain, or access member does not exist.
	NotFound

	// InvalidOperation means the call arrived in the wrong lifecycle
	// state: double login, unload when not loaded, delete of a
	// non-empty category, mutation of the root, off-dispatcher
	// access, overlapping commissions, re-lock or re-unlock.
	InvalidOperation
)

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	switch k {
	case ArgumentNull:
		return "argument null"
	case ArgumentInvalid:
		return "argument invalid"
	case AuthenticationExpired:
		return "authentication expired"
	case PermissionDenied:
		return "permission denied"
	case NotFound:
		return "not found"
	case InvalidOperation:
		return "invalid operation"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Use New or Wrap; the struct is
// exported so callers can errors.As into it when they need the Kind
// and message separately.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The cause remains reachable
// through errors.Unwrap.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or Unknown for foreign errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
