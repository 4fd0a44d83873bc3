// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"fmt"
	"time"

	"github.com/vellum-project/vellum/lib/ref"
)

// Signature records who caused a state change and when. Every
// persisted metadata record and every change event carries one.
type Signature struct {
	// User is the acting account. Server-initiated changes are
	// signed by ref.SystemID.
	User ref.UserID `cbor:"user"`

	// At is the time of the change, UTC.
	At time.Time `cbor:"at"`
}

// Sign creates a signature for the given user at the given time.
// Callers pass clock.Now(); this package takes no clock dependency.
func Sign(user ref.UserID, at time.Time) Signature {
	return Signature{User: user, At: at.UTC()}
}

// IsZero reports whether the signature is unset.
func (s Signature) IsZero() bool { return s.User.IsZero() && s.At.IsZero() }

// String returns "user@RFC3339".
func (s Signature) String() string {
	return fmt.Sprintf("%s@%s", s.User, s.At.Format(time.RFC3339))
}
