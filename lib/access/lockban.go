// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package access

import "github.com/vellum-project/vellum/lib/ref"

// LockInfo is the advisory exclusive lock on one lockable item. The
// zero value is unlocked.
//
// A lock does not evict anyone: participants already inside an editing
// domain on the item stay. It blocks new structural mutation and new
// domain entry by everyone except the locker (and Admin sessions).
type LockInfo struct {
	// Locker holds the lock. Zero when unlocked.
	Locker ref.UserID `cbor:"locker,omitempty"`

	// Comment is the human-readable reason given at lock time.
	Comment string `cbor:"comment,omitempty"`

	// Signature records when the lock was taken.
	Signature Signature `cbor:"signature,omitempty"`
}

// IsLocked reports whether the item is locked.
func (l *LockInfo) IsLocked() bool { return !l.Locker.IsZero() }

// Permits reports whether user may mutate the item despite the lock:
// either the item is unlocked or user holds the lock.
func (l *LockInfo) Permits(user ref.UserID) bool {
	return !l.IsLocked() || l.Locker == user
}

// BanInfo is the persistent ban record of a user account. The zero
// value means not banned. Distinct from a kick, which disconnects a
// live session without leaving state behind.
type BanInfo struct {
	// Path is the banned user's item path in the user tree. Empty
	// means not banned; the field doubles as the flag so a snapshot
	// reads unambiguously.
	Path ref.Path `cbor:"path,omitempty"`

	// Comment is the reason shown to the banned user at login.
	Comment string `cbor:"comment,omitempty"`

	// Signature records who imposed the ban and when.
	Signature Signature `cbor:"signature,omitempty"`
}

// IsBanned reports whether the record represents an active ban.
func (b *BanInfo) IsBanned() bool { return !b.Path.IsZero() }
