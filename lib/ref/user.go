// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// UserID identifies a user account. User IDs follow the same lexical
// rules as tree names because every user is also a leaf in the user
// tree: the account "bob" filed under "/staff/" has the item path
// "/staff/bob".
//
// The type exists to prevent accidental confusion with other string
// values (display names, tokens, comments) at compile time.
type UserID struct {
	id string
}

// Distinguished accounts created at server initialization. AdminID is
// non-deletable and non-renamable; SystemID signs server-initiated
// changes and can never log in.
var (
	AdminID  = UserID{id: "admin"}
	SystemID = UserID{id: "system"}
)

// ParseUserID validates a raw string as a user ID.
func ParseUserID(raw string) (UserID, error) {
	if raw == SystemID.id {
		// "system" is rejected by ParseName (reserved), but the
		// dedicated message is clearer for account creation.
		return UserID{}, fmt.Errorf("user ID %q is reserved for the server", raw)
	}
	name, err := ParseName(raw)
	if err != nil {
		return UserID{}, fmt.Errorf("user ID: %w", err)
	}
	return UserID{id: name.String()}, nil
}

// MustUserID parses a raw user ID or panics. For tests only.
func MustUserID(raw string) UserID {
	id, err := ParseUserID(raw)
	if err != nil {
		panic("ref: " + err.Error())
	}
	return id
}

// String returns the raw user ID.
func (u UserID) String() string { return u.id }

// IsZero reports whether the ID is the zero value.
func (u UserID) IsZero() bool { return u.id == "" }

// Name returns the user ID as a tree name (its leaf label in the user
// tree).
func (u UserID) Name() Name { return Name{name: u.id} }

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(u.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value, matching MarshalText of a zero ID so that
// snapshots with unset signature fields round-trip.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	if string(data) == SystemID.id {
		// Snapshots legitimately carry system signatures.
		*u = SystemID
		return nil
	}
	parsed, err := ParseUserID(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal UserID: %w", err)
	}
	*u = parsed
	return nil
}
