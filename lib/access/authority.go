// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package access

import "fmt"

// Authority is the server-wide capability level of a session, fixed
// when the session is created. Changing a user's authority affects
// future logins only.
type Authority int

const (
	// AuthorityNone marks an account that cannot log in.
	AuthorityNone Authority = iota

	// AuthorityGuest may browse and read.
	AuthorityGuest

	// AuthorityMember may edit content and create items.
	AuthorityMember

	// AuthorityAdmin may administer users, access lists, and the
	// server lifecycle. Admin authority passes every access check.
	AuthorityAdmin
)

// String returns the lowercase authority name.
func (a Authority) String() string {
	switch a {
	case AuthorityNone:
		return "none"
	case AuthorityGuest:
		return "guest"
	case AuthorityMember:
		return "member"
	case AuthorityAdmin:
		return "admin"
	default:
		return fmt.Sprintf("authority(%d)", int(a))
	}
}

// ParseAuthority parses a lowercase authority name.
func ParseAuthority(raw string) (Authority, error) {
	switch raw {
	case "none":
		return AuthorityNone, nil
	case "guest":
		return AuthorityGuest, nil
	case "member":
		return AuthorityMember, nil
	case "admin":
		return AuthorityAdmin, nil
	default:
		return AuthorityNone, fmt.Errorf("unknown authority %q", raw)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Authority) MarshalText() ([]byte, error) {
	if a < AuthorityNone || a > AuthorityAdmin {
		return nil, fmt.Errorf("invalid authority %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Authority) UnmarshalText(data []byte) error {
	parsed, err := ParseAuthority(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
