// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package access

import "fmt"

// AccessType is the ranked tier one user holds on one protectable
// item. Higher tiers include everything below them.
type AccessType int

const (
	// AccessNone means no standing on the item.
	AccessNone AccessType = iota

	// AccessGuest may read the item.
	AccessGuest

	// AccessEditor may edit the item's content (rows, members)
	// inside an editing domain.
	AccessEditor

	// AccessDeveloper may change the item's structure: create,
	// rename, and move children, and alter schema.
	AccessDeveloper

	// AccessMaster may perform destructive and administrative
	// operations: delete, lock, visibility, and membership changes.
	AccessMaster

	// AccessOwner is the implicit tier of the item's owner. It is
	// never granted through the member list.
	AccessOwner
)

// Required tiers for the standard operation classes. Protected
// operations name one of these rather than a raw tier so the policy
// reads at the call site.
const (
	TierRead      = AccessGuest
	TierContent   = AccessEditor
	TierStructure = AccessDeveloper
	TierDestroy   = AccessMaster
)

// String returns the lowercase tier name.
func (t AccessType) String() string {
	switch t {
	case AccessNone:
		return "none"
	case AccessGuest:
		return "guest"
	case AccessEditor:
		return "editor"
	case AccessDeveloper:
		return "developer"
	case AccessMaster:
		return "master"
	case AccessOwner:
		return "owner"
	default:
		return fmt.Sprintf("access(%d)", int(t))
	}
}

// ParseAccessType parses a lowercase tier name. Owner is not
// parseable: it cannot be granted, only held by the item's owner.
func ParseAccessType(raw string) (AccessType, error) {
	switch raw {
	case "none":
		return AccessNone, nil
	case "guest":
		return AccessGuest, nil
	case "editor":
		return AccessEditor, nil
	case "developer":
		return AccessDeveloper, nil
	case "master":
		return AccessMaster, nil
	default:
		return AccessNone, fmt.Errorf("unknown access type %q", raw)
	}
}

// Grantable reports whether the tier may appear in a member list.
func (t AccessType) Grantable() bool {
	return t >= AccessGuest && t <= AccessMaster
}

// MarshalText implements encoding.TextMarshaler.
func (t AccessType) MarshalText() ([]byte, error) {
	if t < AccessNone || t > AccessOwner {
		return nil, fmt.Errorf("invalid access type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AccessType) UnmarshalText(data []byte) error {
	if string(data) == "owner" {
		*t = AccessOwner
		return nil
	}
	parsed, err := ParseAccessType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
