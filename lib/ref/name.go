// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// Separator is the path separator for repository trees.
const Separator = "/"

// MaxNameLength bounds the length of a single tree name. Long names
// inflate every path that contains them and every event snapshot that
// carries those paths, so the limit applies at parse time rather than
// at storage time.
const MaxNameLength = 64

// reservedNames are names that can never be assigned to a tree item or
// category. They collide with path navigation or with system accounts.
var reservedNames = map[string]bool{
	".":      true,
	"..":     true,
	"system": true,
}

// Name is a validated tree name: the label of one category or item
// within its parent. A Name contains no separator and is never empty.
type Name struct {
	name string
}

// ParseName validates a raw string as a tree name. The rules:
// non-empty, at most MaxNameLength bytes, no separator, no leading or
// trailing whitespace, first character a letter or digit, remaining
// characters letters, digits, '_', '-', or '.'. Reserved names are
// rejected.
func ParseName(raw string) (Name, error) {
	if raw == "" {
		return Name{}, fmt.Errorf("name is empty")
	}
	if len(raw) > MaxNameLength {
		return Name{}, fmt.Errorf("name %q exceeds %d bytes", raw, MaxNameLength)
	}
	if strings.Contains(raw, Separator) {
		return Name{}, fmt.Errorf("name %q contains path separator", raw)
	}
	if reservedNames[raw] {
		return Name{}, fmt.Errorf("name %q is reserved", raw)
	}
	for i, r := range raw {
		if i == 0 {
			if !isAlphanumeric(r) {
				return Name{}, fmt.Errorf("name %q must start with a letter or digit", raw)
			}
			continue
		}
		if !isAlphanumeric(r) && r != '_' && r != '-' && r != '.' {
			return Name{}, fmt.Errorf("name %q contains invalid character %q", raw, r)
		}
	}
	return Name{name: raw}, nil
}

// MustName parses a raw name or panics. For package-level constants
// and tests only.
func MustName(raw string) Name {
	name, err := ParseName(raw)
	if err != nil {
		panic("ref: " + err.Error())
	}
	return name
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// String returns the raw name.
func (n Name) String() string { return n.name }

// IsZero reports whether the name is the zero value (unparsed).
func (n Name) IsZero() bool { return n.name == "" }

// MarshalText implements encoding.TextMarshaler.
func (n Name) MarshalText() ([]byte, error) {
	return []byte(n.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Name) UnmarshalText(data []byte) error {
	parsed, err := ParseName(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal Name: %w", err)
	}
	*n = parsed
	return nil
}
