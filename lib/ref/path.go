// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// Path identifies a category or item position in a repository tree.
// Category paths end with the separator, item paths do not, and the
// root category is "/". Paths are values computed from the ancestor
// chain; they are carried in event snapshots and never point back into
// the live tree.
type Path struct {
	raw string
}

// RootPath is the root category path "/".
var RootPath = Path{raw: Separator}

// ParsePath validates a raw path string. Every segment must be a valid
// Name. A trailing separator marks a category path.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("path is empty")
	}
	if !strings.HasPrefix(raw, Separator) {
		return Path{}, fmt.Errorf("path %q is not absolute", raw)
	}
	if raw == Separator {
		return RootPath, nil
	}
	trimmed := strings.TrimPrefix(raw, Separator)
	trimmed = strings.TrimSuffix(trimmed, Separator)
	for _, segment := range strings.Split(trimmed, Separator) {
		if _, err := ParseName(segment); err != nil {
			return Path{}, fmt.Errorf("path %q: %w", raw, err)
		}
	}
	return Path{raw: raw}, nil
}

// MustPath parses a raw path or panics. For tests only.
func MustPath(raw string) Path {
	path, err := ParsePath(raw)
	if err != nil {
		panic("ref: " + err.Error())
	}
	return path
}

// CategoryPath builds a category path from name segments. With no
// segments it returns the root.
func CategoryPath(names ...Name) Path {
	if len(names) == 0 {
		return RootPath
	}
	var b strings.Builder
	for _, name := range names {
		b.WriteString(Separator)
		b.WriteString(name.String())
	}
	b.WriteString(Separator)
	return Path{raw: b.String()}
}

// ItemPath builds an item path from the parent category and the item
// name.
func ItemPath(parent Path, name Name) Path {
	return Path{raw: parent.raw + name.String()}
}

// String returns the raw path.
func (p Path) String() string { return p.raw }

// IsZero reports whether the path is the zero value (unparsed).
func (p Path) IsZero() bool { return p.raw == "" }

// IsRoot reports whether the path is the root category "/".
func (p Path) IsRoot() bool { return p.raw == Separator }

// IsCategory reports whether the path names a category (trailing
// separator) rather than an item.
func (p Path) IsCategory() bool {
	return strings.HasSuffix(p.raw, Separator)
}

// Name returns the last segment of the path. The root has no name; it
// returns the zero Name.
func (p Path) Name() Name {
	if p.IsRoot() || p.IsZero() {
		return Name{}
	}
	trimmed := strings.TrimSuffix(p.raw, Separator)
	i := strings.LastIndex(trimmed, Separator)
	return Name{name: trimmed[i+1:]}
}

// Parent returns the parent category path. The parent of the root is
// the root.
func (p Path) Parent() Path {
	if p.IsRoot() || p.IsZero() {
		return RootPath
	}
	trimmed := strings.TrimSuffix(p.raw, Separator)
	i := strings.LastIndex(trimmed, Separator)
	return Path{raw: trimmed[:i+1]}
}

// Child returns the category path for a child category of p. Panics
// if p is not a category; building an item path under a leaf is a
// programming error caught at the call site.
func (p Path) Child(name Name) Path {
	if !p.IsCategory() {
		panic("ref: Child called on item path " + p.raw)
	}
	return Path{raw: p.raw + name.String() + Separator}
}

// IsAncestorOf reports whether p is a category that strictly contains
// other. A path is not its own ancestor.
func (p Path) IsAncestorOf(other Path) bool {
	if !p.IsCategory() || p.raw == other.raw {
		return false
	}
	return strings.HasPrefix(other.raw, p.raw)
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(data []byte) error {
	parsed, err := ParsePath(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal Path: %w", err)
	}
	*p = parsed
	return nil
}
