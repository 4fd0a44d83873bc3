// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// TaskID correlates an asynchronous mutation with its completion
// event. Every mutating call mints a fresh TaskID; TaskCompleted
// events echo the IDs so a client that issued several concurrent calls
// can tell its own completions apart from other users' activity.
type TaskID struct {
	id ulid.ULID
}

// NewTaskID mints a TaskID.
func NewTaskID() TaskID { return TaskID{id: ulid.Make()} }

// ParseTaskID parses the canonical ULID string form.
func ParseTaskID(raw string) (TaskID, error) {
	id, err := ulid.Parse(raw)
	if err != nil {
		return TaskID{}, fmt.Errorf("task ID %q: %w", raw, err)
	}
	return TaskID{id: id}, nil
}

// String returns the canonical ULID string.
func (t TaskID) String() string { return t.id.String() }

// IsZero reports whether the ID is the zero value.
func (t TaskID) IsZero() bool { return t.id == (ulid.ULID{}) }

// MarshalText implements encoding.TextMarshaler.
func (t TaskID) MarshalText() ([]byte, error) { return t.id.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TaskID) UnmarshalText(data []byte) error { return t.id.UnmarshalText(data) }

// DomainID identifies a collaborative editing domain for its lifetime.
type DomainID struct {
	id ulid.ULID
}

// NewDomainID mints a DomainID.
func NewDomainID() DomainID { return DomainID{id: ulid.Make()} }

// ParseDomainID parses the canonical ULID string form.
func ParseDomainID(raw string) (DomainID, error) {
	id, err := ulid.Parse(raw)
	if err != nil {
		return DomainID{}, fmt.Errorf("domain ID %q: %w", raw, err)
	}
	return DomainID{id: id}, nil
}

// String returns the canonical ULID string.
func (d DomainID) String() string { return d.id.String() }

// IsZero reports whether the ID is the zero value.
func (d DomainID) IsZero() bool { return d.id == (ulid.ULID{}) }

// MarshalText implements encoding.TextMarshaler.
func (d DomainID) MarshalText() ([]byte, error) { return d.id.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DomainID) UnmarshalText(data []byte) error { return d.id.UnmarshalText(data) }

// DataBaseID identifies a data base independently of its name, so that
// renames do not orphan revision history or domain bindings.
type DataBaseID struct {
	id ulid.ULID
}

// NewDataBaseID mints a DataBaseID.
func NewDataBaseID() DataBaseID { return DataBaseID{id: ulid.Make()} }

// ParseDataBaseID parses the canonical ULID string form.
func ParseDataBaseID(raw string) (DataBaseID, error) {
	id, err := ulid.Parse(raw)
	if err != nil {
		return DataBaseID{}, fmt.Errorf("data base ID %q: %w", raw, err)
	}
	return DataBaseID{id: id}, nil
}

// String returns the canonical ULID string.
func (d DataBaseID) String() string { return d.id.String() }

// IsZero reports whether the ID is the zero value.
func (d DataBaseID) IsZero() bool { return d.id == (ulid.ULID{}) }

// MarshalText implements encoding.TextMarshaler.
func (d DataBaseID) MarshalText() ([]byte, error) { return d.id.MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DataBaseID) UnmarshalText(data []byte) error { return d.id.UnmarshalText(data) }
