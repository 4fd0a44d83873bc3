// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import "fmt"

// State is the data base lifecycle state.
type State int

const (
	// StateNone: created or unloaded; contents are not in memory.
	StateNone State = iota

	// StateLoading: Load is reading the latest revision.
	StateLoading

	// StateLoaded: contents are in memory and mutable.
	StateLoaded

	// StateUnloading: Unload is draining.
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloading:
		return "unloading"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
