// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package domains implements collaborative editing sessions. A domain
// binds a group of participants to one table or type of a loaded data
// base, accumulates their row edits, and applies them to the backing
// item in a single revision when the session ends. Each domain is its
// own dispatcher actor; participants never touch the backing data
// base directly while the domain is open.
package domains
