// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides the typed identifiers used throughout Vellum.
//
// Identifiers come in two families. Name-derived references (UserID,
// Name, Path) are validated strings with structural rules: what
// characters a name may contain, how a path is assembled from its
// ancestor chain, which names are reserved. Generated references
// (TaskID, DomainID, DataBaseID) are ULIDs minted by the server and
// never chosen by clients.
//
// All reference types are comparable values. They implement
// encoding.TextMarshaler and encoding.TextUnmarshaler so they can be
// embedded in CBOR snapshots and YAML configuration without the
// consuming package importing their internals.
//
// Paths use '/' as the separator. A category path always ends with the
// separator ("/tables/north/"); an item path never does
// ("/tables/north/customers"). The root category is "/". This mirrors
// the repository tree: categories contain other categories and items,
// items are leaves.
package ref
