// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package databases implements the data base collection and the
// per-data-base item trees.
//
// The [Context] actor owns the collection: creating, renaming,
// copying, and deleting data bases. Each [DataBase] is its own actor
// with its own dispatcher owning the table and type item trees, the
// entered sessions, the lock and access state, and the one optional
// open transaction. Cross-entity calls always cross the dispatcher
// boundary through the async path.
//
// Every committed structural mutation appends a revision to the data
// base's log: a zstd-compressed CBOR snapshot of the item trees
// addressed by BLAKE3 digest. An unloaded data base can be reverted
// to any past revision.
package databases
