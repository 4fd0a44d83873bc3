// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage persists server metadata and data base revisions.
//
// The kernel consumes the [Store] interface and never touches the
// filesystem directly. Two kinds of state are persisted: metadata
// snapshots (the user tree with secrets and bans, the data base
// collection with access and lock state), written whole on every
// mutation; and per-data-base revision logs, append-only sequences of
// zstd-compressed CBOR snapshots addressed by BLAKE3 digest.
//
// [FileStore] is the production implementation. Tests use it against
// a temp directory; no separate in-memory fake is needed.
package storage
