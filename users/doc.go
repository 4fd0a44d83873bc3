// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package users implements the user tree and the session registry.
//
// The [Context] is a dispatcher-owned actor holding the category/user
// hierarchy, the live sessions, and the server's token signing key.
// Login mints an Ed25519-signed token; Authenticate resolves a token
// back to its live [Authentication]; logout, kick, ban, and server
// shutdown expire sessions, after which every use of the expired
// Authentication fails with an AuthenticationExpired fault.
//
// User secrets are stored as argon2id digests and never leave the
// context. The whole tree (categories, users, bans, digests) persists
// as one CBOR snapshot through the storage layer and rehydrates on
// Open.
package users
