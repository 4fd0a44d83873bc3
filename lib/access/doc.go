// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package access defines Vellum's authorization model: login-time
// authority, per-item ranked access tiers, and the metadata records
// (AccessInfo, LockInfo, BanInfo) attached to protectable items.
//
// Authority is a property of a session, fixed at login: None, Guest,
// Member, or Admin. AccessType is a property of one user's standing on
// one item: Guest < Editor < Developer < Master < Owner. The two meet
// in Check, the single evaluation rule every protected operation runs
// before mutating anything.
//
// The records here are pure values. They carry no locks and no
// back-references; the owning entity's dispatcher serializes all
// mutation, and events carry copies.
package access
