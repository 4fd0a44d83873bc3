// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package server assembles the kernel contexts into one host with a
// cooperative shutdown protocol. Observers register flush work that
// runs between the close request and the context teardown; a delayed
// shutdown stays cancellable until its timer fires.
package server
