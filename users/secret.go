// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters. Stored per digest so they can be raised later
// without invalidating existing records.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// secretDigest is an argon2id password record.
type secretDigest struct {
	Salt    []byte `cbor:"1,keyasint"`
	Digest  []byte `cbor:"2,keyasint"`
	Time    uint32 `cbor:"3,keyasint"`
	Memory  uint32 `cbor:"4,keyasint"`
	Threads uint8  `cbor:"5,keyasint"`
}

// hashSecret derives a fresh digest for a secret.
func hashSecret(secret []byte) (secretDigest, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return secretDigest{}, fmt.Errorf("users: generating salt: %w", err)
	}
	return secretDigest{
		Salt:    salt,
		Digest:  argon2.IDKey(secret, salt, argonTime, argonMemory, argonThreads, argonKeyLen),
		Time:    argonTime,
		Memory:  argonMemory,
		Threads: argonThreads,
	}, nil
}

// verify reports whether secret matches the digest, in constant time
// over the digest bytes.
func (d secretDigest) verify(secret []byte) bool {
	if len(d.Salt) == 0 || len(d.Digest) == 0 {
		return false
	}
	derived := argon2.IDKey(secret, d.Salt, d.Time, d.Memory, d.Threads, uint32(len(d.Digest)))
	return subtle.ConstantTimeCompare(derived, d.Digest) == 1
}
