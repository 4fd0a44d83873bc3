// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/vellum-project/vellum/lib/ref"
)

// Digest is a 32-byte BLAKE3 digest addressing one revision snapshot.
type Digest [32]byte

// snapshotDomainKey is the BLAKE3 keyed-hash key for revision
// snapshots. A fixed constant; changing it invalidates every stored
// digest. The bytes are the ASCII domain name, zero-padded to 32.
var snapshotDomainKey = [32]byte{
	'v', 'e', 'l', 'l', 'u', 'm', '.', 'r', 'e', 'v', 'i', 's', 'i', 'o', 'n', '.',
	's', 'n', 'a', 'p', 's', 'h', 'o', 't', 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashSnapshot computes the digest of an uncompressed snapshot.
// Digests are computed before compression so they stay stable if the
// compression level ever changes.
func HashSnapshot(data []byte) Digest {
	hasher, err := blake3.NewKeyed(snapshotDomainKey[:])
	if err != nil {
		panic("storage: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	hasher.Sum(digest[:0])
	return digest
}

// String returns the digest in lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a 64-character hex digest.
func ParseDigest(raw string) (Digest, error) {
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return Digest{}, fmt.Errorf("storage: parsing digest %q: %w", raw, err)
	}
	if len(decoded) != len(Digest{}) {
		return Digest{}, fmt.Errorf("storage: digest %q has %d bytes, want %d", raw, len(decoded), len(Digest{}))
	}
	var digest Digest
	copy(digest[:], decoded)
	return digest, nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Revision is one entry in a data base's revision log. Number starts
// at 1 and increments per commit; Digest addresses the snapshot blob.
type Revision struct {
	Number  uint64     `cbor:"1,keyasint"`
	Digest  Digest     `cbor:"2,keyasint"`
	Message string     `cbor:"3,keyasint"`
	User    ref.UserID `cbor:"4,keyasint"`
	At      time.Time  `cbor:"5,keyasint"`
}

// Store is the persistence surface the kernel depends on. All byte
// payloads are opaque to the store; callers encode them with
// lib/codec. Read methods return (nil, nil) when the record has never
// been written.
type Store interface {
	// ReadUsers and WriteUsers persist the user tree snapshot.
	ReadUsers() ([]byte, error)
	WriteUsers(data []byte) error

	// ReadDataBases and WriteDataBases persist the data base
	// collection metadata (names, access, lock, current revision).
	ReadDataBases() ([]byte, error)
	WriteDataBases(data []byte) error

	// AppendRevision stores a snapshot blob under its digest and
	// appends the revision header to the data base's log. The
	// revision's Digest must equal HashSnapshot(snapshot).
	AppendRevision(db ref.DataBaseID, revision Revision, snapshot []byte) error

	// Revisions lists a data base's revision log in append order.
	// An unknown data base yields an empty log, not an error.
	Revisions(db ref.DataBaseID) ([]Revision, error)

	// ReadSnapshot fetches and decompresses one snapshot blob,
	// verifying its digest.
	ReadSnapshot(db ref.DataBaseID, digest Digest) ([]byte, error)

	// RemoveDataBase deletes a data base's revision log and blobs.
	RemoveDataBase(db ref.DataBaseID) error
}
