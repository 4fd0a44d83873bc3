// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/vellum-project/vellum/lib/codec"
	"github.com/vellum-project/vellum/lib/ref"
)

// zstdEncoder and zstdDecoder are reused across calls. Both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// FileStore is the file-backed Store. Layout under the root
// directory:
//
//	users.cbor                    user tree snapshot
//	databases.cbor                data base collection snapshot
//	revisions/<dbid>/log.cbor     revision headers, append order
//	revisions/<dbid>/<digest>.zst zstd-compressed snapshot blobs
//
// Metadata writes go through a temp file and rename so a crash never
// leaves a truncated snapshot.
type FileStore struct {
	root string
}

// NewFileStore opens (creating if needed) a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "revisions"), 0o700); err != nil {
		return nil, fmt.Errorf("storage: creating %s: %w", dir, err)
	}
	return &FileStore{root: dir}, nil
}

func (s *FileStore) ReadUsers() ([]byte, error) {
	return s.readMeta("users.cbor")
}

func (s *FileStore) WriteUsers(data []byte) error {
	return s.writeMeta("users.cbor", data)
}

func (s *FileStore) ReadDataBases() ([]byte, error) {
	return s.readMeta("databases.cbor")
}

func (s *FileStore) WriteDataBases(data []byte) error {
	return s.writeMeta("databases.cbor", data)
}

func (s *FileStore) readMeta(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: reading %s: %w", name, err)
	}
	return data, nil
}

func (s *FileStore) writeMeta(name string, data []byte) error {
	return atomicWrite(filepath.Join(s.root, name), data)
}

// AppendRevision stores the snapshot blob then rewrites the log. The
// blob is written first so a crash between the two steps leaves an
// orphaned blob, never a dangling log entry.
func (s *FileStore) AppendRevision(db ref.DataBaseID, revision Revision, snapshot []byte) error {
	if got := HashSnapshot(snapshot); got != revision.Digest {
		return fmt.Errorf("storage: snapshot digest %s does not match revision digest %s", got, revision.Digest)
	}
	dir := s.revisionDir(db)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("storage: creating %s: %w", dir, err)
	}
	compressed := zstdEncoder.EncodeAll(snapshot, nil)
	blobPath := filepath.Join(dir, revision.Digest.String()+".zst")
	if err := atomicWrite(blobPath, compressed); err != nil {
		return err
	}

	log, err := s.Revisions(db)
	if err != nil {
		return err
	}
	log = append(log, revision)
	encoded, err := codec.Marshal(log)
	if err != nil {
		return fmt.Errorf("storage: encoding revision log: %w", err)
	}
	return atomicWrite(filepath.Join(dir, "log.cbor"), encoded)
}

func (s *FileStore) Revisions(db ref.DataBaseID) ([]Revision, error) {
	data, err := os.ReadFile(filepath.Join(s.revisionDir(db), "log.cbor"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: reading revision log: %w", err)
	}
	var log []Revision
	if err := codec.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("storage: decoding revision log: %w", err)
	}
	return log, nil
}

func (s *FileStore) ReadSnapshot(db ref.DataBaseID, digest Digest) ([]byte, error) {
	blobPath := filepath.Join(s.revisionDir(db), digest.String()+".zst")
	compressed, err := os.ReadFile(blobPath)
	if err != nil {
		return nil, fmt.Errorf("storage: reading snapshot %s: %w", digest, err)
	}
	snapshot, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: decompressing snapshot %s: %w", digest, err)
	}
	if got := HashSnapshot(snapshot); got != digest {
		return nil, fmt.Errorf("storage: snapshot %s failed digest verification (got %s)", digest, got)
	}
	return snapshot, nil
}

func (s *FileStore) RemoveDataBase(db ref.DataBaseID) error {
	if err := os.RemoveAll(s.revisionDir(db)); err != nil {
		return fmt.Errorf("storage: removing revisions for %s: %w", db, err)
	}
	return nil
}

func (s *FileStore) revisionDir(db ref.DataBaseID) string {
	return filepath.Join(s.root, "revisions", db.String())
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("storage: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: renaming %s: %w", tmp, err)
	}
	return nil
}
