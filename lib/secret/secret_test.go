// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestReadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	if err := os.WriteFile(path, []byte("  hunter2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFromPath(path)
	if err != nil {
		t.Fatalf("ReadFromPath: %v", err)
	}
	if !bytes.Equal(got, []byte("hunter2")) {
		t.Errorf("got %q, want %q", got, "hunter2")
	}
}

func TestReadFromPathEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	if err := os.WriteFile(path, []byte("   \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFromPath(path); err == nil {
		t.Fatal("ReadFromPath succeeded on whitespace-only file")
	}
}

func TestReadFromPathMissing(t *testing.T) {
	if _, err := ReadFromPath(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("ReadFromPath succeeded on missing file")
	}
}

func TestZero(t *testing.T) {
	b := []byte("topsecret")
	Zero(b)
	for i, c := range b {
		if c != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}
