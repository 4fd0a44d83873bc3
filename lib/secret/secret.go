// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret reads secrets from files, stdin, or an interactive
// terminal prompt without echoing them.
package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"
)

// Zero overwrites b so the secret does not linger once the caller is
// done with it.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ReadFromPath reads a secret from a file path, or from the first
// line of stdin if path is "-". Leading and trailing whitespace is
// trimmed. Returns an error if the source is empty after trimming.
// The caller should Zero the returned bytes when finished.
func ReadFromPath(path string) ([]byte, error) {
	var data []byte

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return nil, fmt.Errorf("stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret is empty")
	}
	out := make([]byte, len(trimmed))
	copy(out, trimmed)
	Zero(data)
	return out, nil
}

// Prompt reads a secret from the controlling terminal with echo
// disabled. Fails when stdin is not a terminal; non-interactive
// callers should use ReadFromPath instead.
func Prompt(label string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading secret: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret is empty")
	}
	out := make([]byte, len(trimmed))
	copy(out, trimmed)
	Zero(data)
	return out, nil
}
