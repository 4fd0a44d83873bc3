// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessiontoken mints and verifies the opaque tokens returned
// by Login.
//
// A token is a CBOR-encoded payload followed by a 64-byte Ed25519
// signature from the server's session key. The token is the client's
// only proof of its session; the server additionally keeps the live
// session registry, so verification alone never suffices: a verified
// token whose session has been logged out or kicked is still rejected
// at the registry.
//
// The signing key lives only in server memory. Restarting the server
// rotates it, which invalidates all outstanding tokens; sessions do
// not survive restarts.
package sessiontoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/codec"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"

	"github.com/oklog/ulid/v2"
)

// signatureSize is the fixed size of an Ed25519 signature.
const signatureSize = ed25519.SignatureSize

// Token is the CBOR payload of a session token.
type Token struct {
	// Subject is the authenticated user.
	Subject ref.UserID `cbor:"1,keyasint"`

	// Authority is the session's capability level, fixed at login.
	Authority access.Authority `cbor:"2,keyasint"`

	// ID uniquely identifies this session. The registry indexes live
	// sessions by it.
	ID string `cbor:"3,keyasint"`

	// IssuedAt is a Unix timestamp (seconds) of when the session was
	// created.
	IssuedAt int64 `cbor:"4,keyasint"`

	// ExpiresAt is a Unix timestamp (seconds) after which the token
	// is invalid regardless of registry state.
	ExpiresAt int64 `cbor:"5,keyasint"`
}

// Keypair is the server's session signing key. Generated fresh at
// server open.
type Keypair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewKeypair generates a session signing key.
func NewKeypair() (*Keypair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: generating keypair: %w", err)
	}
	return &Keypair{Public: public, private: private}, nil
}

// Mint creates a signed token for subject, valid for ttl from now. It
// returns the wire bytes and the decoded payload (whose ID the caller
// registers).
func (k *Keypair) Mint(subject ref.UserID, authority access.Authority, now time.Time, ttl time.Duration) ([]byte, *Token, error) {
	token := &Token{
		Subject:   subject,
		Authority: authority,
		ID:        ulid.Make().String(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	payload, err := codec.Marshal(token)
	if err != nil {
		return nil, nil, fmt.Errorf("sessiontoken: encoding payload: %w", err)
	}
	signature := ed25519.Sign(k.private, payload)

	wire := make([]byte, len(payload)+signatureSize)
	copy(wire, payload)
	copy(wire[len(payload):], signature)
	return wire, token, nil
}

// Verify checks the signature and expiry of wire bytes at the given
// time and returns the decoded payload. All failure modes map to
// AuthenticationExpired: a caller presenting a malformed or foreign
// token learns nothing beyond "this session is not valid".
func (k *Keypair) Verify(wire []byte, now time.Time) (*Token, error) {
	if len(wire) <= signatureSize {
		return nil, fault.New(fault.AuthenticationExpired, "token too short")
	}
	split := len(wire) - signatureSize
	payload, signature := wire[:split], wire[split:]

	if !ed25519.Verify(k.Public, payload, signature) {
		return nil, fault.New(fault.AuthenticationExpired, "token signature invalid")
	}
	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return nil, fault.Wrap(fault.AuthenticationExpired, err, "token payload invalid")
	}
	if now.Unix() >= token.ExpiresAt {
		return nil, fault.New(fault.AuthenticationExpired, "token expired")
	}
	return &token, nil
}
