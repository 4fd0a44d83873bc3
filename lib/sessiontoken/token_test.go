// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package sessiontoken_test

import (
	"testing"
	"time"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/lib/sessiontoken"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMintVerifyRoundTrip(t *testing.T) {
	keypair, err := sessiontoken.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	bob := ref.MustUserID("bob")

	wire, minted, err := keypair.Mint(bob, access.AuthorityMember, epoch, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if minted.ID == "" {
		t.Fatal("minted token has empty ID")
	}

	verified, err := keypair.Verify(wire, epoch.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if verified.Subject != bob {
		t.Errorf("Subject = %v, want bob", verified.Subject)
	}
	if verified.Authority != access.AuthorityMember {
		t.Errorf("Authority = %v, want member", verified.Authority)
	}
	if verified.ID != minted.ID {
		t.Errorf("ID = %q, want %q", verified.ID, minted.ID)
	}
}

func TestVerifyFailures(t *testing.T) {
	keypair, err := sessiontoken.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	otherKeypair, err := sessiontoken.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	bob := ref.MustUserID("bob")
	wire, _, err := keypair.Mint(bob, access.AuthorityMember, epoch, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	tampered := append([]byte(nil), wire...)
	tampered[0] ^= 0xff

	tests := []struct {
		name string
		wire []byte
		now  time.Time
		key  *sessiontoken.Keypair
	}{
		{"expired", wire, epoch.Add(time.Hour), keypair},
		{"expired-exactly", wire, epoch.Add(time.Hour), keypair},
		{"tampered", tampered, epoch, keypair},
		{"wrong-key", wire, epoch, otherKeypair},
		{"truncated", wire[:32], epoch, keypair},
		{"empty", nil, epoch, keypair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.key.Verify(tt.wire, tt.now); !fault.Is(err, fault.AuthenticationExpired) {
				t.Errorf("Verify = %v, want authentication expired", err)
			}
		})
	}
}

func TestTokenIDsUnique(t *testing.T) {
	keypair, err := sessiontoken.NewKeypair()
	if err != nil {
		t.Fatalf("NewKeypair: %v", err)
	}
	bob := ref.MustUserID("bob")
	_, first, err := keypair.Mint(bob, access.AuthorityMember, epoch, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	_, second, err := keypair.Mint(bob, access.AuthorityMember, epoch, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if first.ID == second.ID {
		t.Error("two minted tokens share an ID")
	}
}
