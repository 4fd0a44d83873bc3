// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
)

// Member is one entry in an item's access list.
type Member struct {
	User ref.UserID `cbor:"user"`
	Type AccessType `cbor:"type"`
}

// AccessInfo is the access metadata of one protectable item. Members
// keep insertion order: the list reads as the history of grants, and
// events report it unshuffled. SetMember replaces a member's tier in
// place; RemoveMember deletes the entry.
//
// The owner is implicitly AccessOwner regardless of the member list.
type AccessInfo struct {
	// Public items are reachable by any authenticated session,
	// with the caller's authority implying a baseline tier.
	// Private items admit only the owner and listed members.
	Public bool `cbor:"public"`

	// Owner is the user that created the item (or was assigned
	// ownership). Zero for items that have never been made private,
	// matching a fresh public item.
	Owner ref.UserID `cbor:"owner,omitempty"`

	// Members lists explicit grants in grant order.
	Members []Member `cbor:"members,omitempty"`

	// Signature records the latest access metadata change.
	Signature Signature `cbor:"signature,omitempty"`
}

// IsOwner reports whether user owns the item.
func (a *AccessInfo) IsOwner(user ref.UserID) bool {
	return !a.Owner.IsZero() && a.Owner == user
}

// IsMember reports whether user has an explicit grant.
func (a *AccessInfo) IsMember(user ref.UserID) bool {
	for _, m := range a.Members {
		if m.User == user {
			return true
		}
	}
	return false
}

// GetAccessType returns the tier user holds on the item: AccessOwner
// for the owner, the granted tier for members, AccessNone otherwise.
func (a *AccessInfo) GetAccessType(user ref.UserID) AccessType {
	if a.IsOwner(user) {
		return AccessOwner
	}
	for _, m := range a.Members {
		if m.User == user {
			return m.Type
		}
	}
	return AccessNone
}

// AddMember appends a grant. The user must not already be a member
// and the tier must be grantable.
func (a *AccessInfo) AddMember(user ref.UserID, tier AccessType) error {
	if user.IsZero() {
		return fault.New(fault.ArgumentNull, "member user ID is required")
	}
	if !tier.Grantable() {
		return fault.New(fault.ArgumentInvalid, "access type %q cannot be granted", tier)
	}
	if a.IsOwner(user) {
		return fault.New(fault.ArgumentInvalid, "user %q owns the item", user)
	}
	if a.IsMember(user) {
		return fault.New(fault.ArgumentInvalid, "user %q is already a member", user)
	}
	a.Members = append(a.Members, Member{User: user, Type: tier})
	return nil
}

// SetMember replaces an existing member's tier, preserving the entry's
// position in the grant order.
func (a *AccessInfo) SetMember(user ref.UserID, tier AccessType) error {
	if user.IsZero() {
		return fault.New(fault.ArgumentNull, "member user ID is required")
	}
	if !tier.Grantable() {
		return fault.New(fault.ArgumentInvalid, "access type %q cannot be granted", tier)
	}
	for i, m := range a.Members {
		if m.User == user {
			a.Members[i].Type = tier
			return nil
		}
	}
	return fault.New(fault.NotFound, "user %q is not a member", user)
}

// RemoveMember deletes a member's grant.
func (a *AccessInfo) RemoveMember(user ref.UserID) error {
	if user.IsZero() {
		return fault.New(fault.ArgumentNull, "member user ID is required")
	}
	for i, m := range a.Members {
		if m.User == user {
			a.Members = append(a.Members[:i], a.Members[i+1:]...)
			return nil
		}
	}
	return fault.New(fault.NotFound, "user %q is not a member", user)
}

// Clone returns a deep copy for event snapshots, so subscribers can
// never observe (or mutate) the live record.
func (a *AccessInfo) Clone() AccessInfo {
	clone := *a
	if a.Members != nil {
		clone.Members = make([]Member, len(a.Members))
		copy(clone.Members, a.Members)
	}
	return clone
}
