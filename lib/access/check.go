// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package access

import (
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
)

// impliedTier is the baseline tier a session's authority grants on a
// public item. Private items imply nothing: standing comes only from
// ownership or the member list.
func impliedTier(authority Authority) AccessType {
	switch authority {
	case AuthorityGuest:
		return AccessGuest
	case AuthorityMember:
		return AccessDeveloper
	case AuthorityAdmin:
		return AccessOwner
	default:
		return AccessNone
	}
}

// EffectiveTier returns the tier the actor holds on an item: the
// greater of the explicit standing (owner or member grant) and, for
// public items, the authority-implied baseline.
func EffectiveTier(info *AccessInfo, actor ref.UserID, authority Authority) AccessType {
	tier := info.GetAccessType(actor)
	if authority == AuthorityAdmin {
		// Admin passes every check even on private items.
		return AccessOwner
	}
	if info.Public {
		if implied := impliedTier(authority); implied > tier {
			tier = implied
		}
	}
	return tier
}

// Check is the authorization rule evaluated before every protected
// operation. It fails with PermissionDenied when the actor's effective
// tier on the item is below required.
func Check(info *AccessInfo, actor ref.UserID, authority Authority, required AccessType) error {
	if EffectiveTier(info, actor, authority) >= required {
		return nil
	}
	return fault.New(fault.PermissionDenied,
		"user %q requires %s access", actor, required)
}

// CheckLock extends Check with the advisory lock: the operation also
// fails with PermissionDenied when another user holds the lock. Admin
// sessions bypass the lock the same way they bypass tiers.
func CheckLock(info *AccessInfo, lock *LockInfo, actor ref.UserID, authority Authority, required AccessType) error {
	if err := Check(info, actor, authority, required); err != nil {
		return err
	}
	if authority == AuthorityAdmin {
		return nil
	}
	if !lock.Permits(actor) {
		return fault.New(fault.PermissionDenied,
			"item is locked by %q: %s", lock.Locker, lock.Comment)
	}
	return nil
}
