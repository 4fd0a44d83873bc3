// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/ref"
)

// user is the live record for one account. Only the context's
// dispatcher touches it.
type user struct {
	id          ref.UserID
	displayName string
	authority   access.Authority
	secret      secretDigest
	ban         access.BanInfo
	created     access.Signature
	modified    access.Signature
}

// UserInfo is the immutable snapshot of a user carried in events and
// returned by queries. It never references the live record.
type UserInfo struct {
	ID          ref.UserID
	Path        ref.Path
	DisplayName string
	Authority   access.Authority
	Ban         access.BanInfo
	Created     access.Signature
	Modified    access.Signature
	Online      bool
}

func (u *user) info(path ref.Path, online bool) UserInfo {
	return UserInfo{
		ID:          u.id,
		Path:        path,
		DisplayName: u.displayName,
		Authority:   u.authority,
		Ban:         u.ban,
		Created:     u.created,
		Modified:    u.modified,
		Online:      online,
	}
}

// userRecord is the persisted form of a user.
type userRecord struct {
	ID          ref.UserID       `cbor:"1,keyasint"`
	Path        ref.Path         `cbor:"2,keyasint"`
	DisplayName string           `cbor:"3,keyasint"`
	Authority   access.Authority `cbor:"4,keyasint"`
	Secret      secretDigest     `cbor:"5,keyasint"`
	Ban         access.BanInfo   `cbor:"6,keyasint"`
	Created     access.Signature `cbor:"7,keyasint"`
	Modified    access.Signature `cbor:"8,keyasint"`
}

// snapshot is the persisted form of the whole user tree.
type snapshot struct {
	Categories []ref.Path   `cbor:"1,keyasint"`
	Users      []userRecord `cbor:"2,keyasint"`
}
