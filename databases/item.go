// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"fmt"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/ref"
)

// ItemKind selects one of a data base's two item trees.
type ItemKind int

const (
	// KindTable: schema-bearing table definitions.
	KindTable ItemKind = iota

	// KindType: shared type definitions referenced by tables.
	KindType
)

func (k ItemKind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindType:
		return "type"
	default:
		return fmt.Sprintf("ItemKind(%d)", int(k))
	}
}

// RowFields is one row's payload: opaque field name to value. The
// column schema itself belongs to the excluded storage layer.
type RowFields map[string]string

// item is the live record of a table or type. Owned by the data
// base's dispatcher.
type item struct {
	comment  string
	created  access.Signature
	modified access.Signature
	rows     map[string]RowFields
}

func newItem(comment string, signature access.Signature) *item {
	return &item{
		comment:  comment,
		created:  signature,
		modified: signature,
		rows:     map[string]RowFields{},
	}
}

func (it *item) clone() *item {
	rows := make(map[string]RowFields, len(it.rows))
	for id, fields := range it.rows {
		copied := make(RowFields, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		rows[id] = copied
	}
	return &item{
		comment:  it.comment,
		created:  it.created,
		modified: it.modified,
		rows:     rows,
	}
}

// ItemInfo is the immutable snapshot of an item carried in events and
// query results.
type ItemInfo struct {
	Kind     ItemKind
	Path     ref.Path
	Comment  string
	Created  access.Signature
	Modified access.Signature
	RowCount int
}

// itemRecord is the persisted form of an item inside a revision
// snapshot.
type itemRecord struct {
	Path     ref.Path             `cbor:"1,keyasint"`
	Comment  string               `cbor:"2,keyasint"`
	Created  access.Signature     `cbor:"3,keyasint"`
	Modified access.Signature     `cbor:"4,keyasint"`
	Rows     map[string]RowFields `cbor:"5,keyasint"`
}

// contentSnapshot is the persisted form of the item trees, the unit
// of one revision.
type contentSnapshot struct {
	TableCategories []ref.Path   `cbor:"1,keyasint"`
	Tables          []itemRecord `cbor:"2,keyasint"`
	TypeCategories  []ref.Path   `cbor:"3,keyasint"`
	Types           []itemRecord `cbor:"4,keyasint"`
}
