// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package ref_test

import (
	"strings"
	"testing"

	"github.com/vellum-project/vellum/lib/ref"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "simple", raw: "customers"},
		{name: "with-dash", raw: "north-east"},
		{name: "with-underscore", raw: "item_defs"},
		{name: "with-dot", raw: "v1.2"},
		{name: "with-digits", raw: "q1"},
		{name: "uppercase", raw: "Sales"},
		{name: "empty", raw: "", wantErr: true},
		{name: "separator", raw: "a/b", wantErr: true},
		{name: "leading-space", raw: " a", wantErr: true},
		{name: "trailing-space", raw: "a ", wantErr: true},
		{name: "leading-dash", raw: "-a", wantErr: true},
		{name: "leading-dot", raw: ".hidden", wantErr: true},
		{name: "dot", raw: ".", wantErr: true},
		{name: "dotdot", raw: "..", wantErr: true},
		{name: "reserved-system", raw: "system", wantErr: true},
		{name: "too-long", raw: strings.Repeat("a", ref.MaxNameLength+1), wantErr: true},
		{name: "max-length", raw: strings.Repeat("a", ref.MaxNameLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ref.ParseName(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got name %v", parsed)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if parsed.String() != tt.raw {
				t.Errorf("String() = %q, want %q", parsed.String(), tt.raw)
			}
			if parsed.IsZero() {
				t.Error("IsZero() = true for valid name")
			}
		})
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		isCategory bool
		wantErr    bool
	}{
		{name: "root", raw: "/", isCategory: true},
		{name: "category", raw: "/tables/north/", isCategory: true},
		{name: "item", raw: "/tables/north/customers"},
		{name: "top-level-item", raw: "/customers"},
		{name: "empty", raw: "", wantErr: true},
		{name: "relative", raw: "tables/north", wantErr: true},
		{name: "empty-segment", raw: "/tables//x", wantErr: true},
		{name: "bad-segment", raw: "/tables/.hidden/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := ref.ParsePath(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got path %v", path)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if path.String() != tt.raw {
				t.Errorf("String() = %q, want %q", path.String(), tt.raw)
			}
			if path.IsCategory() != tt.isCategory {
				t.Errorf("IsCategory() = %v, want %v", path.IsCategory(), tt.isCategory)
			}
		})
	}
}

func TestPathNavigation(t *testing.T) {
	item := ref.MustPath("/tables/north/customers")
	if got := item.Name().String(); got != "customers" {
		t.Errorf("Name() = %q, want %q", got, "customers")
	}
	if got := item.Parent().String(); got != "/tables/north/" {
		t.Errorf("Parent() = %q, want %q", got, "/tables/north/")
	}

	category := item.Parent()
	if got := category.Name().String(); got != "north" {
		t.Errorf("category Name() = %q, want %q", got, "north")
	}
	if got := category.Parent().String(); got != "/tables/" {
		t.Errorf("category Parent() = %q, want %q", got, "/tables/")
	}

	if got := ref.RootPath.Parent(); !got.IsRoot() {
		t.Errorf("root Parent() = %v, want root", got)
	}
	if !ref.RootPath.Name().IsZero() {
		t.Error("root Name() is not zero")
	}
}

func TestPathConstruction(t *testing.T) {
	category := ref.CategoryPath(ref.MustName("tables"), ref.MustName("north"))
	if got := category.String(); got != "/tables/north/" {
		t.Errorf("CategoryPath = %q, want %q", got, "/tables/north/")
	}
	item := ref.ItemPath(category, ref.MustName("customers"))
	if got := item.String(); got != "/tables/north/customers" {
		t.Errorf("ItemPath = %q, want %q", got, "/tables/north/customers")
	}
	child := category.Child(ref.MustName("west"))
	if got := child.String(); got != "/tables/north/west/" {
		t.Errorf("Child = %q, want %q", got, "/tables/north/west/")
	}
}

func TestPathAncestry(t *testing.T) {
	root := ref.RootPath
	category := ref.MustPath("/tables/")
	nested := ref.MustPath("/tables/north/")
	item := ref.MustPath("/tables/north/customers")

	tests := []struct {
		name     string
		ancestor ref.Path
		other    ref.Path
		want     bool
	}{
		{"root-contains-category", root, category, true},
		{"root-contains-item", root, item, true},
		{"category-contains-nested", category, nested, true},
		{"category-contains-item", category, item, true},
		{"not-self", category, category, false},
		{"reversed", nested, category, false},
		{"item-contains-nothing", item, nested, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ancestor.IsAncestorOf(tt.other); got != tt.want {
				t.Errorf("IsAncestorOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseUserID(t *testing.T) {
	if _, err := ref.ParseUserID("bob"); err != nil {
		t.Fatalf("ParseUserID(bob): %v", err)
	}
	if _, err := ref.ParseUserID("system"); err == nil {
		t.Error("ParseUserID(system) did not fail")
	}
	if _, err := ref.ParseUserID("a/b"); err == nil {
		t.Error("ParseUserID(a/b) did not fail")
	}
	admin, err := ref.ParseUserID("admin")
	if err != nil {
		t.Fatalf("ParseUserID(admin): %v", err)
	}
	if admin != ref.AdminID {
		t.Errorf("ParseUserID(admin) = %v, want AdminID", admin)
	}
}

func TestTaskIDRoundTrip(t *testing.T) {
	id := ref.NewTaskID()
	if id.IsZero() {
		t.Fatal("NewTaskID returned zero ID")
	}
	parsed, err := ref.ParseTaskID(id.String())
	if err != nil {
		t.Fatalf("ParseTaskID: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip = %v, want %v", parsed, id)
	}
	if ref.NewTaskID() == id {
		t.Error("two TaskIDs are equal")
	}
}
