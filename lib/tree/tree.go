// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

// Package tree implements the generic category/leaf hierarchy shared
// by the user tree and the per-data-base item trees.
//
// A tree holds two kinds of nodes addressed by [ref.Path]: categories
// (paths ending in the separator, always including the root "/") and
// items (leaf values of type T). Categories and items are separate
// namespaces; a category "a/" and an item "a" may share a parent.
// Structural operations validate before mutating, so a failed call
// never leaves a partial change.
//
// Trees are not safe for concurrent use. Every tree in the kernel is
// owned by exactly one dispatcher and only touched on it.
package tree

import (
	"sort"

	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
)

// Tree is a category/leaf hierarchy with item values of type T.
type Tree[T any] struct {
	categories map[ref.Path]bool
	items      map[ref.Path]T
}

// New returns an empty tree containing only the root category.
func New[T any]() *Tree[T] {
	return &Tree[T]{
		categories: map[ref.Path]bool{ref.RootPath: true},
		items:      map[ref.Path]T{},
	}
}

// ContainsCategory reports whether path is a category in the tree.
func (t *Tree[T]) ContainsCategory(path ref.Path) bool {
	return t.categories[path]
}

// ContainsItem reports whether path is an item in the tree.
func (t *Tree[T]) ContainsItem(path ref.Path) bool {
	_, ok := t.items[path]
	return ok
}

// Item returns the value at an item path.
func (t *Tree[T]) Item(path ref.Path) (T, bool) {
	value, ok := t.items[path]
	return value, ok
}

// Categories returns all category paths sorted lexically, root first.
func (t *Tree[T]) Categories() []ref.Path {
	paths := make([]ref.Path, 0, len(t.categories))
	for path := range t.categories {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths
}

// Items returns all item paths sorted lexically.
func (t *Tree[T]) Items() []ref.Path {
	paths := make([]ref.Path, 0, len(t.items))
	for path := range t.items {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].String() < paths[j].String() })
	return paths
}

// Len returns the number of items in the tree.
func (t *Tree[T]) Len() int { return len(t.items) }

// AddCategory creates a child category under parent and returns its
// path. The parent must exist (NotFound); a sibling category with the
// same name is ArgumentInvalid.
func (t *Tree[T]) AddCategory(parent ref.Path, name ref.Name) (ref.Path, error) {
	if err := t.requireCategory(parent); err != nil {
		return ref.Path{}, err
	}
	path := parent.Child(name)
	if t.categories[path] {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "category %s already exists", path)
	}
	t.categories[path] = true
	return path, nil
}

// Add creates an item named name under parent with the given value
// and returns its path. The parent must exist (NotFound); a sibling
// item with the same name is ArgumentInvalid.
func (t *Tree[T]) Add(parent ref.Path, name ref.Name, value T) (ref.Path, error) {
	if err := t.requireCategory(parent); err != nil {
		return ref.Path{}, err
	}
	path := ref.ItemPath(parent, name)
	if _, ok := t.items[path]; ok {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "item %s already exists", path)
	}
	t.items[path] = value
	return path, nil
}

// RenameCategory renames a category in place, carrying every
// descendant category and item to the new prefix. Renaming the root
// is InvalidOperation; renaming to the current name is
// ArgumentInvalid, as is colliding with an existing sibling.
func (t *Tree[T]) RenameCategory(path ref.Path, name ref.Name) (ref.Path, error) {
	if path.IsRoot() {
		return ref.Path{}, fault.New(fault.InvalidOperation, "the root category cannot be renamed")
	}
	if !t.categories[path] {
		return ref.Path{}, fault.New(fault.NotFound, "category %s does not exist", path)
	}
	if path.Name() == name {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "category %s already has name %s", path, name)
	}
	target := path.Parent().Child(name)
	if t.categories[target] {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "category %s already exists", target)
	}
	t.relocateCategory(path, target)
	return target, nil
}

// MoveCategory moves a category under a new parent, carrying all
// descendants. Moving the root is InvalidOperation; moving to the
// current parent, or under the category's own subtree, is
// ArgumentInvalid; a missing new parent is NotFound.
func (t *Tree[T]) MoveCategory(path, newParent ref.Path) (ref.Path, error) {
	if path.IsRoot() {
		return ref.Path{}, fault.New(fault.InvalidOperation, "the root category cannot be moved")
	}
	if !t.categories[path] {
		return ref.Path{}, fault.New(fault.NotFound, "category %s does not exist", path)
	}
	if err := t.requireCategory(newParent); err != nil {
		return ref.Path{}, err
	}
	if newParent == path.Parent() {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "category %s is already under %s", path, newParent)
	}
	if path == newParent || path.IsAncestorOf(newParent) {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "category %s cannot move under its own subtree", path)
	}
	target := newParent.Child(path.Name())
	if t.categories[target] {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "category %s already exists", target)
	}
	t.relocateCategory(path, target)
	return target, nil
}

// DeleteCategory removes an empty category. The root is
// InvalidOperation, as is a category that still has child categories
// or items.
func (t *Tree[T]) DeleteCategory(path ref.Path) error {
	if path.IsRoot() {
		return fault.New(fault.InvalidOperation, "the root category cannot be deleted")
	}
	if !t.categories[path] {
		return fault.New(fault.NotFound, "category %s does not exist", path)
	}
	if t.hasChildren(path) {
		return fault.New(fault.InvalidOperation, "category %s is not empty", path)
	}
	delete(t.categories, path)
	return nil
}

// Rename renames an item in place. Renaming to the current name is
// ArgumentInvalid, as is colliding with a sibling.
func (t *Tree[T]) Rename(path ref.Path, name ref.Name) (ref.Path, error) {
	value, ok := t.items[path]
	if !ok {
		return ref.Path{}, fault.New(fault.NotFound, "item %s does not exist", path)
	}
	if path.Name() == name {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "item %s already has name %s", path, name)
	}
	target := ref.ItemPath(path.Parent(), name)
	if _, exists := t.items[target]; exists {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "item %s already exists", target)
	}
	delete(t.items, path)
	t.items[target] = value
	return target, nil
}

// Move moves an item under a new parent category. Moving to the
// current parent is ArgumentInvalid; a missing new parent is
// NotFound; a name collision at the destination is ArgumentInvalid.
func (t *Tree[T]) Move(path, newParent ref.Path) (ref.Path, error) {
	value, ok := t.items[path]
	if !ok {
		return ref.Path{}, fault.New(fault.NotFound, "item %s does not exist", path)
	}
	if err := t.requireCategory(newParent); err != nil {
		return ref.Path{}, err
	}
	if newParent == path.Parent() {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "item %s is already under %s", path, newParent)
	}
	target := ref.ItemPath(newParent, path.Name())
	if _, exists := t.items[target]; exists {
		return ref.Path{}, fault.New(fault.ArgumentInvalid, "item %s already exists", target)
	}
	delete(t.items, path)
	t.items[target] = value
	return target, nil
}

// Delete removes an item.
func (t *Tree[T]) Delete(path ref.Path) error {
	if _, ok := t.items[path]; !ok {
		return fault.New(fault.NotFound, "item %s does not exist", path)
	}
	delete(t.items, path)
	return nil
}

func (t *Tree[T]) requireCategory(path ref.Path) error {
	if !t.categories[path] {
		return fault.New(fault.NotFound, "category %s does not exist", path)
	}
	return nil
}

func (t *Tree[T]) hasChildren(path ref.Path) bool {
	for category := range t.categories {
		if path.IsAncestorOf(category) {
			return true
		}
	}
	for item := range t.items {
		if path.IsAncestorOf(item) {
			return true
		}
	}
	return false
}

// relocateCategory rewrites the prefix of the category and everything
// under it. Callers have already validated the move.
func (t *Tree[T]) relocateCategory(from, to ref.Path) {
	movedCategories := []ref.Path{}
	for category := range t.categories {
		if category == from || from.IsAncestorOf(category) {
			movedCategories = append(movedCategories, category)
		}
	}
	type movedItem struct {
		path  ref.Path
		value T
	}
	movedItems := []movedItem{}
	for item, value := range t.items {
		if from.IsAncestorOf(item) {
			movedItems = append(movedItems, movedItem{item, value})
		}
	}
	for _, category := range movedCategories {
		delete(t.categories, category)
		t.categories[rebase(category, from, to)] = true
	}
	for _, item := range movedItems {
		delete(t.items, item.path)
		t.items[rebase(item.path, from, to)] = item.value
	}
}

func rebase(path, from, to ref.Path) ref.Path {
	if path == from {
		return to
	}
	rebased, err := ref.ParsePath(to.String() + path.String()[len(from.String()):])
	if err != nil {
		panic("tree: rebasing " + path.String() + ": " + err.Error())
	}
	return rebased
}
