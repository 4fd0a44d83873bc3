// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"context"
	"fmt"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/codec"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/lib/tree"
	"github.com/vellum-project/vellum/storage"
	"github.com/vellum-project/vellum/users"
)

// itemTree selects the tree for a kind. Dispatcher only.
func (d *DataBase) itemTree(kind ItemKind) *tree.Tree[*item] {
	if kind == KindType {
		return d.types
	}
	return d.tables
}

// AddNewItemCategory creates an item category. Requires Loaded and
// Developer tier.
func (d *DataBase) AddNewItemCategory(ctx context.Context, auth *users.Authentication, kind ItemKind, parent ref.Path, name ref.Name) (ref.TaskID, error) {
	return d.mutateItems(ctx, auth, access.TierStructure, fmt.Sprintf("add %s category %s", kind, name),
		func() (*dispatch.Event[ItemsEvent], []ItemChange, error) {
			path, err := d.itemTree(kind).AddCategory(parent, name)
			if err != nil {
				return nil, nil, err
			}
			return d.itemsCreated, []ItemChange{{Kind: kind, Path: path}}, nil
		})
}

// AddNewItem creates a table or type item. Requires Loaded and
// Developer tier.
func (d *DataBase) AddNewItem(ctx context.Context, auth *users.Authentication, kind ItemKind, parent ref.Path, name ref.Name, comment string) (ref.TaskID, error) {
	return d.mutateItems(ctx, auth, access.TierStructure, fmt.Sprintf("add %s %s", kind, name),
		func() (*dispatch.Event[ItemsEvent], []ItemChange, error) {
			record := newItem(comment, access.Sign(auth.ID(), d.owner.clock.Now()))
			path, err := d.itemTree(kind).Add(parent, name, record)
			if err != nil {
				return nil, nil, err
			}
			return d.itemsCreated, []ItemChange{{Kind: kind, Path: path}}, nil
		})
}

// RenameItem renames an item or category. Requires Loaded and
// Developer tier.
func (d *DataBase) RenameItem(ctx context.Context, auth *users.Authentication, kind ItemKind, path ref.Path, name ref.Name) (ref.TaskID, error) {
	return d.mutateItems(ctx, auth, access.TierStructure, fmt.Sprintf("rename %s %s", kind, path),
		func() (*dispatch.Event[ItemsEvent], []ItemChange, error) {
			var renamed ref.Path
			var err error
			if path.IsCategory() {
				renamed, err = d.itemTree(kind).RenameCategory(path, name)
			} else {
				renamed, err = d.itemTree(kind).Rename(path, name)
			}
			if err != nil {
				return nil, nil, err
			}
			return d.itemsRenamed, []ItemChange{{Kind: kind, Path: renamed, OldPath: path}}, nil
		})
}

// MoveItem moves an item or category under a new parent. Requires
// Loaded and Developer tier.
func (d *DataBase) MoveItem(ctx context.Context, auth *users.Authentication, kind ItemKind, path, newParent ref.Path) (ref.TaskID, error) {
	return d.mutateItems(ctx, auth, access.TierStructure, fmt.Sprintf("move %s %s", kind, path),
		func() (*dispatch.Event[ItemsEvent], []ItemChange, error) {
			var moved ref.Path
			var err error
			if path.IsCategory() {
				moved, err = d.itemTree(kind).MoveCategory(path, newParent)
			} else {
				moved, err = d.itemTree(kind).Move(path, newParent)
			}
			if err != nil {
				return nil, nil, err
			}
			return d.itemsMoved, []ItemChange{{Kind: kind, Path: moved, OldPath: path}}, nil
		})
}

// DeleteItem deletes an item or an empty category. Requires Loaded
// and Master tier. An item with an open edit session cannot be
// deleted.
func (d *DataBase) DeleteItem(ctx context.Context, auth *users.Authentication, kind ItemKind, path ref.Path) (ref.TaskID, error) {
	return d.mutateItems(ctx, auth, access.TierDestroy, fmt.Sprintf("delete %s %s", kind, path),
		func() (*dispatch.Event[ItemsEvent], []ItemChange, error) {
			if d.editors[path] {
				return nil, nil, fault.New(fault.InvalidOperation, "%s %s has an open edit session", kind, path)
			}
			var err error
			if path.IsCategory() {
				err = d.itemTree(kind).DeleteCategory(path)
			} else {
				err = d.itemTree(kind).Delete(path)
			}
			if err != nil {
				return nil, nil, err
			}
			return d.itemsDeleted, []ItemChange{{Kind: kind, Path: path}}, nil
		})
}

// GetItemInfo returns the snapshot of one item.
func (d *DataBase) GetItemInfo(ctx context.Context, auth *users.Authentication, kind ItemKind, path ref.Path) (ItemInfo, error) {
	var info ItemInfo
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if err := d.checkAccess(auth, access.TierRead); err != nil {
			return err
		}
		if d.currentState() != StateLoaded {
			return fault.New(fault.InvalidOperation, "data base %s is not loaded", d.Name())
		}
		record, ok := d.itemTree(kind).Item(path)
		if !ok {
			return fault.New(fault.NotFound, "%s %s does not exist", kind, path)
		}
		info = ItemInfo{
			Kind:     kind,
			Path:     path,
			Comment:  record.comment,
			Created:  record.created,
			Modified: record.modified,
			RowCount: len(record.rows),
		}
		return nil
	})
	return info, err
}

// GetItemMetaData returns the category paths and item snapshots of
// one tree.
func (d *DataBase) GetItemMetaData(ctx context.Context, auth *users.Authentication, kind ItemKind) ([]ref.Path, []ItemInfo, error) {
	var categories []ref.Path
	var infos []ItemInfo
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if err := d.checkAccess(auth, access.TierRead); err != nil {
			return err
		}
		if d.currentState() != StateLoaded {
			return fault.New(fault.InvalidOperation, "data base %s is not loaded", d.Name())
		}
		t := d.itemTree(kind)
		categories = t.Categories()
		for _, path := range t.Items() {
			record, _ := t.Item(path)
			infos = append(infos, ItemInfo{
				Kind:     kind,
				Path:     path,
				Comment:  record.comment,
				Created:  record.created,
				Modified: record.modified,
				RowCount: len(record.rows),
			})
		}
		return nil
	})
	return categories, infos, err
}

// ContainsItem reports whether an item or category exists.
func (d *DataBase) ContainsItem(ctx context.Context, auth *users.Authentication, kind ItemKind, path ref.Path) (bool, error) {
	var found bool
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if path.IsCategory() {
			found = d.itemTree(kind).ContainsCategory(path)
		} else {
			found = d.itemTree(kind).ContainsItem(path)
		}
		return nil
	})
	return found, err
}

// mutateItems runs one structural mutation under the common gates:
// live session, Loaded, lock and tier check, no foreign transaction.
// On success it commits a revision (unless a transaction is open,
// which batches), emits the item event, and completes the task.
func (d *DataBase) mutateItems(ctx context.Context, auth *users.Authentication, required access.AccessType, message string, apply func() (*dispatch.Event[ItemsEvent], []ItemChange, error)) (ref.TaskID, error) {
	var task ref.TaskID
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if d.currentState() != StateLoaded {
			return fault.New(fault.InvalidOperation, "data base %s is not loaded", d.Name())
		}
		if err := d.checkLock(auth, required); err != nil {
			return err
		}
		if d.transaction != nil && d.transaction.owner != auth && auth.Authority() != access.AuthorityAdmin {
			return fault.New(fault.InvalidOperation, "data base %s has a transaction open by %s", d.Name(), d.transaction.owner.ID())
		}
		before := d.contents()
		event, changes, err := apply()
		if err != nil {
			return err
		}
		if d.transaction == nil {
			if err := d.commitRevision(auth.ID(), message); err != nil {
				d.restoreContents(before)
				return err
			}
		}
		task = ref.NewTaskID()
		event.Emit(ItemsEvent{InvokeID: auth.InvokeID(), TaskID: task, Items: changes})
		d.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// commitRevision appends the current contents to the revision log and
// bumps the revision number. Dispatcher only.
func (d *DataBase) commitRevision(user ref.UserID, message string) error {
	data, err := codec.Marshal(d.contents())
	if err != nil {
		return fault.Wrap(fault.Unknown, err, "encoding contents of %s", d.Name())
	}
	d.mu.Lock()
	number := d.revision + 1
	d.mu.Unlock()
	revision := storage.Revision{
		Number:  number,
		Digest:  storage.HashSnapshot(data),
		Message: message,
		User:    user,
		At:      d.owner.clock.Now(),
	}
	if err := d.owner.store.AppendRevision(d.ID(), revision, data); err != nil {
		return err
	}
	d.mu.Lock()
	d.revision = number
	d.mu.Unlock()
	if err := d.owner.persist(); err != nil {
		d.owner.logger.Error("persisting collection metadata", "name", d.Name(), "error", err)
	}
	return nil
}
