// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"context"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
)

// AddNewCategory creates a user category. Admin only.
func (c *Context) AddNewCategory(ctx context.Context, auth *Authentication, parent ref.Path, name ref.Name) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		before := c.currentSnapshot()
		path, err := c.tree.AddCategory(parent, name)
		if err != nil {
			return err
		}
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		c.itemsCreated.Emit(ItemsEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Items:    []ItemChange{{Path: path}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// AddNewUser creates an account under parent. Admin only; the user id
// doubles as the item name, so it must be unique across the whole
// tree, not just among siblings.
func (c *Context) AddNewUser(ctx context.Context, auth *Authentication, parent ref.Path, id ref.UserID, secret []byte, displayName string, authority access.Authority) (ref.TaskID, error) {
	if id.IsZero() {
		return ref.TaskID{}, fault.New(fault.ArgumentNull, "user id is required")
	}
	if len(secret) == 0 {
		return ref.TaskID{}, fault.New(fault.ArgumentNull, "secret is required")
	}
	if authority == access.AuthorityNone {
		return ref.TaskID{}, fault.New(fault.ArgumentInvalid, "authority None cannot log in")
	}
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		if _, exists := c.paths[id]; exists {
			return fault.New(fault.ArgumentInvalid, "user %s already exists", id)
		}
		digest, err := hashSecret(secret)
		if err != nil {
			return err
		}
		signature := access.Sign(auth.ID(), c.clock.Now())
		record := &user{
			id:          id,
			displayName: displayName,
			authority:   authority,
			secret:      digest,
			created:     signature,
			modified:    signature,
		}
		before := c.currentSnapshot()
		path, err := c.tree.Add(parent, id.Name(), record)
		if err != nil {
			return err
		}
		c.paths[id] = path
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		c.logger.Info("user created", "user", id, "by", auth.ID())
		c.itemsCreated.Emit(ItemsEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Items:    []ItemChange{{Path: path}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// RenameCategory renames a user category, carrying its subtree. Admin
// only.
func (c *Context) RenameCategory(ctx context.Context, auth *Authentication, path ref.Path, name ref.Name) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		before := c.currentSnapshot()
		renamed, err := c.tree.RenameCategory(path, name)
		if err != nil {
			return err
		}
		c.reindexPaths()
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		c.itemsRenamed.Emit(ItemsEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Items:    []ItemChange{{Path: renamed, OldPath: path}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// MoveCategory moves a user category under a new parent. Admin only.
func (c *Context) MoveCategory(ctx context.Context, auth *Authentication, path, newParent ref.Path) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		before := c.currentSnapshot()
		moved, err := c.tree.MoveCategory(path, newParent)
		if err != nil {
			return err
		}
		c.reindexPaths()
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		c.itemsMoved.Emit(ItemsEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Items:    []ItemChange{{Path: moved, OldPath: path}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// DeleteCategory removes an empty user category. Admin only.
func (c *Context) DeleteCategory(ctx context.Context, auth *Authentication, path ref.Path) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		before := c.currentSnapshot()
		if err := c.tree.DeleteCategory(path); err != nil {
			return err
		}
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		c.itemsDeleted.Emit(ItemsEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Items:    []ItemChange{{Path: path}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// MoveUser moves an account to a new category. Admin only. User ids
// are immutable, so there is no user rename.
func (c *Context) MoveUser(ctx context.Context, auth *Authentication, id ref.UserID, newParent ref.Path) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		_, path, err := c.lookup(id)
		if err != nil {
			return err
		}
		before := c.currentSnapshot()
		moved, err := c.tree.Move(path, newParent)
		if err != nil {
			return err
		}
		c.paths[id] = moved
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		c.itemsMoved.Emit(ItemsEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Items:    []ItemChange{{Path: moved, OldPath: path}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// DeleteUser removes an account. Admin only; deleting yourself, the
// admin account, or a logged-in user is InvalidOperation.
func (c *Context) DeleteUser(ctx context.Context, auth *Authentication, id ref.UserID) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		if id == auth.ID() {
			return fault.New(fault.InvalidOperation, "cannot delete yourself")
		}
		if id == ref.AdminID {
			return fault.New(fault.InvalidOperation, "the admin account cannot be deleted")
		}
		_, path, err := c.lookup(id)
		if err != nil {
			return err
		}
		if _, online := c.sessions[id]; online {
			return fault.New(fault.InvalidOperation, "user %s is logged in", id)
		}
		before := c.currentSnapshot()
		if err := c.tree.Delete(path); err != nil {
			return err
		}
		delete(c.paths, id)
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		c.logger.Info("user deleted", "user", id, "by", auth.ID())
		c.itemsDeleted.Emit(ItemsEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Items:    []ItemChange{{Path: path}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// UserChange selects the account fields SetUserInfo updates. Nil
// fields keep their value.
type UserChange struct {
	DisplayName *string

	// Secret replaces the password. A non-admin caller must supply
	// OldSecret matching the current one.
	Secret    []byte
	OldSecret []byte

	// Authority applies to future logins; live sessions keep the
	// authority they logged in with.
	Authority *access.Authority
}

// SetUserInfo updates an account. Admins may change anyone; a user
// may change their own display name and secret but not their own
// authority.
func (c *Context) SetUserInfo(ctx context.Context, auth *Authentication, target ref.UserID, change UserChange) (ref.TaskID, error) {
	if auth == nil {
		return ref.TaskID{}, fault.New(fault.ArgumentNull, "authentication is required")
	}
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.requireOpen(); err != nil {
			return err
		}
		if err := auth.Verify(); err != nil {
			return err
		}
		admin := auth.Authority() == access.AuthorityAdmin
		if !admin && target != auth.ID() {
			return fault.New(fault.PermissionDenied, "cannot change another user's account")
		}
		if !admin && change.Authority != nil {
			return fault.New(fault.PermissionDenied, "changing authority requires admin authority")
		}
		record, path, err := c.lookup(target)
		if err != nil {
			return err
		}
		// Validate everything before touching the record so a failed
		// call leaves no partial change.
		var digest secretDigest
		if change.Secret != nil {
			if !admin && !record.secret.verify(change.OldSecret) {
				return fault.New(fault.ArgumentInvalid, "wrong current secret")
			}
			if digest, err = hashSecret(change.Secret); err != nil {
				return err
			}
		}
		if change.Authority != nil {
			if *change.Authority == access.AuthorityNone {
				return fault.New(fault.ArgumentInvalid, "authority None cannot log in")
			}
			if target == ref.AdminID {
				return fault.New(fault.InvalidOperation, "the admin account's authority is fixed")
			}
		}
		before := c.currentSnapshot()
		if change.DisplayName != nil {
			record.displayName = *change.DisplayName
		}
		if change.Secret != nil {
			record.secret = digest
		}
		if change.Authority != nil {
			record.authority = *change.Authority
		}
		record.modified = access.Sign(auth.ID(), c.clock.Now())
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		_, online := c.sessions[target]
		c.usersChanged.Emit(UsersEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Users:    []UserInfo{record.info(path, online)},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// GetUserInfo returns the snapshot of one account.
func (c *Context) GetUserInfo(ctx context.Context, auth *Authentication, id ref.UserID) (UserInfo, error) {
	var info UserInfo
	err := c.run(ctx, func() error {
		if err := c.verifyRead(auth); err != nil {
			return err
		}
		record, path, err := c.lookup(id)
		if err != nil {
			return err
		}
		_, online := c.sessions[id]
		info = record.info(path, online)
		return nil
	})
	return info, err
}

// GetMetaData returns the category paths and account snapshots of the
// whole tree.
func (c *Context) GetMetaData(ctx context.Context, auth *Authentication) ([]ref.Path, []UserInfo, error) {
	var categories []ref.Path
	var infos []UserInfo
	err := c.run(ctx, func() error {
		if err := c.verifyRead(auth); err != nil {
			return err
		}
		categories = c.tree.Categories()
		for _, path := range c.tree.Items() {
			record, _ := c.tree.Item(path)
			_, online := c.sessions[record.id]
			infos = append(infos, record.info(path, online))
		}
		return nil
	})
	return categories, infos, err
}

// Contains reports whether an account exists.
func (c *Context) Contains(ctx context.Context, auth *Authentication, id ref.UserID) (bool, error) {
	var found bool
	err := c.run(ctx, func() error {
		if err := c.verifyRead(auth); err != nil {
			return err
		}
		_, found = c.paths[id]
		return nil
	})
	return found, err
}

// IsOnline reports whether an account has a live session.
func (c *Context) IsOnline(ctx context.Context, auth *Authentication, id ref.UserID) (bool, error) {
	var online bool
	err := c.run(ctx, func() error {
		if err := c.verifyRead(auth); err != nil {
			return err
		}
		_, online = c.sessions[id]
		return nil
	})
	return online, err
}

// verifyRead gates the query operations: any live session may browse.
func (c *Context) verifyRead(auth *Authentication) error {
	if auth == nil {
		return fault.New(fault.ArgumentNull, "authentication is required")
	}
	if err := c.requireOpen(); err != nil {
		return err
	}
	return auth.Verify()
}

// reindexPaths rebuilds the id-to-path index after a category
// relocation carried user items to new paths.
func (c *Context) reindexPaths() {
	c.paths = map[ref.UserID]ref.Path{}
	for _, path := range c.tree.Items() {
		record, _ := c.tree.Item(path)
		c.paths[record.id] = path
	}
}
