// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"context"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/users"
)

// SetPrivate restricts the data base to its owner and members. The
// caller becomes the owner if none is set. Requires Master tier.
func (d *DataBase) SetPrivate(ctx context.Context, auth *users.Authentication) (ref.TaskID, error) {
	return d.mutateAccess(ctx, auth, func() error {
		if !d.acl.Public {
			return fault.New(fault.InvalidOperation, "data base %s is already private", d.name)
		}
		d.acl.Public = false
		if d.acl.Owner.IsZero() {
			d.acl.Owner = auth.ID()
		}
		return nil
	})
}

// SetPublic opens the data base to every authority per the implied
// tier rule. Requires Master tier.
func (d *DataBase) SetPublic(ctx context.Context, auth *users.Authentication) (ref.TaskID, error) {
	return d.mutateAccess(ctx, auth, func() error {
		if d.acl.Public {
			return fault.New(fault.InvalidOperation, "data base %s is already public", d.name)
		}
		d.acl.Public = true
		return nil
	})
}

// AddAccessMember grants a tier to a user.
func (d *DataBase) AddAccessMember(ctx context.Context, auth *users.Authentication, user ref.UserID, tier access.AccessType) (ref.TaskID, error) {
	return d.mutateAccess(ctx, auth, func() error {
		return d.acl.AddMember(user, tier)
	})
}

// SetAccessMember replaces an existing member's tier.
func (d *DataBase) SetAccessMember(ctx context.Context, auth *users.Authentication, user ref.UserID, tier access.AccessType) (ref.TaskID, error) {
	return d.mutateAccess(ctx, auth, func() error {
		return d.acl.SetMember(user, tier)
	})
}

// RemoveAccessMember revokes a member's grant.
func (d *DataBase) RemoveAccessMember(ctx context.Context, auth *users.Authentication, user ref.UserID) (ref.TaskID, error) {
	return d.mutateAccess(ctx, auth, func() error {
		return d.acl.RemoveMember(user)
	})
}

// mutateAccess runs one ACL change under the common gates: live
// session, Master tier, lock not held by someone else. Changes
// persist through the collection snapshot and emit AccessChanged.
func (d *DataBase) mutateAccess(ctx context.Context, auth *users.Authentication, change func() error) (ref.TaskID, error) {
	var task ref.TaskID
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if err := d.checkLock(auth, access.TierDestroy); err != nil {
			return err
		}
		d.mu.Lock()
		before := d.acl.Clone()
		err := change()
		if err == nil {
			d.modified = access.Sign(auth.ID(), d.owner.clock.Now())
		}
		d.mu.Unlock()
		if err != nil {
			return err
		}
		if err := d.owner.persist(); err != nil {
			d.mu.Lock()
			d.acl = before
			d.mu.Unlock()
			return err
		}
		task = ref.NewTaskID()
		d.accessChanged.Emit(AccessEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Access:   d.info().Access,
			Lock:     d.info().Lock,
		})
		d.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// LockExcludes reports whether the advisory lock shuts the session
// out, returning the locker. Admins and the locker always pass.
func (d *DataBase) LockExcludes(auth *users.Authentication) (ref.UserID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.lock.IsLocked() || auth.Authority() == access.AuthorityAdmin || d.lock.Permits(auth.ID()) {
		return ref.UserID{}, false
	}
	return d.lock.Locker, true
}

// Lock takes the advisory lock. Locking an already locked data base
// is InvalidOperation, whoever holds it. Requires Master tier.
func (d *DataBase) Lock(ctx context.Context, auth *users.Authentication, comment string) (ref.TaskID, error) {
	var task ref.TaskID
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if err := d.checkAccess(auth, access.TierDestroy); err != nil {
			return err
		}
		d.mu.Lock()
		if d.lock.IsLocked() {
			d.mu.Unlock()
			return fault.New(fault.InvalidOperation, "data base %s is already locked by %s", d.name, d.lock.Locker)
		}
		before := d.lock
		d.lock = access.LockInfo{
			Locker:    auth.ID(),
			Comment:   comment,
			Signature: access.Sign(auth.ID(), d.owner.clock.Now()),
		}
		d.mu.Unlock()
		if err := d.owner.persist(); err != nil {
			d.mu.Lock()
			d.lock = before
			d.mu.Unlock()
			return err
		}
		task = ref.NewTaskID()
		d.owner.logger.Info("data base locked", "name", d.Name(), "by", auth.ID())
		d.lockChanged.Emit(AccessEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Access:   d.info().Access,
			Lock:     d.info().Lock,
		})
		d.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// Unlock releases the advisory lock. Only the locker or an admin may
// release it; unlocking an unlocked data base is InvalidOperation.
func (d *DataBase) Unlock(ctx context.Context, auth *users.Authentication) (ref.TaskID, error) {
	var task ref.TaskID
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		d.mu.Lock()
		if !d.lock.IsLocked() {
			d.mu.Unlock()
			return fault.New(fault.InvalidOperation, "data base %s is not locked", d.name)
		}
		if d.lock.Locker != auth.ID() && auth.Authority() != access.AuthorityAdmin {
			d.mu.Unlock()
			return fault.New(fault.PermissionDenied, "data base %s is locked by %s", d.name, d.lock.Locker)
		}
		before := d.lock
		d.lock = access.LockInfo{}
		d.mu.Unlock()
		if err := d.owner.persist(); err != nil {
			d.mu.Lock()
			d.lock = before
			d.mu.Unlock()
			return err
		}
		task = ref.NewTaskID()
		d.owner.logger.Info("data base unlocked", "name", d.Name(), "by", auth.ID())
		d.lockChanged.Emit(AccessEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Access:   d.info().Access,
			Lock:     d.info().Lock,
		})
		d.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}
