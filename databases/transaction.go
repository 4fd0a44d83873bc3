// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"context"
	"fmt"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/storage"
	"github.com/vellum-project/vellum/users"
)

// Transaction batches structural mutations into one revision. At most
// one is open per data base; other sessions' mutations are rejected
// while it runs. Commit appends the batched revision; Rollback
// restores the contents captured at Begin and broadcasts Resetting
// then Reset.
type Transaction struct {
	db           *DataBase
	owner        *users.Authentication
	before       *contentSnapshot
	cancelExpiry func()
}

// BeginTransaction opens the data base's transaction slot. Requires
// Loaded and Editor tier; a second Begin while one is open is
// InvalidOperation. The transaction rolls back automatically if its
// owning session expires.
func (d *DataBase) BeginTransaction(ctx context.Context, auth *users.Authentication) (*Transaction, error) {
	var transaction *Transaction
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if d.currentState() != StateLoaded {
			return fault.New(fault.InvalidOperation, "data base %s is not loaded", d.Name())
		}
		if err := d.checkLock(auth, access.TierContent); err != nil {
			return err
		}
		if d.transaction != nil {
			return fault.New(fault.InvalidOperation, "data base %s already has an open transaction", d.Name())
		}
		transaction = &Transaction{
			db:     d,
			owner:  auth,
			before: d.contents(),
		}
		d.transaction = transaction

		current := transaction
		transaction.cancelExpiry = auth.OnExpired(func(users.ExpireReason) {
			_ = d.dispatcher.InvokeAsync(func() {
				if d.transaction == current {
					d.rollbackLocked(current, current.owner.InvokeID())
					d.owner.logger.Info("transaction rolled back by session expiry",
						"name", d.Name(), "user", current.owner.ID())
				}
			})
		})
		d.owner.logger.Info("transaction begun", "name", d.Name(), "by", auth.ID())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

// Commit appends the batched mutations as one revision and closes the
// transaction. Only the owning session or an admin may commit.
func (t *Transaction) Commit(ctx context.Context, auth *users.Authentication) (ref.TaskID, error) {
	var task ref.TaskID
	err := t.db.run(ctx, func() error {
		if err := t.db.verify(auth); err != nil {
			return err
		}
		if err := t.checkOwner(auth); err != nil {
			return err
		}
		if err := t.db.commitRevision(auth.ID(), fmt.Sprintf("transaction by %s", t.owner.ID())); err != nil {
			return err
		}
		t.cancelExpiry()
		t.db.transaction = nil
		task = ref.NewTaskID()
		t.db.owner.logger.Info("transaction committed", "name", t.db.Name(), "by", auth.ID())
		t.db.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// Rollback discards the batched mutations, restoring the contents
// captured at Begin. Observers see Resetting, then Reset.
func (t *Transaction) Rollback(ctx context.Context, auth *users.Authentication) (ref.TaskID, error) {
	var task ref.TaskID
	err := t.db.run(ctx, func() error {
		if err := t.db.verify(auth); err != nil {
			return err
		}
		if err := t.checkOwner(auth); err != nil {
			return err
		}
		task = ref.NewTaskID()
		t.db.rollbackLocked(t, auth.InvokeID())
		t.db.owner.logger.Info("transaction rolled back", "name", t.db.Name(), "by", auth.ID())
		t.db.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// checkOwner enforces the owner-or-admin rule and that the
// transaction is still the open one. Dispatcher only.
func (t *Transaction) checkOwner(auth *users.Authentication) error {
	if t.db.transaction != t {
		return fault.New(fault.InvalidOperation, "transaction is already closed")
	}
	if auth != t.owner && auth.Authority() != access.AuthorityAdmin {
		return fault.New(fault.PermissionDenied, "transaction belongs to %s", t.owner.ID())
	}
	return nil
}

// rollbackLocked restores pre-transaction contents and closes the
// slot. Dispatcher only.
func (d *DataBase) rollbackLocked(t *Transaction, invokeID string) {
	t.cancelExpiry()
	d.resetting.Emit(ResetEvent{InvokeID: invokeID})
	d.restoreContents(t.before)
	d.transaction = nil
	d.reset.Emit(ResetEvent{InvokeID: invokeID})
}

// GetLog lists the revision log up to and including the given
// revision number. Zero means the whole log; a number past the tail is
// NotFound. Requires read access; the data base need not be loaded.
func (d *DataBase) GetLog(ctx context.Context, auth *users.Authentication, revision uint64) ([]storage.Revision, error) {
	var revisions []storage.Revision
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if err := d.checkAccess(auth, access.TierRead); err != nil {
			return err
		}
		all, err := d.owner.store.Revisions(d.ID())
		if err != nil {
			return err
		}
		if revision == 0 {
			revisions = all
			return nil
		}
		if len(all) == 0 || all[len(all)-1].Number < revision {
			return fault.New(fault.NotFound, "data base %s has no revision %d", d.Name(), revision)
		}
		for _, r := range all {
			if r.Number > revision {
				break
			}
			revisions = append(revisions, r)
		}
		return nil
	})
	return revisions, err
}

// Revert appends a new revision whose contents equal a past one. The
// data base must be unloaded; an unknown revision number is NotFound.
// Requires Master tier. The next Load picks up the reverted contents.
func (d *DataBase) Revert(ctx context.Context, auth *users.Authentication, number uint64) (ref.TaskID, error) {
	var task ref.TaskID
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if err := d.checkLock(auth, access.TierDestroy); err != nil {
			return err
		}
		if d.currentState() != StateNone {
			return fault.New(fault.InvalidOperation, "data base %s must be unloaded to revert", d.Name())
		}
		revisions, err := d.owner.store.Revisions(d.ID())
		if err != nil {
			return err
		}
		var target *storage.Revision
		for i := range revisions {
			if revisions[i].Number == number {
				target = &revisions[i]
				break
			}
		}
		if target == nil {
			return fault.New(fault.NotFound, "data base %s has no revision %d", d.Name(), number)
		}
		data, err := d.owner.store.ReadSnapshot(d.ID(), target.Digest)
		if err != nil {
			return err
		}
		d.mu.Lock()
		next := d.revision + 1
		d.mu.Unlock()
		revision := storage.Revision{
			Number:  next,
			Digest:  target.Digest,
			Message: fmt.Sprintf("revert to revision %d", number),
			User:    auth.ID(),
			At:      d.owner.clock.Now(),
		}
		if err := d.owner.store.AppendRevision(d.ID(), revision, data); err != nil {
			return err
		}
		d.mu.Lock()
		d.revision = next
		d.modified = access.Sign(auth.ID(), d.owner.clock.Now())
		d.mu.Unlock()
		if err := d.owner.persist(); err != nil {
			d.owner.logger.Error("persisting collection metadata", "name", d.Name(), "error", err)
		}
		task = ref.NewTaskID()
		d.owner.logger.Info("data base reverted", "name", d.Name(), "to", number, "by", auth.ID())
		d.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}
