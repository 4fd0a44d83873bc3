// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"context"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/users"
)

// The editing surface backs collaborative domains. A domain attaches
// to one artifact (a table or type item), holds its own working row
// set, and applies it here on commit. An attached artifact blocks
// Unload and DeleteItem until the domain detaches.

// CheckEnterEdit evaluates whether a session may join an edit session
// on the artifact: data base loaded, artifact present, Editor tier,
// and the advisory lock not held by someone else. A lock blocks new
// edit participants but never evicts existing ones; that exception is
// the domain's to keep.
func (d *DataBase) CheckEnterEdit(ctx context.Context, auth *users.Authentication, kind ItemKind, artifact ref.Path) error {
	return d.run(ctx, func() error {
		return d.checkEnterEdit(auth, kind, artifact)
	})
}

// checkEnterEdit is CheckEnterEdit on the dispatcher.
func (d *DataBase) checkEnterEdit(auth *users.Authentication, kind ItemKind, artifact ref.Path) error {
	if err := d.verify(auth); err != nil {
		return err
	}
	if d.currentState() != StateLoaded {
		return fault.New(fault.InvalidOperation, "data base %s is not loaded", d.Name())
	}
	if !d.itemTree(kind).ContainsItem(artifact) {
		return fault.New(fault.NotFound, "%s %s does not exist", kind, artifact)
	}
	return d.checkLock(auth, access.TierContent)
}

// AttachEditor registers an open edit session on the artifact. The
// data base rejects Unload and DeleteItem for it until DetachEditor.
// Attaching an already attached artifact is InvalidOperation: one
// domain per artifact.
func (d *DataBase) AttachEditor(ctx context.Context, auth *users.Authentication, kind ItemKind, artifact ref.Path) (map[string]RowFields, error) {
	var rows map[string]RowFields
	err := d.run(ctx, func() error {
		if err := d.checkEnterEdit(auth, kind, artifact); err != nil {
			return err
		}
		if d.editors[artifact] {
			return fault.New(fault.InvalidOperation, "%s %s already has an open edit session", kind, artifact)
		}
		d.editors[artifact] = true
		record, _ := d.itemTree(kind).Item(artifact)
		rows = record.clone().rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DetachEditor closes the artifact's edit session registration.
func (d *DataBase) DetachEditor(ctx context.Context, kind ItemKind, artifact ref.Path) error {
	return d.run(ctx, func() error {
		if !d.editors[artifact] {
			return fault.New(fault.NotFound, "%s %s has no open edit session", kind, artifact)
		}
		delete(d.editors, artifact)
		return nil
	})
}

// ApplyRows replaces the artifact's row set with a domain's committed
// working set and appends a revision. The caller keeps the edit
// session attached until DetachEditor.
func (d *DataBase) ApplyRows(ctx context.Context, auth *users.Authentication, kind ItemKind, artifact ref.Path, rows map[string]RowFields) (ref.TaskID, error) {
	var task ref.TaskID
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if d.currentState() != StateLoaded {
			return fault.New(fault.InvalidOperation, "data base %s is not loaded", d.Name())
		}
		record, ok := d.itemTree(kind).Item(artifact)
		if !ok {
			return fault.New(fault.NotFound, "%s %s does not exist", kind, artifact)
		}
		before := d.contents()
		copied := make(map[string]RowFields, len(rows))
		for id, fields := range rows {
			fieldsCopy := make(RowFields, len(fields))
			for k, v := range fields {
				fieldsCopy[k] = v
			}
			copied[id] = fieldsCopy
		}
		record.rows = copied
		record.modified = access.Sign(auth.ID(), d.owner.clock.Now())
		if err := d.commitRevision(auth.ID(), "edit "+artifact.String()); err != nil {
			d.restoreContents(before)
			return err
		}
		task = ref.NewTaskID()
		d.itemsChanged.Emit(ItemsEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Items:    []ItemChange{{Kind: kind, Path: artifact}},
		})
		d.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// ItemsChanged fires after an edit session commits new contents into
// an artifact.
func (d *DataBase) ItemsChanged() *dispatch.Event[ItemsEvent] { return d.itemsChanged }
