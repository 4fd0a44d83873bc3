// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package domains

import (
	"context"
	"fmt"

	"github.com/vellum-project/vellum/databases"
	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/users"
)

// DomainInfo is an immutable snapshot of one domain.
type DomainInfo struct {
	ID           ref.DomainID
	DataBase     ref.Name
	Kind         databases.ItemKind
	Artifact     ref.Path
	Owner        ref.UserID
	Participants []ref.UserID
	Created      access.Signature
}

// Domain is one collaborative editing session. It holds the edit
// buffer for a single table or type; the backing item only changes
// when the session ends without cancelling.
//
// All mutable state belongs to the domain's dispatcher.
type Domain struct {
	registry   *Context
	db         *databases.DataBase
	dispatcher *dispatch.Dispatcher

	id       ref.DomainID
	kind     databases.ItemKind
	artifact ref.Path
	created  access.Signature

	rows         map[string]databases.RowFields
	participants map[ref.UserID]*participant
	order        []ref.UserID
	ownerID      ref.UserID
	closed       bool

	userEntered  *dispatch.Event[UserEvent]
	userLeft     *dispatch.Event[UserEvent]
	userRemoved  *dispatch.Event[RemovedEvent]
	ownerChanged *dispatch.Event[OwnerEvent]
	rowAdded     *dispatch.Event[RowEvent]
	rowChanged   *dispatch.Event[RowEvent]
	rowRemoved   *dispatch.Event[RowEvent]
	deletedEvent *dispatch.Event[DeletedEvent]
}

// participant is one entered session. cancelExpiry unhooks the expiry
// watch when the participant withdraws, keeping the session's callback
// list bounded across enter/leave cycles.
type participant struct {
	auth         *users.Authentication
	cancelExpiry func()
}

func newDomain(registry *Context, db *databases.DataBase, kind databases.ItemKind, artifact ref.Path, rows map[string]databases.RowFields, created access.Signature) *Domain {
	d := &Domain{
		registry:     registry,
		db:           db,
		dispatcher:   dispatch.New(fmt.Sprintf("domain/%s/%s", db.Name(), artifact)),
		id:           ref.NewDomainID(),
		kind:         kind,
		artifact:     artifact,
		created:      created,
		rows:         rows,
		participants: map[ref.UserID]*participant{},
	}
	d.userEntered = dispatch.NewEvent[UserEvent](d.dispatcher)
	d.userLeft = dispatch.NewEvent[UserEvent](d.dispatcher)
	d.userRemoved = dispatch.NewEvent[RemovedEvent](d.dispatcher)
	d.ownerChanged = dispatch.NewEvent[OwnerEvent](d.dispatcher)
	d.rowAdded = dispatch.NewEvent[RowEvent](d.dispatcher)
	d.rowChanged = dispatch.NewEvent[RowEvent](d.dispatcher)
	d.rowRemoved = dispatch.NewEvent[RowEvent](d.dispatcher)
	d.deletedEvent = dispatch.NewEvent[DeletedEvent](d.dispatcher)
	return d
}

// ID returns the domain's identity.
func (d *Domain) ID() ref.DomainID { return d.id }

// Artifact returns the backing item's path.
func (d *Domain) Artifact() ref.Path { return d.artifact }

// Dispatcher returns the domain's dispatcher.
func (d *Domain) Dispatcher() *dispatch.Dispatcher { return d.dispatcher }

func (d *Domain) run(ctx context.Context, fn func() error) error {
	future := dispatch.Async(d.dispatcher, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	select {
	case <-future.Done():
		_, err := future.Result()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enter joins the session. Entering twice is ArgumentInvalid; an
// unloaded backing data base or a foreign advisory lock is
// InvalidOperation. The lock keeps new participants out but never
// evicts the ones already in.
func (d *Domain) Enter(ctx context.Context, auth *users.Authentication) error {
	return d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if _, in := d.participants[auth.ID()]; in {
			return fault.New(fault.ArgumentInvalid, "user %s already entered domain %s", auth.ID(), d.id)
		}
		if d.db.State() != databases.StateLoaded {
			return fault.New(fault.InvalidOperation, "data base %s is not loaded", d.db.Name())
		}
		if err := d.db.CheckAccess(auth, access.TierContent); err != nil {
			return err
		}
		if locker, excluded := d.db.LockExcludes(auth); excluded {
			return fault.New(fault.InvalidOperation, "data base %s is locked by %s", d.db.Name(), locker)
		}
		d.admit(auth)
		return nil
	})
}

// Leave exits the session. Never entered is NotFound. Ownership
// passes to the longest-standing remaining participant.
func (d *Domain) Leave(ctx context.Context, auth *users.Authentication) error {
	return d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if _, in := d.participants[auth.ID()]; !in {
			return fault.New(fault.NotFound, "user %s has not entered domain %s", auth.ID(), d.id)
		}
		d.withdraw(auth.ID(), auth.InvokeID())
		d.userLeft.Emit(UserEvent{InvokeID: auth.InvokeID(), User: auth.ID()})
		return nil
	})
}

// Kick removes another participant. Requires Master tier on the
// backing data base or admin authority; kicking yourself is
// InvalidOperation (leave instead). The removed principal's later
// domain calls fail NotFound.
func (d *Domain) Kick(ctx context.Context, auth *users.Authentication, target ref.UserID, comment string) error {
	return d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if target == auth.ID() {
			return fault.New(fault.InvalidOperation, "cannot kick yourself from domain %s", d.id)
		}
		if auth.Authority() != access.AuthorityAdmin {
			if err := d.db.CheckAccess(auth, access.TierDestroy); err != nil {
				return err
			}
		}
		if _, in := d.participants[target]; !in {
			return fault.New(fault.NotFound, "user %s is not in domain %s", target, d.id)
		}
		d.withdraw(target, auth.InvokeID())
		d.userRemoved.Emit(RemovedEvent{
			InvokeID: auth.InvokeID(),
			User:     target,
			Reason:   RemoveKick,
			Comment:  comment,
		})
		return nil
	})
}

// Delete ends the session. cancel discards the edit buffer; otherwise
// the buffer is committed to the backing item as one revision. Only
// the domain owner or an admin may end it.
func (d *Domain) Delete(ctx context.Context, auth *users.Authentication, cancel bool) error {
	return d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if auth.ID() != d.ownerID && auth.Authority() != access.AuthorityAdmin {
			return fault.New(fault.PermissionDenied, "domain %s belongs to %s", d.id, d.ownerID)
		}
		if !cancel {
			if _, err := d.db.ApplyRows(ctx, auth, d.kind, d.artifact, d.rows); err != nil {
				return err
			}
		}
		if err := d.db.DetachEditor(ctx, d.kind, d.artifact); err != nil {
			return err
		}
		d.teardown(auth.InvokeID(), cancel)
		return nil
	})
}

// NewRow adds a row to the edit buffer. Duplicate row ids are
// ArgumentInvalid. Participants only.
func (d *Domain) NewRow(ctx context.Context, auth *users.Authentication, row string, fields databases.RowFields) error {
	return d.run(ctx, func() error {
		if err := d.requireParticipant(auth); err != nil {
			return err
		}
		if row == "" {
			return fault.New(fault.ArgumentNull, "row id is required")
		}
		if _, exists := d.rows[row]; exists {
			return fault.New(fault.ArgumentInvalid, "row %s already exists in domain %s", row, d.id)
		}
		d.rows[row] = cloneFields(fields)
		d.rowAdded.Emit(RowEvent{InvokeID: auth.InvokeID(), Row: row, Fields: cloneFields(fields)})
		return nil
	})
}

// SetRow replaces a row's fields. A missing row is NotFound.
func (d *Domain) SetRow(ctx context.Context, auth *users.Authentication, row string, fields databases.RowFields) error {
	return d.run(ctx, func() error {
		if err := d.requireParticipant(auth); err != nil {
			return err
		}
		if _, exists := d.rows[row]; !exists {
			return fault.New(fault.NotFound, "row %s does not exist in domain %s", row, d.id)
		}
		d.rows[row] = cloneFields(fields)
		d.rowChanged.Emit(RowEvent{InvokeID: auth.InvokeID(), Row: row, Fields: cloneFields(fields)})
		return nil
	})
}

// RemoveRow deletes a row from the edit buffer. A missing row is
// NotFound.
func (d *Domain) RemoveRow(ctx context.Context, auth *users.Authentication, row string) error {
	return d.run(ctx, func() error {
		if err := d.requireParticipant(auth); err != nil {
			return err
		}
		if _, exists := d.rows[row]; !exists {
			return fault.New(fault.NotFound, "row %s does not exist in domain %s", row, d.id)
		}
		delete(d.rows, row)
		d.rowRemoved.Emit(RowEvent{InvokeID: auth.InvokeID(), Row: row})
		return nil
	})
}

// Rows returns a copy of the edit buffer. Participants only.
func (d *Domain) Rows(ctx context.Context, auth *users.Authentication) (map[string]databases.RowFields, error) {
	var rows map[string]databases.RowFields
	err := d.run(ctx, func() error {
		if err := d.requireParticipant(auth); err != nil {
			return err
		}
		rows = make(map[string]databases.RowFields, len(d.rows))
		for id, fields := range d.rows {
			rows[id] = cloneFields(fields)
		}
		return nil
	})
	return rows, err
}

// GetInfo returns the domain's snapshot.
func (d *Domain) GetInfo(ctx context.Context, auth *users.Authentication) (DomainInfo, error) {
	var info DomainInfo
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		info = d.snapshot()
		return nil
	})
	return info, err
}

func (d *Domain) verify(auth *users.Authentication) error {
	if auth == nil {
		return fault.New(fault.ArgumentNull, "authentication is required")
	}
	if d.closed {
		return fault.New(fault.InvalidOperation, "domain %s is closed", d.id)
	}
	return auth.Verify()
}

func (d *Domain) requireParticipant(auth *users.Authentication) error {
	if err := d.verify(auth); err != nil {
		return err
	}
	if _, in := d.participants[auth.ID()]; !in {
		return fault.New(fault.NotFound, "user %s is not in domain %s", auth.ID(), d.id)
	}
	return nil
}

// admit registers a participant. The first one becomes owner. Session
// expiry leaves the domain the same way an explicit Leave would.
// Dispatcher only.
func (d *Domain) admit(auth *users.Authentication) {
	user := auth.ID()
	entry := &participant{auth: auth}
	d.participants[user] = entry
	d.order = append(d.order, user)
	d.userEntered.Emit(UserEvent{InvokeID: auth.InvokeID(), User: user})
	if d.ownerID.IsZero() {
		d.ownerID = user
		d.ownerChanged.Emit(OwnerEvent{InvokeID: auth.InvokeID(), Owner: user})
	}

	entry.cancelExpiry = auth.OnExpired(func(users.ExpireReason) {
		_ = d.dispatcher.InvokeAsync(func() {
			if current, in := d.participants[user]; in && current == entry && !d.closed {
				d.withdraw(user, auth.InvokeID())
				d.userLeft.Emit(UserEvent{InvokeID: auth.InvokeID(), User: user})
			}
		})
	})
}

// withdraw removes a participant and reassigns ownership if needed.
// The caller emits the matching event. Dispatcher only.
func (d *Domain) withdraw(user ref.UserID, invokeID string) {
	if entry, in := d.participants[user]; in {
		entry.cancelExpiry()
	}
	delete(d.participants, user)
	for i, id := range d.order {
		if id == user {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	if d.ownerID != user {
		return
	}
	if len(d.order) == 0 {
		d.ownerID = ref.UserID{}
		return
	}
	d.ownerID = d.order[0]
	d.ownerChanged.Emit(OwnerEvent{InvokeID: invokeID, Owner: d.ownerID})
}

// teardown closes the session and deregisters it. Dispatcher only.
func (d *Domain) teardown(invokeID string, cancelled bool) {
	info := d.snapshot()
	d.closed = true
	for user, entry := range d.participants {
		entry.cancelExpiry()
		delete(d.participants, user)
	}
	d.order = nil
	d.ownerID = ref.UserID{}
	d.deletedEvent.Emit(DeletedEvent{InvokeID: invokeID, Cancelled: cancelled})
	d.registry.deregister(info, invokeID)
}

func (d *Domain) snapshot() DomainInfo {
	participants := make([]ref.UserID, len(d.order))
	copy(participants, d.order)
	return DomainInfo{
		ID:           d.id,
		DataBase:     d.db.Name(),
		Kind:         d.kind,
		Artifact:     d.artifact,
		Owner:        d.ownerID,
		Participants: participants,
		Created:      d.created,
	}
}

func cloneFields(fields databases.RowFields) databases.RowFields {
	clone := make(databases.RowFields, len(fields))
	for k, v := range fields {
		clone[k] = v
	}
	return clone
}
