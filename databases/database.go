// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/codec"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/lib/tree"
	"github.com/vellum-project/vellum/users"
)

// DataBaseInfo is the immutable snapshot of a data base carried in
// events and query results.
type DataBaseInfo struct {
	ID       ref.DataBaseID
	Name     ref.Name
	Comment  string
	State    State
	Revision uint64
	Access   access.AccessInfo
	Lock     access.LockInfo
	Created  access.Signature
	Modified access.Signature
}

// DataBase is one data base actor. Metadata (name, access, lock,
// state, revision) sits behind a mutex because the collection's
// persist path reads it from the context dispatcher; only this data
// base's dispatcher ever writes it. Contents, entered sessions, and
// the transaction slot belong to the dispatcher alone.
type DataBase struct {
	owner      *Context
	dispatcher *dispatch.Dispatcher

	mu       sync.Mutex
	id       ref.DataBaseID
	name     ref.Name
	comment  string
	state    State
	revision uint64
	acl      access.AccessInfo
	lock     access.LockInfo
	created  access.Signature
	modified access.Signature

	tables      *tree.Tree[*item]
	types       *tree.Tree[*item]
	sessions    map[ref.UserID]*dbSession
	transaction *Transaction
	editors     map[ref.Path]bool

	itemsCreated  *dispatch.Event[ItemsEvent]
	itemsRenamed  *dispatch.Event[ItemsEvent]
	itemsMoved    *dispatch.Event[ItemsEvent]
	itemsDeleted  *dispatch.Event[ItemsEvent]
	itemsChanged  *dispatch.Event[ItemsEvent]
	stateChanged  *dispatch.Event[StateEvent]
	accessChanged *dispatch.Event[AccessEvent]
	lockChanged   *dispatch.Event[AccessEvent]
	entered       *dispatch.Event[SessionEvent]
	left          *dispatch.Event[SessionEvent]
	resetting     *dispatch.Event[ResetEvent]
	reset         *dispatch.Event[ResetEvent]
	taskCompleted *dispatch.Event[TaskEvent]
}

// dbSession is one entered session. cancelExpiry unhooks the expiry
// watch when the session leaves, so enter/leave cycles do not pile
// callbacks onto a long-lived Authentication.
type dbSession struct {
	auth         *users.Authentication
	cancelExpiry func()
}

func newDataBase(owner *Context, id ref.DataBaseID, name ref.Name) *DataBase {
	d := &DataBase{
		owner:      owner,
		dispatcher: dispatch.New("database/" + name.String()),
		id:         id,
		name:       name,
		tables:     tree.New[*item](),
		types:      tree.New[*item](),
		sessions:   map[ref.UserID]*dbSession{},
		editors:    map[ref.Path]bool{},
	}
	d.itemsCreated = dispatch.NewEvent[ItemsEvent](d.dispatcher)
	d.itemsRenamed = dispatch.NewEvent[ItemsEvent](d.dispatcher)
	d.itemsMoved = dispatch.NewEvent[ItemsEvent](d.dispatcher)
	d.itemsDeleted = dispatch.NewEvent[ItemsEvent](d.dispatcher)
	d.itemsChanged = dispatch.NewEvent[ItemsEvent](d.dispatcher)
	d.stateChanged = dispatch.NewEvent[StateEvent](d.dispatcher)
	d.accessChanged = dispatch.NewEvent[AccessEvent](d.dispatcher)
	d.lockChanged = dispatch.NewEvent[AccessEvent](d.dispatcher)
	d.entered = dispatch.NewEvent[SessionEvent](d.dispatcher)
	d.left = dispatch.NewEvent[SessionEvent](d.dispatcher)
	d.resetting = dispatch.NewEvent[ResetEvent](d.dispatcher)
	d.reset = dispatch.NewEvent[ResetEvent](d.dispatcher)
	d.taskCompleted = dispatch.NewEvent[TaskEvent](d.dispatcher)
	return d
}

// Dispatcher returns the data base's dispatcher.
func (d *DataBase) Dispatcher() *dispatch.Dispatcher { return d.dispatcher }

// ID returns the permanent data base identity.
func (d *DataBase) ID() ref.DataBaseID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.id
}

// Name returns the current name.
func (d *DataBase) Name() ref.Name {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// info snapshots the metadata.
func (d *DataBase) info() DataBaseInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DataBaseInfo{
		ID:       d.id,
		Name:     d.name,
		Comment:  d.comment,
		State:    d.state,
		Revision: d.revision,
		Access:   d.acl.Clone(),
		Lock:     d.lock,
		Created:  d.created,
		Modified: d.modified,
	}
}

// run marshals fn onto the data base's dispatcher, honoring ctx while
// waiting.
func (d *DataBase) run(ctx context.Context, fn func() error) error {
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

// GetInfo returns the metadata snapshot.
func (d *DataBase) GetInfo(ctx context.Context, auth *users.Authentication) (DataBaseInfo, error) {
	var info DataBaseInfo
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		info = d.info()
		return nil
	})
	return info, err
}

// Load reads the latest revision into memory. Requires Master tier;
// any state but None is InvalidOperation.
func (d *DataBase) Load(ctx context.Context, auth *users.Authentication) (ref.TaskID, error) {
	var task ref.TaskID
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if err := d.checkAccess(auth, access.TierDestroy); err != nil {
			return err
		}
		if d.currentState() != StateNone {
			return fault.New(fault.InvalidOperation, "data base %s is %s, not unloaded", d.Name(), d.currentState())
		}
		task = ref.NewTaskID()
		d.setState(StateLoading, auth.InvokeID(), task)

		contents, err := d.latestContents()
		if err != nil {
			d.setState(StateNone, auth.InvokeID(), task)
			return err
		}
		d.restoreContents(contents)
		d.setState(StateLoaded, auth.InvokeID(), task)
		d.owner.logger.Info("data base loaded", "name", d.Name(), "by", auth.ID())
		d.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// Unload drops in-memory contents. Fails while a transaction or an
// edit session is open; entered sessions are forced out first.
func (d *DataBase) Unload(ctx context.Context, auth *users.Authentication) (ref.TaskID, error) {
	var task ref.TaskID
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if err := d.checkAccess(auth, access.TierDestroy); err != nil {
			return err
		}
		if d.currentState() != StateLoaded {
			return fault.New(fault.InvalidOperation, "data base %s is %s, not loaded", d.Name(), d.currentState())
		}
		if d.transaction != nil {
			return fault.New(fault.InvalidOperation, "data base %s has an open transaction", d.Name())
		}
		if len(d.editors) > 0 {
			return fault.New(fault.InvalidOperation, "data base %s has open edit sessions", d.Name())
		}
		task = ref.NewTaskID()
		d.setState(StateUnloading, auth.InvokeID(), task)
		for id, session := range d.sessions {
			session.cancelExpiry()
			delete(d.sessions, id)
			d.left.Emit(SessionEvent{InvokeID: auth.InvokeID(), User: id})
		}
		d.tables = tree.New[*item]()
		d.types = tree.New[*item]()
		d.setState(StateNone, auth.InvokeID(), task)
		d.owner.logger.Info("data base unloaded", "name", d.Name(), "by", auth.ID())
		d.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// Enter adds the session to the data base's observers. Requires
// Loaded and read access; entering twice is ArgumentInvalid.
func (d *DataBase) Enter(ctx context.Context, auth *users.Authentication) error {
	return d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		if d.currentState() != StateLoaded {
			return fault.New(fault.InvalidOperation, "data base %s is not loaded", d.Name())
		}
		if err := d.checkAccess(auth, access.TierRead); err != nil {
			return err
		}
		if _, in := d.sessions[auth.ID()]; in {
			return fault.New(fault.ArgumentInvalid, "user %s already entered %s", auth.ID(), d.Name())
		}
		session := &dbSession{auth: auth}
		d.sessions[auth.ID()] = session
		d.entered.Emit(SessionEvent{InvokeID: auth.InvokeID(), User: auth.ID()})

		// Expiry forces an exit. The closure re-checks membership so
		// a session that entered, left, and expired is a no-op.
		user := auth.ID()
		session.cancelExpiry = auth.OnExpired(func(users.ExpireReason) {
			_ = d.dispatcher.InvokeAsync(func() {
				if current, in := d.sessions[user]; in && current == session {
					delete(d.sessions, user)
					d.left.Emit(SessionEvent{InvokeID: auth.InvokeID(), User: user})
				}
			})
		})
		return nil
	})
}

// Leave removes the session from the observers. Never entered is
// NotFound.
func (d *DataBase) Leave(ctx context.Context, auth *users.Authentication) error {
	return d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		session, in := d.sessions[auth.ID()]
		if !in {
			return fault.New(fault.NotFound, "user %s has not entered %s", auth.ID(), d.Name())
		}
		session.cancelExpiry()
		delete(d.sessions, auth.ID())
		d.left.Emit(SessionEvent{InvokeID: auth.InvokeID(), User: auth.ID()})
		return nil
	})
}

// IsEntered reports whether the user's session has entered.
func (d *DataBase) IsEntered(ctx context.Context, auth *users.Authentication, user ref.UserID) (bool, error) {
	var in bool
	err := d.run(ctx, func() error {
		if err := d.verify(auth); err != nil {
			return err
		}
		_, in = d.sessions[user]
		return nil
	})
	return in, err
}

// State returns the current lifecycle state.
func (d *DataBase) State() State { return d.currentState() }

// CheckAccess reports whether the session reaches the required tier
// on this data base. The advisory lock is not consulted.
func (d *DataBase) CheckAccess(auth *users.Authentication, required access.AccessType) error {
	if err := d.verify(auth); err != nil {
		return err
	}
	return d.checkAccess(auth, required)
}

// verify gates every operation: context open, non-nil live session.
func (d *DataBase) verify(auth *users.Authentication) error {
	if auth == nil {
		return fault.New(fault.ArgumentNull, "authentication is required")
	}
	if err := d.owner.requireOpen(); err != nil {
		return err
	}
	return auth.Verify()
}

// checkAccess evaluates the ranked ACL for the required tier.
func (d *DataBase) checkAccess(auth *users.Authentication, required access.AccessType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return access.Check(&d.acl, auth.ID(), auth.Authority(), required)
}

// checkLock evaluates the ACL and the advisory lock together.
func (d *DataBase) checkLock(auth *users.Authentication, required access.AccessType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return access.CheckLock(&d.acl, &d.lock, auth.ID(), auth.Authority(), required)
}

func (d *DataBase) currentState() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *DataBase) setState(state State, invokeID string, task ref.TaskID) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
	d.stateChanged.Emit(StateEvent{InvokeID: invokeID, TaskID: task, State: state})
}

func (d *DataBase) completeTask(invokeID string, task ref.TaskID) {
	d.taskCompleted.Emit(TaskEvent{InvokeID: invokeID, TaskIDs: []ref.TaskID{task}})
}

// latestContents reads the newest revision snapshot, or empty
// contents for a freshly created data base.
func (d *DataBase) latestContents() (*contentSnapshot, error) {
	revisions, err := d.owner.store.Revisions(d.ID())
	if err != nil {
		return nil, err
	}
	if len(revisions) == 0 {
		return &contentSnapshot{}, nil
	}
	last := revisions[len(revisions)-1]
	data, err := d.owner.store.ReadSnapshot(d.ID(), last.Digest)
	if err != nil {
		return nil, err
	}
	var contents contentSnapshot
	if err := codec.Unmarshal(data, &contents); err != nil {
		return nil, fault.Wrap(fault.Unknown, err, "decoding revision %d of %s", last.Number, d.Name())
	}
	return &contents, nil
}

// contents snapshots the item trees.
func (d *DataBase) contents() *contentSnapshot {
	snap := &contentSnapshot{}
	snap.TableCategories, snap.Tables = dumpTree(d.tables)
	snap.TypeCategories, snap.Types = dumpTree(d.types)
	return snap
}

// restoreContents rebuilds the item trees from a snapshot.
func (d *DataBase) restoreContents(snap *contentSnapshot) {
	d.tables = loadTree(d.owner.logger, snap.TableCategories, snap.Tables)
	d.types = loadTree(d.owner.logger, snap.TypeCategories, snap.Types)
}

func dumpTree(t *tree.Tree[*item]) ([]ref.Path, []itemRecord) {
	var categories []ref.Path
	for _, path := range t.Categories() {
		if !path.IsRoot() {
			categories = append(categories, path)
		}
	}
	var records []itemRecord
	for _, path := range t.Items() {
		it, _ := t.Item(path)
		records = append(records, itemRecord{
			Path:     path,
			Comment:  it.comment,
			Created:  it.created,
			Modified: it.modified,
			Rows:     it.rows,
		})
	}
	return categories, records
}

func loadTree(logger *slog.Logger, categories []ref.Path, records []itemRecord) *tree.Tree[*item] {
	t := tree.New[*item]()
	for _, category := range categories {
		if _, err := t.AddCategory(category.Parent(), category.Name()); err != nil {
			logger.Error("restoring item category", "path", category, "error", err)
		}
	}
	for _, record := range records {
		it := &item{
			comment:  record.Comment,
			created:  record.Created,
			modified: record.Modified,
			rows:     record.Rows,
		}
		if it.rows == nil {
			it.rows = map[string]RowFields{}
		}
		if _, err := t.Add(record.Path.Parent(), record.Path.Name(), it); err != nil {
			logger.Error("restoring item", "path", record.Path, "error", err)
		}
	}
	return t
}
