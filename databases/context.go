// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/clock"
	"github.com/vellum-project/vellum/lib/codec"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/storage"
	"github.com/vellum-project/vellum/users"
)

// Options configures a Context.
type Options struct {
	Store  storage.Store
	Clock  clock.Clock
	Logger *slog.Logger
}

// dbRecord is the persisted form of one data base's metadata.
type dbRecord struct {
	ID       ref.DataBaseID    `cbor:"1,keyasint"`
	Name     ref.Name          `cbor:"2,keyasint"`
	Comment  string            `cbor:"3,keyasint"`
	Revision uint64            `cbor:"4,keyasint"`
	Access   access.AccessInfo `cbor:"5,keyasint"`
	Lock     access.LockInfo   `cbor:"6,keyasint"`
	Created  access.Signature  `cbor:"7,keyasint"`
	Modified access.Signature  `cbor:"8,keyasint"`
}

// collectionSnapshot is the persisted form of the collection.
type collectionSnapshot struct {
	DataBases []dbRecord `cbor:"1,keyasint"`
}

// Context is the data base collection actor.
type Context struct {
	dispatcher *dispatch.Dispatcher
	clock      clock.Clock
	logger     *slog.Logger
	store      storage.Store

	// mu guards opened and the databases map for cross-dispatcher
	// reads; the collection dispatcher remains the only writer.
	mu        sync.Mutex
	opened    bool
	databases map[ref.Name]*DataBase

	// persistMu serializes collection snapshot writes, which can
	// start from any data base's dispatcher.
	persistMu sync.Mutex

	itemsCreated  *dispatch.Event[DataBasesEvent]
	itemsRenamed  *dispatch.Event[DataBasesEvent]
	itemsDeleted  *dispatch.Event[DataBasesEvent]
	taskCompleted *dispatch.Event[TaskEvent]
}

// NewContext builds the actor. Open must be called before use.
func NewContext(o Options) (*Context, error) {
	if o.Store == nil {
		return nil, fault.New(fault.ArgumentNull, "store is required")
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	c := &Context{
		dispatcher: dispatch.New("databases"),
		clock:      o.Clock,
		logger:     o.Logger.With("component", "databases"),
		store:      o.Store,
		databases:  map[ref.Name]*DataBase{},
	}
	c.itemsCreated = dispatch.NewEvent[DataBasesEvent](c.dispatcher)
	c.itemsRenamed = dispatch.NewEvent[DataBasesEvent](c.dispatcher)
	c.itemsDeleted = dispatch.NewEvent[DataBasesEvent](c.dispatcher)
	c.taskCompleted = dispatch.NewEvent[TaskEvent](c.dispatcher)
	return c, nil
}

// Dispatcher returns the collection's dispatcher.
func (c *Context) Dispatcher() *dispatch.Dispatcher { return c.dispatcher }

func (c *Context) run(ctx context.Context, fn func() error) error {
	future := dispatch.Async(c.dispatcher, func() (struct{}, error) {
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

// Open loads the persisted collection. Every data base starts
// unloaded.
func (c *Context) Open(ctx context.Context) error {
	return c.run(ctx, func() error {
		if c.isOpen() {
			return fault.New(fault.InvalidOperation, "data base context is already open")
		}
		data, err := c.store.ReadDataBases()
		if err != nil {
			return err
		}
		if data != nil {
			var snap collectionSnapshot
			if err := codec.Unmarshal(data, &snap); err != nil {
				return fault.Wrap(fault.Unknown, err, "decoding data base collection")
			}
			for _, record := range snap.DataBases {
				db := newDataBase(c, record.ID, record.Name)
				db.comment = record.Comment
				db.revision = record.Revision
				db.acl = record.Access
				db.lock = record.Lock
				db.created = record.Created
				db.modified = record.Modified
				c.putDataBase(record.Name, db)
			}
		}
		c.setOpen(true)
		c.logger.Info("data base context open", "databases", len(c.databases))
		return nil
	})
}

// Close stops accepting calls. Loaded data bases are dropped from
// memory; their state is already durable.
func (c *Context) Close(ctx context.Context) error {
	return c.run(ctx, func() error {
		if !c.isOpen() {
			return fault.New(fault.InvalidOperation, "data base context is not open")
		}
		c.setOpen(false)
		return nil
	})
}

// Stop closes the data base dispatchers, then the collection's.
func (c *Context) Stop() {
	done := make(chan []*DataBase, 1)
	if err := c.dispatcher.Invoke(func() {
		all := make([]*DataBase, 0, len(c.databases))
		for _, db := range c.databases {
			all = append(all, db)
		}
		done <- all
	}); err == nil {
		for _, db := range <-done {
			db.dispatcher.Close()
		}
	}
	c.dispatcher.Close()
}

// AddNewDataBase creates an empty data base. Admin only; its first
// revision is the empty contents.
func (c *Context) AddNewDataBase(ctx context.Context, auth *users.Authentication, name ref.Name, comment string) (ref.TaskID, error) {
	if name.IsZero() {
		return ref.TaskID{}, fault.New(fault.ArgumentNull, "name is required")
	}
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		if _, exists := c.databases[name]; exists {
			return fault.New(fault.ArgumentInvalid, "data base %s already exists", name)
		}
		db := newDataBase(c, ref.NewDataBaseID(), name)
		signature := access.Sign(auth.ID(), c.clock.Now())
		db.comment = comment
		db.acl = access.AccessInfo{Public: true, Owner: auth.ID(), Signature: signature}
		db.created = signature
		db.modified = signature
		if err := c.seedRevision(db, auth.ID(), &contentSnapshot{}, "created"); err != nil {
			db.dispatcher.Close()
			return err
		}
		c.putDataBase(name, db)
		if err := c.persist(); err != nil {
			c.dropDataBase(name)
			db.dispatcher.Close()
			return err
		}
		task = ref.NewTaskID()
		c.logger.Info("data base created", "name", name, "by", auth.ID())
		c.itemsCreated.Emit(DataBasesEvent{
			InvokeID:  auth.InvokeID(),
			TaskID:    task,
			DataBases: []DataBaseChange{{Info: db.info()}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// CopyDataBase creates a data base whose first revision equals the
// source's newest revision. Requires read access on the source.
func (c *Context) CopyDataBase(ctx context.Context, auth *users.Authentication, source, target ref.Name, comment string) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		src, ok := c.databases[source]
		if !ok {
			return fault.New(fault.NotFound, "data base %s does not exist", source)
		}
		if err := src.checkAccess(auth, access.TierRead); err != nil {
			return err
		}
		if _, exists := c.databases[target]; exists {
			return fault.New(fault.ArgumentInvalid, "data base %s already exists", target)
		}
		contents, err := src.latestContents()
		if err != nil {
			return err
		}
		db := newDataBase(c, ref.NewDataBaseID(), target)
		signature := access.Sign(auth.ID(), c.clock.Now())
		db.comment = comment
		db.acl = access.AccessInfo{Public: true, Owner: auth.ID(), Signature: signature}
		db.created = signature
		db.modified = signature
		if err := c.seedRevision(db, auth.ID(), contents, "copied from "+source.String()); err != nil {
			db.dispatcher.Close()
			return err
		}
		c.putDataBase(target, db)
		if err := c.persist(); err != nil {
			c.dropDataBase(target)
			db.dispatcher.Close()
			return err
		}
		task = ref.NewTaskID()
		c.logger.Info("data base copied", "source", source, "target", target, "by", auth.ID())
		c.itemsCreated.Emit(DataBasesEvent{
			InvokeID:  auth.InvokeID(),
			TaskID:    task,
			DataBases: []DataBaseChange{{Info: db.info()}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// RenameDataBase renames an unloaded data base. Requires Master tier
// and respects the advisory lock.
func (c *Context) RenameDataBase(ctx context.Context, auth *users.Authentication, name, newName ref.Name) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		db, ok := c.databases[name]
		if !ok {
			return fault.New(fault.NotFound, "data base %s does not exist", name)
		}
		if name == newName {
			return fault.New(fault.ArgumentInvalid, "data base %s already has that name", name)
		}
		if _, exists := c.databases[newName]; exists {
			return fault.New(fault.ArgumentInvalid, "data base %s already exists", newName)
		}
		if err := db.checkLock(auth, access.TierDestroy); err != nil {
			return err
		}
		if db.currentState() != StateNone {
			return fault.New(fault.InvalidOperation, "data base %s must be unloaded to rename", name)
		}
		db.mu.Lock()
		db.name = newName
		db.modified = access.Sign(auth.ID(), c.clock.Now())
		db.mu.Unlock()
		c.dropDataBase(name)
		c.putDataBase(newName, db)
		if err := c.persist(); err != nil {
			db.mu.Lock()
			db.name = name
			db.mu.Unlock()
			c.dropDataBase(newName)
			c.putDataBase(name, db)
			return err
		}
		task = ref.NewTaskID()
		c.logger.Info("data base renamed", "from", name, "to", newName, "by", auth.ID())
		c.itemsRenamed.Emit(DataBasesEvent{
			InvokeID:  auth.InvokeID(),
			TaskID:    task,
			DataBases: []DataBaseChange{{Info: db.info(), OldName: name}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// DeleteDataBase removes an unloaded data base and its revision log.
// Requires Master tier and respects the advisory lock.
func (c *Context) DeleteDataBase(ctx context.Context, auth *users.Authentication, name ref.Name) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		db, ok := c.databases[name]
		if !ok {
			return fault.New(fault.NotFound, "data base %s does not exist", name)
		}
		if err := db.checkLock(auth, access.TierDestroy); err != nil {
			return err
		}
		if db.currentState() != StateNone {
			return fault.New(fault.InvalidOperation, "data base %s must be unloaded to delete", name)
		}
		info := db.info()
		c.dropDataBase(name)
		if err := c.persist(); err != nil {
			c.putDataBase(name, db)
			return err
		}
		if err := c.store.RemoveDataBase(info.ID); err != nil {
			c.logger.Error("removing revision log", "name", name, "error", err)
		}
		db.dispatcher.Close()
		task = ref.NewTaskID()
		c.logger.Info("data base deleted", "name", name, "by", auth.ID())
		c.itemsDeleted.Emit(DataBasesEvent{
			InvokeID:  auth.InvokeID(),
			TaskID:    task,
			DataBases: []DataBaseChange{{Info: info}},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// GetDataBase resolves a data base by name.
func (c *Context) GetDataBase(ctx context.Context, auth *users.Authentication, name ref.Name) (*DataBase, error) {
	var db *DataBase
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		found, ok := c.databases[name]
		if !ok {
			return fault.New(fault.NotFound, "data base %s does not exist", name)
		}
		db = found
		return nil
	})
	return db, err
}

// GetDataBaseInfos lists the collection's metadata snapshots.
func (c *Context) GetDataBaseInfos(ctx context.Context, auth *users.Authentication) ([]DataBaseInfo, error) {
	var infos []DataBaseInfo
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		for _, db := range c.databases {
			infos = append(infos, db.info())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortInfos(infos)
	return infos, nil
}

// Contains reports whether a data base exists.
func (c *Context) Contains(ctx context.Context, auth *users.Authentication, name ref.Name) (bool, error) {
	var found bool
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		_, found = c.databases[name]
		return nil
	})
	return found, err
}

func (c *Context) verify(auth *users.Authentication) error {
	if auth == nil {
		return fault.New(fault.ArgumentNull, "authentication is required")
	}
	if err := c.requireOpen(); err != nil {
		return err
	}
	return auth.Verify()
}

func (c *Context) verifyAdmin(auth *users.Authentication) error {
	if err := c.verify(auth); err != nil {
		return err
	}
	if auth.Authority() != access.AuthorityAdmin {
		return fault.New(fault.PermissionDenied, "operation requires admin authority")
	}
	return nil
}

func (c *Context) requireOpen() error {
	if !c.isOpen() {
		return fault.New(fault.InvalidOperation, "data base context is not open")
	}
	return nil
}

func (c *Context) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

func (c *Context) setOpen(open bool) {
	c.mu.Lock()
	c.opened = open
	c.mu.Unlock()
}

func (c *Context) putDataBase(name ref.Name, db *DataBase) {
	c.mu.Lock()
	c.databases[name] = db
	c.mu.Unlock()
}

func (c *Context) dropDataBase(name ref.Name) {
	c.mu.Lock()
	delete(c.databases, name)
	c.mu.Unlock()
}

// seedRevision writes a data base's first revision.
func (c *Context) seedRevision(db *DataBase, user ref.UserID, contents *contentSnapshot, message string) error {
	data, err := codec.Marshal(contents)
	if err != nil {
		return fault.Wrap(fault.Unknown, err, "encoding contents")
	}
	revision := storage.Revision{
		Number:  1,
		Digest:  storage.HashSnapshot(data),
		Message: message,
		User:    user,
		At:      c.clock.Now(),
	}
	if err := c.store.AppendRevision(db.id, revision, data); err != nil {
		return err
	}
	db.revision = 1
	return nil
}

// persist writes the collection snapshot. Any dispatcher may call it;
// persistMu serializes writers and each data base's mutex guards its
// metadata read.
func (c *Context) persist() error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	snap := &collectionSnapshot{}
	for _, info := range c.collectInfos() {
		snap.DataBases = append(snap.DataBases, dbRecord{
			ID:       info.ID,
			Name:     info.Name,
			Comment:  info.Comment,
			Revision: info.Revision,
			Access:   info.Access,
			Lock:     info.Lock,
			Created:  info.Created,
			Modified: info.Modified,
		})
	}
	data, err := codec.Marshal(snap)
	if err != nil {
		return fault.Wrap(fault.Unknown, err, "encoding data base collection")
	}
	return c.store.WriteDataBases(data)
}

// collectInfos snapshots every data base's metadata in name order.
func (c *Context) collectInfos() []DataBaseInfo {
	c.mu.Lock()
	all := make([]*DataBase, 0, len(c.databases))
	for _, db := range c.databases {
		all = append(all, db)
	}
	c.mu.Unlock()
	infos := make([]DataBaseInfo, 0, len(all))
	for _, db := range all {
		infos = append(infos, db.info())
	}
	sortInfos(infos)
	return infos
}

func sortInfos(infos []DataBaseInfo) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name.String() < infos[j].Name.String()
	})
}

func (c *Context) completeTask(invokeID string, task ref.TaskID) {
	c.taskCompleted.Emit(TaskEvent{InvokeID: invokeID, TaskIDs: []ref.TaskID{task}})
}
