// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"context"
	"log/slog"
	"time"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/clock"
	"github.com/vellum-project/vellum/lib/codec"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/lib/sessiontoken"
	"github.com/vellum-project/vellum/lib/tree"
	"github.com/vellum-project/vellum/storage"
)

// Options configures a Context.
type Options struct {
	Store  storage.Store
	Clock  clock.Clock
	Logger *slog.Logger

	// SessionTTL bounds token validity.
	SessionTTL time.Duration

	// AdminSecret seeds the admin account when the store is empty.
	// Ignored once the user tree exists.
	AdminSecret []byte
}

// Context is the user tree and session registry actor. All state
// behind it is owned by its dispatcher.
type Context struct {
	dispatcher *dispatch.Dispatcher
	clock      clock.Clock
	logger     *slog.Logger
	store      storage.Store
	ttl        time.Duration

	adminSecret []byte

	opened   bool
	keypair  *sessiontoken.Keypair
	tree     *tree.Tree[*user]
	paths    map[ref.UserID]ref.Path
	sessions map[ref.UserID]*Authentication

	itemsCreated    *dispatch.Event[ItemsEvent]
	itemsRenamed    *dispatch.Event[ItemsEvent]
	itemsMoved      *dispatch.Event[ItemsEvent]
	itemsDeleted    *dispatch.Event[ItemsEvent]
	usersChanged    *dispatch.Event[UsersEvent]
	usersLoggedIn   *dispatch.Event[UsersEvent]
	usersLoggedOut  *dispatch.Event[UsersEvent]
	usersKicked     *dispatch.Event[UsersEvent]
	usersBanChanged *dispatch.Event[UsersEvent]
	taskCompleted   *dispatch.Event[TaskEvent]
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
	if o.SessionTTL <= 0 {
		return nil, fault.New(fault.ArgumentInvalid, "session ttl must be positive")
	}
	c := &Context{
		dispatcher:  dispatch.New("users"),
		clock:       o.Clock,
		logger:      o.Logger.With("component", "users"),
		store:       o.Store,
		ttl:         o.SessionTTL,
		adminSecret: o.AdminSecret,
		tree:        tree.New[*user](),
		paths:       map[ref.UserID]ref.Path{},
		sessions:    map[ref.UserID]*Authentication{},
	}
	c.itemsCreated = dispatch.NewEvent[ItemsEvent](c.dispatcher)
	c.itemsRenamed = dispatch.NewEvent[ItemsEvent](c.dispatcher)
	c.itemsMoved = dispatch.NewEvent[ItemsEvent](c.dispatcher)
	c.itemsDeleted = dispatch.NewEvent[ItemsEvent](c.dispatcher)
	c.usersChanged = dispatch.NewEvent[UsersEvent](c.dispatcher)
	c.usersLoggedIn = dispatch.NewEvent[UsersEvent](c.dispatcher)
	c.usersLoggedOut = dispatch.NewEvent[UsersEvent](c.dispatcher)
	c.usersKicked = dispatch.NewEvent[UsersEvent](c.dispatcher)
	c.usersBanChanged = dispatch.NewEvent[UsersEvent](c.dispatcher)
	c.taskCompleted = dispatch.NewEvent[TaskEvent](c.dispatcher)
	return c, nil
}

// Dispatcher returns the actor's dispatcher. Event subscription runs
// through it.
func (c *Context) Dispatcher() *dispatch.Dispatcher { return c.dispatcher }

// run marshals fn onto the dispatcher and waits, honoring ctx while
// waiting. A dispatched fn always runs to completion; ctx expiry
// abandons the wait, not the operation.
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

// Open loads the persisted tree, seeding the admin account on first
// boot, and starts accepting logins.
func (c *Context) Open(ctx context.Context) error {
	return c.run(ctx, func() error {
		if c.opened {
			return fault.New(fault.InvalidOperation, "user context is already open")
		}
		keypair, err := sessiontoken.NewKeypair()
		if err != nil {
			return err
		}
		data, err := c.store.ReadUsers()
		if err != nil {
			return err
		}
		if data == nil {
			if err := c.seed(); err != nil {
				return err
			}
		} else {
			var snap snapshot
			if err := codec.Unmarshal(data, &snap); err != nil {
				return fault.Wrap(fault.Unknown, err, "decoding user snapshot")
			}
			c.restore(&snap)
		}
		c.keypair = keypair
		c.adminSecret = nil
		c.opened = true
		c.logger.Info("user context open", "users", c.tree.Len())
		return nil
	})
}

// Close expires every session with ReasonShutdown and stops accepting
// calls. The dispatcher itself keeps draining so queued notifications
// still deliver; Stop releases it.
func (c *Context) Close(ctx context.Context) error {
	return c.run(ctx, func() error {
		if !c.opened {
			return fault.New(fault.InvalidOperation, "user context is not open")
		}
		for id, session := range c.sessions {
			session.expire(ReasonShutdown)
			delete(c.sessions, id)
			c.logger.Info("session expired by shutdown", "user", id)
		}
		c.opened = false
		return nil
	})
}

// Stop closes the dispatcher after Close.
func (c *Context) Stop() { c.dispatcher.Close() }

// seed creates the admin account in an empty store.
func (c *Context) seed() error {
	if len(c.adminSecret) == 0 {
		return fault.New(fault.ArgumentNull, "admin secret is required for first boot")
	}
	digest, err := hashSecret(c.adminSecret)
	if err != nil {
		return err
	}
	signature := access.Sign(ref.SystemID, c.clock.Now())
	admin := &user{
		id:          ref.AdminID,
		displayName: "Administrator",
		authority:   access.AuthorityAdmin,
		secret:      digest,
		created:     signature,
		modified:    signature,
	}
	path, err := c.tree.Add(ref.RootPath, admin.id.Name(), admin)
	if err != nil {
		return err
	}
	c.paths[admin.id] = path
	if err := c.persist(); err != nil {
		return err
	}
	c.logger.Info("seeded admin account")
	return nil
}

// persist writes the whole tree through the store.
func (c *Context) persist() error {
	snap := c.currentSnapshot()
	data, err := codec.Marshal(snap)
	if err != nil {
		return fault.Wrap(fault.Unknown, err, "encoding user snapshot")
	}
	return c.store.WriteUsers(data)
}

// persistOrRevert persists, restoring the pre-mutation state on
// failure so a failed task never leaves a half-applied tree.
func (c *Context) persistOrRevert(before *snapshot) error {
	if err := c.persist(); err != nil {
		c.restore(before)
		return err
	}
	return nil
}

func (c *Context) currentSnapshot() *snapshot {
	snap := &snapshot{}
	for _, path := range c.tree.Categories() {
		if !path.IsRoot() {
			snap.Categories = append(snap.Categories, path)
		}
	}
	for _, path := range c.tree.Items() {
		record, _ := c.tree.Item(path)
		snap.Users = append(snap.Users, userRecord{
			ID:          record.id,
			Path:        path,
			DisplayName: record.displayName,
			Authority:   record.authority,
			Secret:      record.secret,
			Ban:         record.ban,
			Created:     record.created,
			Modified:    record.modified,
		})
	}
	return snap
}

// restore rebuilds the tree and path index from a snapshot. Sessions
// are untouched.
func (c *Context) restore(snap *snapshot) {
	c.tree = tree.New[*user]()
	c.paths = map[ref.UserID]ref.Path{}
	for _, category := range snap.Categories {
		// Parents sort before children, so creating in order works.
		if _, err := c.tree.AddCategory(category.Parent(), category.Name()); err != nil {
			c.logger.Error("restoring category", "path", category, "error", err)
		}
	}
	for _, record := range snap.Users {
		u := &user{
			id:          record.ID,
			displayName: record.DisplayName,
			authority:   record.Authority,
			secret:      record.Secret,
			ban:         record.Ban,
			created:     record.Created,
			modified:    record.Modified,
		}
		path, err := c.tree.Add(record.Path.Parent(), record.ID.Name(), u)
		if err != nil {
			c.logger.Error("restoring user", "user", record.ID, "error", err)
			continue
		}
		c.paths[record.ID] = path
	}
}

// requireOpen gates every operation on lifecycle state.
func (c *Context) requireOpen() error {
	if !c.opened {
		return fault.New(fault.InvalidOperation, "user context is not open")
	}
	return nil
}

// completeTask emits TaskCompleted for one finished mutation.
func (c *Context) completeTask(invokeID string, task ref.TaskID) {
	c.taskCompleted.Emit(TaskEvent{InvokeID: invokeID, TaskIDs: []ref.TaskID{task}})
}
