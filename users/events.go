// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/ref"
)

// ItemChange describes one item or category affected by a structural
// mutation. OldPath is set for renames and moves.
type ItemChange struct {
	Path    ref.Path
	OldPath ref.Path
}

// ItemsEvent is the payload of the structural change notifications.
type ItemsEvent struct {
	InvokeID string
	TaskID   ref.TaskID
	Items    []ItemChange
}

// UsersEvent is the payload of the session and account notifications.
// Comment carries the kick or ban message where one applies.
type UsersEvent struct {
	InvokeID string
	TaskID   ref.TaskID
	Users    []UserInfo
	Comment  string
}

// TaskEvent reports completed task IDs for one invoker so a client
// with several pending calls can tell its own completions from other
// users' activity.
type TaskEvent struct {
	InvokeID string
	TaskIDs  []ref.TaskID
}

// ItemsCreated fires after a category or user is added.
func (c *Context) ItemsCreated() *dispatch.Event[ItemsEvent] { return c.itemsCreated }

// ItemsRenamed fires after a category rename.
func (c *Context) ItemsRenamed() *dispatch.Event[ItemsEvent] { return c.itemsRenamed }

// ItemsMoved fires after a category or user moves to a new parent.
func (c *Context) ItemsMoved() *dispatch.Event[ItemsEvent] { return c.itemsMoved }

// ItemsDeleted fires after a category or user is deleted.
func (c *Context) ItemsDeleted() *dispatch.Event[ItemsEvent] { return c.itemsDeleted }

// UsersChanged fires after display name, secret, or authority change.
func (c *Context) UsersChanged() *dispatch.Event[UsersEvent] { return c.usersChanged }

// UsersLoggedIn fires after a successful login.
func (c *Context) UsersLoggedIn() *dispatch.Event[UsersEvent] { return c.usersLoggedIn }

// UsersLoggedOut fires after a session ends for any reason.
func (c *Context) UsersLoggedOut() *dispatch.Event[UsersEvent] { return c.usersLoggedOut }

// UsersKicked fires when an administrator disconnects an online user.
func (c *Context) UsersKicked() *dispatch.Event[UsersEvent] { return c.usersKicked }

// UsersBanChanged fires after a ban or unban.
func (c *Context) UsersBanChanged() *dispatch.Event[UsersEvent] { return c.usersBanChanged }

// TaskCompleted fires after every mutating call, carrying the task ID
// the call returned.
func (c *Context) TaskCompleted() *dispatch.Event[TaskEvent] { return c.taskCompleted }
