// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/ref"
)

// ItemChange describes one affected item or category. OldPath is set
// for renames and moves.
type ItemChange struct {
	Kind    ItemKind
	Path    ref.Path
	OldPath ref.Path
}

// ItemsEvent is the payload of a data base's structural change
// notifications.
type ItemsEvent struct {
	InvokeID string
	TaskID   ref.TaskID
	Items    []ItemChange
}

// StateEvent reports a lifecycle transition.
type StateEvent struct {
	InvokeID string
	TaskID   ref.TaskID
	State    State
}

// AccessEvent reports an access or lock change with the new state.
type AccessEvent struct {
	InvokeID string
	TaskID   ref.TaskID
	Access   access.AccessInfo
	Lock     access.LockInfo
}

// SessionEvent reports a session entering or leaving the data base.
type SessionEvent struct {
	InvokeID string
	User     ref.UserID
}

// ResetEvent brackets a transaction rollback. Observers invalidate
// caches on Resetting and repopulate on Reset.
type ResetEvent struct {
	InvokeID string
	TaskID   ref.TaskID
}

// TaskEvent reports completed task IDs for one invoker.
type TaskEvent struct {
	InvokeID string
	TaskIDs  []ref.TaskID
}

// DataBaseChange describes one data base affected by a collection
// mutation.
type DataBaseChange struct {
	Info    DataBaseInfo
	OldName ref.Name
}

// DataBasesEvent is the payload of the collection notifications.
type DataBasesEvent struct {
	InvokeID  string
	TaskID    ref.TaskID
	DataBases []DataBaseChange
}

// Per-data-base notification surface. Subscription runs on the data
// base's own dispatcher.

func (d *DataBase) ItemsCreated() *dispatch.Event[ItemsEvent] { return d.itemsCreated }
func (d *DataBase) ItemsRenamed() *dispatch.Event[ItemsEvent] { return d.itemsRenamed }
func (d *DataBase) ItemsMoved() *dispatch.Event[ItemsEvent]   { return d.itemsMoved }
func (d *DataBase) ItemsDeleted() *dispatch.Event[ItemsEvent] { return d.itemsDeleted }

// StateChanged fires on every lifecycle transition, including both
// edges of Load and Unload.
func (d *DataBase) StateChanged() *dispatch.Event[StateEvent] { return d.stateChanged }

// AccessChanged fires after visibility or membership changes.
func (d *DataBase) AccessChanged() *dispatch.Event[AccessEvent] { return d.accessChanged }

// LockChanged fires after Lock and Unlock.
func (d *DataBase) LockChanged() *dispatch.Event[AccessEvent] { return d.lockChanged }

// AuthenticationEntered fires when a session enters the data base.
func (d *DataBase) AuthenticationEntered() *dispatch.Event[SessionEvent] { return d.entered }

// AuthenticationLeft fires when a session leaves for any reason,
// expiry included.
func (d *DataBase) AuthenticationLeft() *dispatch.Event[SessionEvent] { return d.left }

// Resetting fires before a rollback discards in-memory contents.
func (d *DataBase) Resetting() *dispatch.Event[ResetEvent] { return d.resetting }

// Reset fires after a rollback restored the pre-transaction contents.
func (d *DataBase) Reset() *dispatch.Event[ResetEvent] { return d.reset }

// TaskCompleted fires after every mutating call on this data base.
func (d *DataBase) TaskCompleted() *dispatch.Event[TaskEvent] { return d.taskCompleted }

// Collection notification surface, owned by the context dispatcher.

// ItemsCreated fires after a data base is created or copied.
func (c *Context) ItemsCreated() *dispatch.Event[DataBasesEvent] { return c.itemsCreated }

// ItemsRenamed fires after a data base rename.
func (c *Context) ItemsRenamed() *dispatch.Event[DataBasesEvent] { return c.itemsRenamed }

// ItemsDeleted fires after a data base is deleted.
func (c *Context) ItemsDeleted() *dispatch.Event[DataBasesEvent] { return c.itemsDeleted }

// TaskCompleted fires after every mutating collection call.
func (c *Context) TaskCompleted() *dispatch.Event[TaskEvent] { return c.taskCompleted }
