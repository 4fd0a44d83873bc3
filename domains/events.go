// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package domains

import (
	"github.com/vellum-project/vellum/databases"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/ref"
)

// RemoveReason says why a participant was removed.
type RemoveReason int

const (
	RemoveNone RemoveReason = iota
	RemoveKick
)

func (r RemoveReason) String() string {
	if r == RemoveKick {
		return "kick"
	}
	return "none"
}

// UserEvent reports a participant entering or leaving.
type UserEvent struct {
	InvokeID string
	User     ref.UserID
}

// RemovedEvent reports a forced removal. A client observing its own
// removal tears down its local editing context immediately.
type RemovedEvent struct {
	InvokeID string
	User     ref.UserID
	Reason   RemoveReason
	Comment  string
}

// OwnerEvent reports an ownership change.
type OwnerEvent struct {
	InvokeID string
	Owner    ref.UserID
}

// RowEvent reports one row edit inside the domain.
type RowEvent struct {
	InvokeID string
	Row      string
	Fields   databases.RowFields
}

// DeletedEvent reports the end of the session. Cancelled edits were
// discarded, otherwise they were committed to the backing item.
type DeletedEvent struct {
	InvokeID  string
	Cancelled bool
}

// DomainsEvent is the payload of the registry notifications.
type DomainsEvent struct {
	InvokeID string
	Domains  []DomainInfo
}

// Per-domain notification surface. Subscription runs on the domain's
// dispatcher; delivery runs on each subscriber's own.

func (d *Domain) UserEntered() *dispatch.Event[UserEvent]    { return d.userEntered }
func (d *Domain) UserLeft() *dispatch.Event[UserEvent]       { return d.userLeft }
func (d *Domain) UserRemoved() *dispatch.Event[RemovedEvent] { return d.userRemoved }
func (d *Domain) OwnerChanged() *dispatch.Event[OwnerEvent]  { return d.ownerChanged }
func (d *Domain) RowAdded() *dispatch.Event[RowEvent]        { return d.rowAdded }
func (d *Domain) RowChanged() *dispatch.Event[RowEvent]      { return d.rowChanged }
func (d *Domain) RowRemoved() *dispatch.Event[RowEvent]      { return d.rowRemoved }
func (d *Domain) Deleted() *dispatch.Event[DeletedEvent]     { return d.deletedEvent }

// Registry notification surface, owned by the Context dispatcher.

func (c *Context) DomainsCreated() *dispatch.Event[DomainsEvent] { return c.created }
func (c *Context) DomainsDeleted() *dispatch.Event[DomainsEvent] { return c.deleted }
