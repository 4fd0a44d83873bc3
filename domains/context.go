// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package domains

import (
	"context"
	"log/slog"

	"github.com/vellum-project/vellum/databases"
	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/clock"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/users"
)

// Options configures a Context.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Context is the domain registry actor. Domains are created by
// BeginEdit and removed when they end; the registry does not survive
// restarts, matching the in-memory nature of an edit session.
type Context struct {
	dispatcher *dispatch.Dispatcher
	clock      clock.Clock
	logger     *slog.Logger

	opened  bool
	domains map[ref.DomainID]*Domain

	created *dispatch.Event[DomainsEvent]
	deleted *dispatch.Event[DomainsEvent]
}

// NewContext builds the actor. Open must be called before use.
func NewContext(o Options) (*Context, error) {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	c := &Context{
		dispatcher: dispatch.New("domains"),
		clock:      o.Clock,
		logger:     o.Logger.With("component", "domains"),
		domains:    map[ref.DomainID]*Domain{},
	}
	c.created = dispatch.NewEvent[DomainsEvent](c.dispatcher)
	c.deleted = dispatch.NewEvent[DomainsEvent](c.dispatcher)
	return c, nil
}

// Dispatcher returns the registry's dispatcher.
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

// Open starts accepting calls.
func (c *Context) Open(ctx context.Context) error {
	return c.run(ctx, func() error {
		if c.opened {
			return fault.New(fault.InvalidOperation, "domain context is already open")
		}
		c.opened = true
		return nil
	})
}

// Close cancels every open domain and stops accepting calls. The
// backing items keep their pre-domain contents.
func (c *Context) Close(ctx context.Context) error {
	return c.run(ctx, func() error {
		if !c.opened {
			return fault.New(fault.InvalidOperation, "domain context is not open")
		}
		for id, domain := range c.domains {
			if err := domain.shutdown(ctx); err != nil {
				c.logger.Error("cancelling domain at shutdown", "domain", id, "error", err)
			}
			delete(c.domains, id)
		}
		c.opened = false
		return nil
	})
}

// Stop closes the domain dispatchers, then the registry's.
func (c *Context) Stop() {
	done := make(chan []*Domain, 1)
	if err := c.dispatcher.Invoke(func() {
		all := make([]*Domain, 0, len(c.domains))
		for _, domain := range c.domains {
			all = append(all, domain)
		}
		done <- all
	}); err == nil {
		for _, domain := range <-done {
			domain.dispatcher.Close()
		}
	}
	c.dispatcher.Close()
}

// BeginEdit opens a collaborative editing session over one table or
// type. The caller must pass the data base's edit gate; it reserves
// the artifact's single editor slot and becomes the domain owner.
//
// The attach-admit sequence runs under the session's commission, so a
// second composite operation on the same session cannot interleave
// with it, and a session already holding a commission is rejected.
func (c *Context) BeginEdit(ctx context.Context, auth *users.Authentication, db *databases.DataBase, kind databases.ItemKind, artifact ref.Path) (*Domain, error) {
	if db == nil {
		return nil, fault.New(fault.ArgumentNull, "data base is required")
	}
	var domain *Domain
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		commission, err := auth.BeginCommission()
		if err != nil {
			return err
		}
		defer func() {
			if err := auth.EndCommission(commission); err != nil {
				c.logger.Error("ending commission", "user", auth.ID(), "error", err)
			}
		}()
		rows, err := db.AttachEditor(ctx, commission, kind, artifact)
		if err != nil {
			return err
		}
		domain = newDomain(c, db, kind, artifact, rows, access.Sign(auth.ID(), c.clock.Now()))
		if err := domain.dispatcher.Invoke(func() { domain.admit(auth) }); err != nil {
			_ = db.DetachEditor(ctx, kind, artifact)
			return err
		}
		c.domains[domain.id] = domain
		c.logger.Info("domain opened", "domain", domain.id, "database", db.Name(),
			"artifact", artifact, "by", auth.ID())
		c.created.Emit(DomainsEvent{InvokeID: auth.InvokeID(), Domains: []DomainInfo{{
			ID:       domain.id,
			DataBase: db.Name(),
			Kind:     kind,
			Artifact: artifact,
			Owner:    auth.ID(),
			Created:  domain.created,
		}}})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return domain, nil
}

// GetDomain resolves a domain by id.
func (c *Context) GetDomain(ctx context.Context, auth *users.Authentication, id ref.DomainID) (*Domain, error) {
	var domain *Domain
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		found, ok := c.domains[id]
		if !ok {
			return fault.New(fault.NotFound, "domain %s does not exist", id)
		}
		domain = found
		return nil
	})
	return domain, err
}

// GetDomainInfos lists every open domain's snapshot.
func (c *Context) GetDomainInfos(ctx context.Context, auth *users.Authentication) ([]DomainInfo, error) {
	var infos []DomainInfo
	err := c.run(ctx, func() error {
		if err := c.verify(auth); err != nil {
			return err
		}
		for _, domain := range c.domains {
			var info DomainInfo
			if err := domain.run(ctx, func() error {
				info = domain.snapshot()
				return nil
			}); err != nil {
				return err
			}
			infos = append(infos, info)
		}
		return nil
	})
	return infos, err
}

func (c *Context) verify(auth *users.Authentication) error {
	if auth == nil {
		return fault.New(fault.ArgumentNull, "authentication is required")
	}
	if !c.opened {
		return fault.New(fault.InvalidOperation, "domain context is not open")
	}
	return auth.Verify()
}

// deregister drops an ended domain from the registry. Called from the
// domain's dispatcher, so the hop must stay asynchronous: the registry
// may be blocked on this domain for an info snapshot.
func (c *Context) deregister(info DomainInfo, invokeID string) {
	_ = c.dispatcher.InvokeAsync(func() {
		if _, ok := c.domains[info.ID]; !ok {
			return
		}
		delete(c.domains, info.ID)
		c.logger.Info("domain closed", "domain", info.ID)
		c.deleted.Emit(DomainsEvent{InvokeID: invokeID, Domains: []DomainInfo{info}})
	})
}

// shutdown cancels a domain during registry close. Registry
// dispatcher only.
func (d *Domain) shutdown(ctx context.Context) error {
	return d.run(ctx, func() error {
		if d.closed {
			return nil
		}
		if err := d.db.DetachEditor(ctx, d.kind, d.artifact); err != nil {
			return err
		}
		d.closed = true
		for user, entry := range d.participants {
			entry.cancelExpiry()
			delete(d.participants, user)
		}
		d.order = nil
		d.ownerID = ref.UserID{}
		d.deletedEvent.Emit(DeletedEvent{Cancelled: true})
		return nil
	})
}
