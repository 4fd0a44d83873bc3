// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/vellum-project/vellum/databases"
	"github.com/vellum-project/vellum/domains"
	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/clock"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/storage"
	"github.com/vellum-project/vellum/users"
)

// ShutdownKind says what follows the shutdown.
type ShutdownKind int

const (
	ShutdownStop ShutdownKind = iota
	ShutdownRestart
)

func (k ShutdownKind) String() string {
	if k == ShutdownRestart {
		return "restart"
	}
	return "stop"
}

// CloseEvent is the payload of CloseRequested and Closed.
type CloseEvent struct {
	InvokeID string
	Kind     ShutdownKind
}

// Options configures a Host.
type Options struct {
	Store       storage.Store
	Clock       clock.Clock
	Logger      *slog.Logger
	SessionTTL  time.Duration
	AdminSecret []byte
}

type closeHook struct {
	name string
	fn   func(context.Context) error
}

type pendingShutdown struct {
	kind     ShutdownKind
	invokeID string
	at       time.Time
	timer    *clock.Timer
}

// Host owns the kernel contexts and their lifecycle. Contexts open
// bottom-up (users, databases, domains) and close top-down, so a
// closing layer can still reach the layers it depends on.
type Host struct {
	dispatcher *dispatch.Dispatcher
	clock      clock.Clock
	logger     *slog.Logger

	users     *users.Context
	databases *databases.Context
	domains   *domains.Context

	opened    bool
	closeWork []closeHook
	pending   *pendingShutdown

	closeRequested *dispatch.Event[CloseEvent]
	closed         *dispatch.Event[CloseEvent]
}

// NewHost builds the contexts over one store. Open must be called
// before use.
func NewHost(o Options) (*Host, error) {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	accounts, err := users.NewContext(users.Options{
		Store:       o.Store,
		Clock:       o.Clock,
		Logger:      o.Logger,
		SessionTTL:  o.SessionTTL,
		AdminSecret: o.AdminSecret,
	})
	if err != nil {
		return nil, err
	}
	collection, err := databases.NewContext(databases.Options{
		Store:  o.Store,
		Clock:  o.Clock,
		Logger: o.Logger,
	})
	if err != nil {
		accounts.Stop()
		return nil, err
	}
	registry, err := domains.NewContext(domains.Options{
		Clock:  o.Clock,
		Logger: o.Logger,
	})
	if err != nil {
		collection.Stop()
		accounts.Stop()
		return nil, err
	}
	h := &Host{
		dispatcher: dispatch.New("host"),
		clock:      o.Clock,
		logger:     o.Logger.With("component", "host"),
		users:      accounts,
		databases:  collection,
		domains:    registry,
	}
	h.closeRequested = dispatch.NewEvent[CloseEvent](h.dispatcher)
	h.closed = dispatch.NewEvent[CloseEvent](h.dispatcher)
	return h, nil
}

// Users returns the account context.
func (h *Host) Users() *users.Context { return h.users }

// DataBases returns the data base collection.
func (h *Host) DataBases() *databases.Context { return h.databases }

// Domains returns the domain registry.
func (h *Host) Domains() *domains.Context { return h.domains }

// Dispatcher returns the host's dispatcher.
func (h *Host) Dispatcher() *dispatch.Dispatcher { return h.dispatcher }

// CloseRequested fires before the contexts close; registered close
// work runs after it.
func (h *Host) CloseRequested() *dispatch.Event[CloseEvent] { return h.closeRequested }

// Closed fires once every context has closed.
func (h *Host) Closed() *dispatch.Event[CloseEvent] { return h.closed }

func (h *Host) run(ctx context.Context, fn func() error) error {
	future := dispatch.Async(h.dispatcher, func() (struct{}, error) {
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

// Open brings the kernel up.
func (h *Host) Open(ctx context.Context) error {
	return h.run(ctx, func() error {
		if h.opened {
			return fault.New(fault.InvalidOperation, "host is already open")
		}
		if err := h.users.Open(ctx); err != nil {
			return err
		}
		if err := h.databases.Open(ctx); err != nil {
			_ = h.users.Close(ctx)
			return err
		}
		if err := h.domains.Open(ctx); err != nil {
			_ = h.databases.Close(ctx)
			_ = h.users.Close(ctx)
			return err
		}
		h.opened = true
		h.logger.Info("host open")
		return nil
	})
}

// Close shuts the kernel down immediately.
func (h *Host) Close(ctx context.Context) error {
	return h.run(ctx, func() error {
		if !h.opened {
			return fault.New(fault.InvalidOperation, "host is not open")
		}
		h.performClose(ctx, "", ShutdownStop)
		return nil
	})
}

// Stop closes every dispatcher. The host is unusable afterwards.
func (h *Host) Stop() {
	h.domains.Stop()
	h.databases.Stop()
	h.users.Stop()
	h.dispatcher.Close()
}

// RegisterCloseWork adds an awaitable flush step that runs after
// CloseRequested and before the contexts close. Steps run in
// registration order; a failing step is logged, not fatal.
func (h *Host) RegisterCloseWork(ctx context.Context, name string, fn func(context.Context) error) error {
	if fn == nil {
		return fault.New(fault.ArgumentNull, "close work is required")
	}
	return h.run(ctx, func() error {
		h.closeWork = append(h.closeWork, closeHook{name: name, fn: fn})
		return nil
	})
}

// Shutdown closes the kernel, after delay if delay > 0. A pending
// delayed shutdown can be cancelled with CancelShutdown until its
// timer fires. Admin only.
func (h *Host) Shutdown(ctx context.Context, auth *users.Authentication, delay time.Duration, kind ShutdownKind) error {
	return h.run(ctx, func() error {
		if err := h.verifyAdmin(auth); err != nil {
			return err
		}
		if h.pending != nil {
			return fault.New(fault.InvalidOperation, "a shutdown is already pending")
		}
		if delay <= 0 {
			h.logger.Info("shutdown", "kind", kind, "by", auth.ID())
			h.performClose(ctx, auth.InvokeID(), kind)
			return nil
		}
		p := &pendingShutdown{
			kind:     kind,
			invokeID: auth.InvokeID(),
			at:       h.clock.Now().Add(delay),
		}
		p.timer = h.clock.AfterFunc(delay, func() {
			_ = h.dispatcher.InvokeAsync(func() {
				if h.pending != p {
					return
				}
				h.pending = nil
				h.performClose(context.Background(), p.invokeID, p.kind)
			})
		})
		h.pending = p
		h.logger.Info("shutdown scheduled", "kind", kind, "at", p.at, "by", auth.ID())
		return nil
	})
}

// CancelShutdown withdraws a pending delayed shutdown. Admin only; no
// pending shutdown is InvalidOperation.
func (h *Host) CancelShutdown(ctx context.Context, auth *users.Authentication) error {
	return h.run(ctx, func() error {
		if err := h.verifyAdmin(auth); err != nil {
			return err
		}
		if h.pending == nil {
			return fault.New(fault.InvalidOperation, "no shutdown is pending")
		}
		h.pending.timer.Stop()
		h.pending = nil
		h.logger.Info("shutdown cancelled", "by", auth.ID())
		return nil
	})
}

func (h *Host) verifyAdmin(auth *users.Authentication) error {
	if auth == nil {
		return fault.New(fault.ArgumentNull, "authentication is required")
	}
	if !h.opened {
		return fault.New(fault.InvalidOperation, "host is not open")
	}
	if err := auth.Verify(); err != nil {
		return err
	}
	if auth.Authority() != access.AuthorityAdmin {
		return fault.New(fault.PermissionDenied, "shutdown requires admin authority")
	}
	return nil
}

// performClose runs the shutdown sequence. Dispatcher only.
func (h *Host) performClose(ctx context.Context, invokeID string, kind ShutdownKind) {
	if h.pending != nil {
		h.pending.timer.Stop()
		h.pending = nil
	}
	h.closeRequested.Emit(CloseEvent{InvokeID: invokeID, Kind: kind})
	for _, hook := range h.closeWork {
		if err := hook.fn(ctx); err != nil {
			h.logger.Error("close work failed", "name", hook.name, "error", err)
		}
	}
	if err := h.domains.Close(ctx); err != nil {
		h.logger.Error("closing domain context", "error", err)
	}
	if err := h.databases.Close(ctx); err != nil {
		h.logger.Error("closing data base context", "error", err)
	}
	if err := h.users.Close(ctx); err != nil {
		h.logger.Error("closing user context", "error", err)
	}
	h.opened = false
	h.logger.Info("host closed", "kind", kind)
	h.closed.Emit(CloseEvent{InvokeID: invokeID, Kind: kind})
}
