// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package users

import (
	"context"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
)

// Login verifies credentials and mints a session token. Failure
// modes: registry closed (InvalidOperation), unknown user (NotFound),
// banned account (PermissionDenied with the ban comment), wrong
// secret (ArgumentInvalid), already logged in (InvalidOperation).
func (c *Context) Login(ctx context.Context, id ref.UserID, secret []byte) ([]byte, error) {
	if id.IsZero() {
		return nil, fault.New(fault.ArgumentNull, "user id is required")
	}
	if len(secret) == 0 {
		return nil, fault.New(fault.ArgumentNull, "secret is required")
	}
	var wire []byte
	err := c.run(ctx, func() error {
		if err := c.requireOpen(); err != nil {
			return err
		}
		record, path, err := c.lookup(id)
		if err != nil {
			return err
		}
		if record.ban.IsBanned() {
			return fault.New(fault.PermissionDenied, "user %s is banned: %s", id, record.ban.Comment)
		}
		if !record.secret.verify(secret) {
			return fault.New(fault.ArgumentInvalid, "wrong secret for %s", id)
		}
		if _, online := c.sessions[id]; online {
			return fault.New(fault.InvalidOperation, "user %s is already logged in", id)
		}
		minted, token, err := c.keypair.Mint(id, record.authority, c.clock.Now(), c.ttl)
		if err != nil {
			return err
		}
		session := &Authentication{
			id:        id,
			authority: record.authority,
			invokeID:  token.ID,
		}
		c.sessions[id] = session
		wire = minted
		c.logger.Info("login", "user", id, "authority", record.authority)
		c.usersLoggedIn.Emit(UsersEvent{
			InvokeID: token.ID,
			Users:    []UserInfo{record.info(path, true)},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wire, nil
}

// Authenticate resolves a token to its live session. A valid
// signature is not enough: the session must still be registered and
// the token must be the one minted for it, so a token from a previous
// login of the same user fails.
func (c *Context) Authenticate(ctx context.Context, token []byte) (*Authentication, error) {
	if len(token) == 0 {
		return nil, fault.New(fault.ArgumentNull, "token is required")
	}
	var session *Authentication
	err := c.run(ctx, func() error {
		if err := c.requireOpen(); err != nil {
			return err
		}
		payload, err := c.keypair.Verify(token, c.clock.Now())
		if err != nil {
			return err
		}
		live, ok := c.sessions[payload.Subject]
		if !ok || live.invokeID != payload.ID {
			return fault.New(fault.AuthenticationExpired, "no live session for token")
		}
		session = live
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Logout ends the caller's own session.
func (c *Context) Logout(ctx context.Context, auth *Authentication) error {
	if auth == nil {
		return fault.New(fault.ArgumentNull, "authentication is required")
	}
	return c.run(ctx, func() error {
		if err := c.requireOpen(); err != nil {
			return err
		}
		if err := auth.Verify(); err != nil {
			return err
		}
		return c.endSession(auth.id, ReasonLogout, "", auth.InvokeID())
	})
}

// ForceLogout ends a session by presenting the account credentials,
// for a client that lost its token. The secret check is the same as
// Login's.
func (c *Context) ForceLogout(ctx context.Context, id ref.UserID, secret []byte) error {
	if id.IsZero() {
		return fault.New(fault.ArgumentNull, "user id is required")
	}
	return c.run(ctx, func() error {
		if err := c.requireOpen(); err != nil {
			return err
		}
		record, _, err := c.lookup(id)
		if err != nil {
			return err
		}
		if !record.secret.verify(secret) {
			return fault.New(fault.ArgumentInvalid, "wrong secret for %s", id)
		}
		session, online := c.sessions[id]
		if !online {
			return fault.New(fault.InvalidOperation, "user %s is not logged in", id)
		}
		return c.endSession(id, ReasonLogout, "", session.InvokeID())
	})
}

// Kick disconnects an online user. Admin only; kicking yourself is
// InvalidOperation (use Logout).
func (c *Context) Kick(ctx context.Context, auth *Authentication, target ref.UserID, comment string) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		if target == auth.ID() {
			return fault.New(fault.InvalidOperation, "cannot kick yourself")
		}
		record, path, err := c.lookup(target)
		if err != nil {
			return err
		}
		if _, online := c.sessions[target]; !online {
			return fault.New(fault.NotFound, "user %s is not logged in", target)
		}
		task = ref.NewTaskID()
		info := record.info(path, false)
		c.logger.Info("kick", "user", target, "by", auth.ID(), "comment", comment)
		c.usersKicked.Emit(UsersEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Users:    []UserInfo{info},
			Comment:  comment,
		})
		if err := c.endSession(target, ReasonKick, comment, auth.InvokeID()); err != nil {
			return err
		}
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// Ban marks an account banned and disconnects it if online. Admin
// only; banning yourself or another admin account is
// InvalidOperation, as is banning a banned account again.
func (c *Context) Ban(ctx context.Context, auth *Authentication, target ref.UserID, comment string) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		if target == auth.ID() {
			return fault.New(fault.InvalidOperation, "cannot ban yourself")
		}
		record, path, err := c.lookup(target)
		if err != nil {
			return err
		}
		if record.authority == access.AuthorityAdmin {
			return fault.New(fault.InvalidOperation, "cannot ban an admin account")
		}
		if record.ban.IsBanned() {
			return fault.New(fault.InvalidOperation, "user %s is already banned", target)
		}
		before := c.currentSnapshot()
		record.ban = access.BanInfo{
			Path:      path,
			Comment:   comment,
			Signature: access.Sign(auth.ID(), c.clock.Now()),
		}
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		_, online := c.sessions[target]
		c.logger.Info("ban", "user", target, "by", auth.ID(), "comment", comment)
		c.usersBanChanged.Emit(UsersEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Users:    []UserInfo{record.info(path, online)},
			Comment:  comment,
		})
		if online {
			if err := c.endSession(target, ReasonBan, comment, auth.InvokeID()); err != nil {
				return err
			}
		}
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// Unban clears an account's ban. Admin only; the account must be
// banned.
func (c *Context) Unban(ctx context.Context, auth *Authentication, target ref.UserID) (ref.TaskID, error) {
	var task ref.TaskID
	err := c.run(ctx, func() error {
		if err := c.verifyAdmin(auth); err != nil {
			return err
		}
		record, path, err := c.lookup(target)
		if err != nil {
			return err
		}
		if !record.ban.IsBanned() {
			return fault.New(fault.InvalidOperation, "user %s is not banned", target)
		}
		before := c.currentSnapshot()
		record.ban = access.BanInfo{}
		if err := c.persistOrRevert(before); err != nil {
			return err
		}
		task = ref.NewTaskID()
		c.logger.Info("unban", "user", target, "by", auth.ID())
		c.usersBanChanged.Emit(UsersEvent{
			InvokeID: auth.InvokeID(),
			TaskID:   task,
			Users:    []UserInfo{record.info(path, false)},
		})
		c.completeTask(auth.InvokeID(), task)
		return nil
	})
	return task, err
}

// endSession removes and expires a live session and emits the logout
// notification. Callers run on the dispatcher.
func (c *Context) endSession(id ref.UserID, reason ExpireReason, comment, invokeID string) error {
	session, ok := c.sessions[id]
	if !ok {
		return fault.New(fault.NotFound, "user %s is not logged in", id)
	}
	delete(c.sessions, id)
	session.expire(reason)
	record, path, err := c.lookup(id)
	if err != nil {
		return err
	}
	c.logger.Info("logout", "user", id, "reason", reason)
	c.usersLoggedOut.Emit(UsersEvent{
		InvokeID: invokeID,
		Users:    []UserInfo{record.info(path, false)},
		Comment:  comment,
	})
	return nil
}

// verifyAdmin gates the administrative operations.
func (c *Context) verifyAdmin(auth *Authentication) error {
	if auth == nil {
		return fault.New(fault.ArgumentNull, "authentication is required")
	}
	if err := c.requireOpen(); err != nil {
		return err
	}
	if err := auth.Verify(); err != nil {
		return err
	}
	if auth.Authority() != access.AuthorityAdmin {
		return fault.New(fault.PermissionDenied, "operation requires admin authority")
	}
	return nil
}

// lookup resolves a user id to its live record and path.
func (c *Context) lookup(id ref.UserID) (*user, ref.Path, error) {
	path, ok := c.paths[id]
	if !ok {
		return nil, ref.Path{}, fault.New(fault.NotFound, "user %s does not exist", id)
	}
	record, ok := c.tree.Item(path)
	if !ok {
		return nil, ref.Path{}, fault.New(fault.NotFound, "user %s does not exist", id)
	}
	return record, path, nil
}
