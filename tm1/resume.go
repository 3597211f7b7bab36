//
// Copyright (c) 2023, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"context"
	"errors"

	"github.com/tm1labs/tm1-go-sdk/tm1/sessionstore"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// ConnectWithStoredSession connects to the database, resuming a session
// persisted in store when one exists.
//
// A stored session is attached to and verified with a product version
// request. When the server no longer accepts it, the client falls back to a
// fresh handshake with the credentials in cfg, and the store is updated with
// the session that results. Pair it with Config.RetainSession and Disconnect
// so the session outlives the process.
//
// cfg.SessionID is ignored; the store decides which session to attach to.
func ConnectWithStoredSession(ctx context.Context, cfg Config, store *sessionstore.Store) (*Client, error) {
	if store == nil {
		return nil, tm1err.NewConfiguration("session store must be non-nil")
	}

	probe := cfg
	if err := probe.resolveBaseURL(); err != nil {
		return nil, err
	}

	stored, err := store.Load(probe.baseURL, cfg.User)
	if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		return nil, err
	}

	if stored != nil {
		c, rerr := resumeSession(ctx, cfg, stored)
		if rerr == nil {
			if c.SessionToken() != stored.SessionID || c.ServerVersion() != stored.Version {
				// the client reconnected away from the stored session
				// or the server rotated the cookie
				saveSession(store, c)
			}
			return c, nil
		}
		if !tm1err.IsAuthentication(rerr) && !tm1err.IsUnauthorized(rerr) {
			return nil, rerr
		}
		_ = store.Delete(probe.baseURL, cfg.User)
	}

	fresh := cfg
	fresh.SessionID = ""
	c, err := NewClient(fresh)
	if err != nil {
		return nil, err
	}
	if err = c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	saveSession(store, c)
	return c, nil
}

// resumeSession attaches to the stored session and verifies the server
// still accepts it. When cfg carries credentials, an expired session heals
// through the regular reconnect path and the verification succeeds on a
// fresh session.
func resumeSession(ctx context.Context, cfg Config, stored *sessionstore.Session) (*Client, error) {
	cfg.SessionID = stored.SessionID
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	// Seed the version observed when the session was stored; attached
	// sessions have no handshake to learn it from.
	c.sessionMu.Lock()
	c.version = stored.Version
	c.sessionMu.Unlock()

	version, err := c.Server.ProductVersion(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.sessionMu.Lock()
	c.version = version
	c.sessionMu.Unlock()

	return c, nil
}

// saveSession persists the client's established session. Failures are
// logged, not propagated; the connection works either way.
func saveSession(store *sessionstore.Store, c *Client) {
	token := c.SessionToken()
	if token == "" {
		return
	}

	sess := &sessionstore.Session{
		BaseURL:   c.baseURL,
		User:      c.User,
		SessionID: token,
		Version:   c.ServerVersion(),
	}
	if err := store.Save(sess); err != nil {
		c.logger.Warn("cannot persist session for %s: %v", c.serverHost, err)
	}
}
