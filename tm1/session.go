//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"context"
	"net/http"
	"strings"

	"github.com/tm1labs/tm1-go-sdk/tm1/auth"
	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// sessionCookieField is the prefix of the session cookie set by the server.
const sessionCookieField = "TM1SessionId="

// handshakePath is the resource fetched to establish a session. It is
// readable by every user and its response carries the product version.
const handshakePath = "/Configuration/ProductVersion"

// Connect establishes the database session eagerly. Calling Connect is
// optional; the first request establishes the session on demand.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.ensureSession(ctx)
	return err
}

// ensureSession returns the generation of the established session, running
// the handshake first if no session exists. Concurrent callers block until
// one handshake completes.
func (c *Client) ensureSession(ctx context.Context) (uint64, error) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if c.sessionGen > 0 {
		return c.sessionGen, nil
	}

	if err := c.handshakeLocked(ctx); err != nil {
		return 0, err
	}

	return c.sessionGen, nil
}

// reconnect re-establishes the session after the server reported it expired.
// observedGen is the generation the failed request was dispatched under; if
// another request already reconnected, the call returns immediately so a
// burst of expirations triggers a single handshake.
func (c *Client) reconnect(ctx context.Context, observedGen uint64) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if c.sessionGen != observedGen {
		return nil
	}

	c.sessionCookie = ""
	c.sessionToken = ""

	if err := c.handshakeLocked(ctx); err != nil {
		return err
	}

	c.metrics.SessionReconnected()
	return nil
}

// handshakeLocked authenticates against the server and captures the session
// cookie and product version. The caller must hold sessionMu.
func (c *Client) handshakeLocked(ctx context.Context) error {
	if c.provider == nil {
		return tm1err.NewAuthentication(http.StatusUnauthorized,
			"session expired and no credentials are available to reconnect")
	}

	creds, err := c.provider.HandshakeCredentials(ctx)
	if err != nil {
		return err
	}

	hdr := make(http.Header)
	for k, vs := range creds.Header {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	if len(creds.Cookies) > 0 {
		pairs := make([]string, 0, len(creds.Cookies))
		for _, ck := range creds.Cookies {
			pairs = append(pairs, ck.Name+"="+ck.Value)
		}
		hdr.Set("Cookie", strings.Join(pairs, "; "))
	}
	hdr.Set("TM1-SessionContext", c.SessionContextName())
	if c.Impersonate != "" {
		hdr.Set("TM1-Impersonate", c.Impersonate)
	}

	url := c.baseURL + handshakePath
	resp, err := c.doHTTP(ctx, c.DefaultHandshakeTimeout(), http.MethodGet, url, nil, hdr)
	if err != nil {
		return err
	}

	switch {
	case resp.Code == http.StatusUnauthorized || resp.Code == http.StatusForbidden:
		return tm1err.NewAuthentication(resp.Code, string(resp.Body))
	case resp.Code < 200 || resp.Code > 299:
		return tm1err.NewRest(http.MethodGet, url, resp.Code, truncateBody(resp.Body), resp.Header)
	}

	gotCookie := c.captureSessionLocked(resp.Header)
	if !gotCookie || c.authMode == auth.AccessToken {
		// Stateless deployments answer without a session cookie; keep
		// sending the handshake credentials on every request instead.
		c.persistentAuth = creds.Header
	}

	var version string
	if err = unmarshalScalar(resp.Body, &version); err != nil {
		c.logger.Warn("cannot parse product version from handshake response: %v", err)
	}
	c.version = version
	c.sessionGen++

	c.logger.Info("established session with %s, server version %q", c.serverHost, version)
	return nil
}

// attachSession adopts an existing session identifier without a handshake.
// The server version stays unknown until a request observes it.
func (c *Client) attachSession(sessionID string) {
	c.sessionMu.Lock()
	c.sessionCookie = sessionCookieField + sessionID
	c.sessionToken = sessionID
	c.sessionGen = 1
	c.sessionMu.Unlock()
}

// captureSessionLocked scans response headers for the session cookie and
// stores it. It reports whether a session cookie was present. The caller
// must hold sessionMu.
func (c *Client) captureSessionLocked(header http.Header) bool {
	if header == nil {
		return false
	}

	for _, v := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(v, sessionCookieField) {
			continue
		}
		v = v[len(sessionCookieField):]
		if idx := strings.Index(v, ";"); idx > 0 {
			v = v[:idx]
		}
		c.sessionCookie = sessionCookieField + v
		c.sessionToken = v

		token := v
		c.logger.LogWithFn(logger.Trace, func() string {
			return "set session cookie to " + token
		})
		return true
	}

	return false
}

// refreshSessionCookie updates the stored session cookie when the server
// rotates it mid-session.
func (c *Client) refreshSessionCookie(header http.Header) {
	c.sessionMu.Lock()
	c.captureSessionLocked(header)
	c.sessionMu.Unlock()
}

// sessionState snapshots the credentials to attach to a request and the
// session generation the request is dispatched under.
func (c *Client) sessionState() (cookie string, extra http.Header, gen uint64) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.sessionCookie, c.persistentAuth, c.sessionGen
}
