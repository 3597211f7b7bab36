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
	"sync"

	"github.com/tm1labs/tm1-go-sdk/tm1/auth"
	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// Client represents a TM1 database client used to access IBM TM1 and
// Planning Analytics databases over the OData REST API.
//
// A Client owns one database session. The session handshake runs on the
// first request, or explicitly through Connect. When the server reports the
// session expired, the client re-establishes it transparently and replays
// the interrupted request once.
type Client struct {
	// Config specifies the configuration parameters associated with the Client.
	// Most configuration parameters have default values that should suffice for use.
	Config

	// HTTPClient represents an HTTP client associated with a Client instance.
	// It is used to send Client requests to server and receive responses.
	HTTPClient *httputil.HTTPClient

	// Cells reads and writes cube cells, including the bulk write pipeline.
	Cells *CellService

	// Cubes accesses cube metadata and the cube transaction log switch.
	Cubes *CubeService

	// Elements accesses dimension hierarchy elements.
	Elements *ElementService

	// Processes manages and executes TurboIntegrator processes.
	Processes *ProcessService

	// Files manages database-hosted file content.
	Files *FileService

	// Security reads the current user's identity and group memberships.
	Security *SecurityService

	// Monitoring inspects and cancels database threads.
	Monitoring *MonitoringService

	// Server exposes database-wide information and the active session.
	Server *ServerService

	// logger specifies a Client logger used to log events.
	logger *logger.Logger

	// metrics receives client activity measurements.
	metrics MetricsCollector

	// provider produces credentials for the session handshake.
	// It is nil when the client attaches to an existing session.
	provider auth.Provider

	// executor specifies a request executor.
	// This is used internally by tests for customizing request execution.
	executor httputil.RequestExecutor

	// authMode is the resolved authentication mode.
	authMode auth.Mode

	// serverHost represents the host of the TM1 server.
	serverHost string

	// sessionMu guards the session fields below. At most one handshake is
	// in flight per client.
	sessionMu sync.Mutex

	// sessionCookie holds the "TM1SessionId=..." pair sent on every request.
	sessionCookie string

	// sessionToken is the raw session identifier.
	sessionToken string

	// sessionGen counts established sessions. Requests observe it before
	// dispatch so concurrent 401s trigger a single reconnect.
	sessionGen uint64

	// persistentAuth holds handshake credentials re-sent on every request.
	// It is set for static token sessions and for deployments that answer
	// the handshake without a session cookie.
	persistentAuth http.Header

	// version is the server product version captured at the handshake.
	version string
}

// NewClient creates a Client instance with the specified Config.
// If any errors occurred during the creation, it returns a non-nil error and
// a nil Client that should not be used. Applications should check the returned
// error before using the returned Client instance.
//
// NewClient validates the configuration and resolves the authentication mode
// without touching the network. The session handshake runs on the first
// request, or explicitly through Connect.
//
// Applications should call the Logout() method on the Client when it
// terminates, or Close() to drop the client while keeping the database
// session alive.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.resolveBaseURL(); err != nil {
		return nil, err
	}

	lgr := cfg.resolveLogger()

	if cfg.ConnectionPoolSize > 0 && cfg.HTTPConfig.MaxConnsPerHost == 0 {
		cfg.HTTPConfig.MaxConnsPerHost = cfg.ConnectionPoolSize
	}
	cfg.HTTPConfig.UseHTTPS = cfg.protocol == "https"

	httpClient, err := httputil.NewHTTPClient(cfg.HTTPConfig)
	if err != nil {
		return nil, err
	}

	provider, err := cfg.newAuthProvider(httpClient, lgr)
	if err != nil {
		return nil, err
	}

	if provider == nil && cfg.SessionID == "" {
		return nil, tm1err.NewConfiguration("no credentials supplied")
	}

	c := &Client{
		Config:     cfg,
		HTTPClient: httpClient,
		logger:     lgr,
		metrics:    resolveMetrics(cfg.MetricsCollector),
		provider:   provider,
		executor:   httpClient,
		serverHost: cfg.host,
	}

	if provider != nil {
		c.authMode = provider.Mode()
	}

	if cfg.SessionID != "" {
		c.attachSession(cfg.SessionID)
	}

	c.wireServices()

	return c, nil
}

// wireServices constructs the service surface. Each service declares the
// capabilities it consumes as interfaces; the client satisfies the request
// execution capability and concrete services satisfy the rest.
func (c *Client) wireServices() {
	c.Server = &ServerService{rest: c}
	c.Security = &SecurityService{rest: c}
	c.Monitoring = &MonitoringService{rest: c}
	c.Cubes = &CubeService{rest: c}
	c.Elements = &ElementService{rest: c}
	c.Elements.initCache()
	c.Processes = &ProcessService{rest: c}
	c.Files = &FileService{rest: c, version: c.resolveServerVersion}
	c.Cells = &CellService{
		rest:      c,
		cfg:       &c.Config,
		logger:    c.logger,
		metrics:   c.metrics,
		cubes:     c.Cubes,
		elements:  c.Elements,
		processes: c.Processes,
		files:     c.Files,
	}
	c.Cubes.cells = c.Cells
}

// resolveServerVersion establishes the session if needed and returns the
// product version the handshake observed.
func (c *Client) resolveServerVersion(ctx context.Context) (string, error) {
	if _, err := c.ensureSession(ctx); err != nil {
		return "", err
	}
	return c.ServerVersion(), nil
}

// AuthMode returns the resolved authentication mode.
func (c *Client) AuthMode() auth.Mode {
	return c.authMode
}

// ServerVersion returns the product version reported by the server at the
// session handshake, or an empty string before the handshake ran.
func (c *Client) ServerVersion() string {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.version
}

// SessionToken returns the raw session identifier of the established
// session, or an empty string before the handshake ran. The token can be
// persisted and later attached to through Config.SessionID.
func (c *Client) SessionToken() string {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	return c.sessionToken
}

// IsAdmin reports whether the session user belongs to the ADMIN group.
func (c *Client) IsAdmin(ctx context.Context) (bool, error) {
	return c.Security.memberOf(ctx, groupAdmin)
}

// IsDataAdmin reports whether the session user belongs to the ADMIN or
// DataAdmin group.
func (c *Client) IsDataAdmin(ctx context.Context) (bool, error) {
	return c.Security.memberOfAny(ctx, groupAdmin, groupDataAdmin)
}

// IsSecurityAdmin reports whether the session user belongs to the ADMIN or
// SecurityAdmin group.
func (c *Client) IsSecurityAdmin(ctx context.Context) (bool, error) {
	return c.Security.memberOfAny(ctx, groupAdmin, groupSecurityAdmin)
}

// IsOpsAdmin reports whether the session user belongs to the ADMIN or
// OperationsAdmin group.
func (c *Client) IsOpsAdmin(ctx context.Context) (bool, error) {
	return c.Security.memberOfAny(ctx, groupAdmin, groupOperationsAdmin)
}

// Logout closes the database session server-side and releases the client's
// resources. The client must not be used afterwards.
func (c *Client) Logout(ctx context.Context) error {
	defer c.Close()

	c.sessionMu.Lock()
	established := c.sessionCookie != ""
	c.sessionMu.Unlock()

	if !established {
		return nil
	}

	req := &Request{
		Method: http.MethodPost,
		Path:   "/ActiveSession/tm1.Close",
		// an expired session already achieves the logout
		noReconnect: true,
		Idempotent:  boolPtr(false),
	}
	_, err := c.Do(ctx, req)
	if err != nil && !tm1err.IsUnauthorized(err) {
		return err
	}

	c.sessionMu.Lock()
	c.sessionCookie = ""
	c.sessionToken = ""
	c.sessionMu.Unlock()

	return nil
}

// Disconnect releases the client. Unless Config.RetainSession is set, the
// database session is closed server-side as well. A retained session can be
// resumed later through Config.SessionID with the token from SessionToken.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.RetainSession {
		return c.Close()
	}
	return c.Logout(ctx)
}

// Close releases any resources used by Client. The database session is left
// alive; use Logout to terminate it.
func (c *Client) Close() error {
	if c.provider != nil {
		if err := c.provider.Close(); err != nil {
			c.logger.Warn("closing auth provider: %v", err)
		}
	}

	if c.HTTPClient != nil {
		c.HTTPClient.CloseIdleConnections()
	}

	// do not close logger; it may have been passed to us and
	// may still be in use by the application

	return nil
}

// boolPtr returns a pointer to b, for the tri-state request options.
func boolPtr(b bool) *bool {
	return &b
}
