//
// Copyright (c) 2023, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package cpd provides authentication providers for v12 TM1 databases
// reached through IBM Cloud Pak for Data or a Planning Analytics proxy.
//
// Three providers are available: ClientCredentialsProvider performs an OAuth
// client credentials exchange with the database's authorization endpoint,
// APIKeyLoginProvider logs into a Cloud Pak for Data instance with a user
// and API key, and ProxyJWTProvider asks a Planning Analytics proxy to issue
// a JWT for a named user on top of another token authority.
package cpd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tm1labs/tm1-go-sdk/tm1/auth"
	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/internal/sdkutil"
	"github.com/tm1labs/tm1-go-sdk/tm1/jsonutil"
	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

const (
	// authorizePath is the Cloud Pak for Data login endpoint, relative to
	// the CPD base URL.
	authorizePath = "/icp4d-api/v1/authorize"

	// jwtPath is the Planning Analytics proxy JWT endpoint, relative to
	// the proxy base URL.
	jwtPath = "/api/jwt"

	// defaultTokenLifetime bounds cached tokens whose issuing endpoint does
	// not report an expiry. Re-login is cheap, so the bound is conservative.
	defaultTokenLifetime = 30 * time.Minute
)

// Default options for the providers.
var defaultOptions = auth.ProviderOptions{
	Timeout:      10 * time.Second,
	ExpiryWindow: 2 * time.Minute,
	Logger:       logger.DefaultLogger,
	HTTPClient:   httputil.DefaultHTTPClient,
}

// resolveOptions merges the first supplied options value over the defaults.
func resolveOptions(options []auth.ProviderOptions) auth.ProviderOptions {
	opt := defaultOptions
	if len(options) > 0 {
		v := &options[0]
		if v.Timeout >= time.Millisecond {
			opt.Timeout = v.Timeout
		}

		if v.ExpiryWindow >= time.Millisecond {
			opt.ExpiryWindow = v.ExpiryWindow
		}

		if v.Logger != nil {
			opt.Logger = v.Logger
		}

		if v.HTTPClient != nil {
			opt.HTTPClient = v.HTTPClient
		}
	}
	return opt
}

// commonHeaders returns the headers shared by all token requests.
func commonHeaders(contentType string) map[string]string {
	return map[string]string{
		"Accept":       "application/json",
		"Content-Type": contentType,
		"Connection":   "keep-alive",
		"User-Agent":   sdkutil.UserAgent(),
	}
}

// tokenCache holds a token shared by concurrent callers and renews it ahead
// of expiry. All three providers in this package delegate their token
// lifecycle to it.
type tokenCache struct {
	expiryWindow time.Duration
	logger       *logger.Logger

	isClosed    bool
	cachedToken *auth.Token

	mutex sync.RWMutex
	wg    sync.WaitGroup
}

func newTokenCache(expiryWindow time.Duration, lgr *logger.Logger) *tokenCache {
	return &tokenCache{
		expiryWindow: expiryWindow,
		logger:       lgr,
	}
}

// token returns a valid token, invoking fetch when no cached token can serve.
// A cached token inside the expiry window is returned as is while fetch runs
// on a background goroutine.
func (c *tokenCache) token(ctx context.Context, fetch func(context.Context) (*auth.Token, error)) (*auth.Token, error) {
	if c.checkClosed() {
		return nil, tm1err.NewConfiguration("provider is closed")
	}

	c.mutex.RLock()
	token, ok, needRenew := c.getCachedToken()
	c.mutex.RUnlock()

	if !ok {
		return c.replace(ctx, fetch)
	}

	if needRenew {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.renew(fetch)
		}()
	}

	return token, nil
}

// replace fetches a new token and caches it, coalescing concurrent callers.
func (c *tokenCache) replace(ctx context.Context, fetch func(context.Context) (*auth.Token, error)) (*auth.Token, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Another caller may have replaced the token while this one waited.
	if token, ok, _ := c.getCachedToken(); ok {
		return token, nil
	}

	token, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.cachedToken = token
	return token, nil
}

// renew refreshes a token that is still valid but inside the expiry window.
func (c *tokenCache) renew(fetch func(context.Context) (*auth.Token, error)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, ok, needRenew := c.getCachedToken()
	if !ok || !needRenew {
		return
	}

	token, err := fetch(context.Background())
	if err != nil {
		c.logger.Warn("%v", err)
		return
	}

	c.cachedToken = token
}

// getCachedToken looks for the token from cache and checks if the cached
// token is valid and needs to renew. Callers must hold at least a read lock.
func (c *tokenCache) getCachedToken() (token *auth.Token, ok bool, needRenew bool) {
	if c.cachedToken == nil {
		return
	}

	token = c.cachedToken
	ok = !token.Expired()
	needRenew = token.NeedRefresh(c.expiryWindow)
	return
}

func (c *tokenCache) checkClosed() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.isClosed
}

func (c *tokenCache) close() {
	if c.checkClosed() {
		return
	}

	c.wg.Wait()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.isClosed = true
	c.cachedToken = nil
}

// ClientCredentialsProvider authenticates an application with an OAuth
// client credentials grant against the database's authorization endpoint.
type ClientCredentialsProvider struct {
	authURL   string
	basicAuth string

	timeout    time.Duration
	logger     *logger.Logger
	httpClient *httputil.HTTPClient

	cache *tokenCache
}

// NewClientCredentialsProvider creates a provider that exchanges the
// application client ID and secret for a bearer token at authURL.
//
// This is a variadic function that may be invoked with zero or more arguments
// for the options parameter, but only the first argument for the options
// parameter, if specified, is used, others are ignored.
func NewClientCredentialsProvider(authURL, clientID string, clientSecret []byte,
	options ...auth.ProviderOptions) (*ClientCredentialsProvider, error) {

	if authURL == "" {
		return nil, tm1err.NewConfiguration("authorization URL must be non-empty")
	}

	if clientID == "" || len(clientSecret) == 0 {
		return nil, tm1err.NewConfiguration("application client ID and secret must be non-empty")
	}

	opt := resolveOptions(options)
	return &ClientCredentialsProvider{
		authURL:    authURL,
		basicAuth:  httputil.BasicAuth(clientID, clientSecret),
		timeout:    opt.Timeout,
		logger:     opt.Logger,
		httpClient: opt.HTTPClient,
		cache:      newTokenCache(opt.ExpiryWindow, opt.Logger),
	}, nil
}

// Mode returns auth.ServiceToService.
func (p *ClientCredentialsProvider) Mode() auth.Mode {
	return auth.ServiceToService
}

// HandshakeCredentials returns an "Authorization: Bearer ..." header carrying
// a token obtained with the client credentials grant.
func (p *ClientCredentialsProvider) HandshakeCredentials(ctx context.Context) (*auth.Credentials, error) {
	token, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}

	return auth.NewHeaderCredentials(token.AuthString()), nil
}

// Token returns a valid bearer token.
// Token implements the auth.TokenSource interface.
func (p *ClientCredentialsProvider) Token(ctx context.Context) (*auth.Token, error) {
	return p.cache.token(ctx, p.fetch)
}

// Close releases resources allocated by the provider.
func (p *ClientCredentialsProvider) Close() error {
	p.cache.close()
	return nil
}

func (p *ClientCredentialsProvider) fetch(ctx context.Context) (*auth.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	headers := commonHeaders("application/x-www-form-urlencoded")
	headers["Authorization"] = p.basicAuth

	resp, err := httputil.DoRequest(ctx, p.httpClient, p.timeout, http.MethodPost,
		p.authURL, []byte(form.Encode()), headers, p.logger)
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		return nil, tm1err.NewAuthentication(resp.Code, string(resp.Body))
	}

	return parseOAuthToken(resp.Body)
}

// APIKeyLoginProvider logs into a Cloud Pak for Data instance with a user
// name and API key, and presents the issued JWT to the database.
type APIKeyLoginProvider struct {
	loginURL string
	username string
	apiKey   []byte

	timeout    time.Duration
	logger     *logger.Logger
	httpClient *httputil.HTTPClient

	cache *tokenCache
}

// NewAPIKeyLoginProvider creates a provider that logs into the Cloud Pak for
// Data instance at cpdURL with the specified user name and API key.
func NewAPIKeyLoginProvider(cpdURL, username string, apiKey []byte,
	options ...auth.ProviderOptions) (*APIKeyLoginProvider, error) {

	if cpdURL == "" {
		return nil, tm1err.NewConfiguration("CPD URL must be non-empty")
	}

	if username == "" {
		return nil, tm1err.NewConfiguration("username must be non-empty")
	}

	if len(apiKey) == 0 {
		return nil, tm1err.NewConfiguration("API key must be non-nil and non-empty")
	}

	opt := resolveOptions(options)
	p := &APIKeyLoginProvider{
		loginURL:   cpdURL + authorizePath,
		username:   username,
		timeout:    opt.Timeout,
		logger:     opt.Logger,
		httpClient: opt.HTTPClient,
		cache:      newTokenCache(opt.ExpiryWindow, opt.Logger),
	}

	p.apiKey = make([]byte, len(apiKey))
	copy(p.apiKey, apiKey)

	return p, nil
}

// Mode returns auth.ServiceToService.
func (p *APIKeyLoginProvider) Mode() auth.Mode {
	return auth.ServiceToService
}

// HandshakeCredentials returns an "Authorization: Bearer ..." header carrying
// the JWT issued by the Cloud Pak for Data login.
func (p *APIKeyLoginProvider) HandshakeCredentials(ctx context.Context) (*auth.Credentials, error) {
	token, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}

	return auth.NewHeaderCredentials(token.AuthString()), nil
}

// Token returns a valid bearer token.
// Token implements the auth.TokenSource interface.
func (p *APIKeyLoginProvider) Token(ctx context.Context) (*auth.Token, error) {
	return p.cache.token(ctx, p.fetch)
}

// Close releases resources allocated by the provider.
func (p *APIKeyLoginProvider) Close() error {
	p.cache.close()
	return nil
}

func (p *APIKeyLoginProvider) fetch(ctx context.Context) (*auth.Token, error) {
	body, err := json.Marshal(struct {
		Username string `json:"username"`
		APIKey   string `json:"api_key"`
	}{p.username, string(p.apiKey)})
	if err != nil {
		return nil, err
	}

	resp, err := httputil.DoRequest(ctx, p.httpClient, p.timeout, http.MethodPost,
		p.loginURL, body, commonHeaders("application/json"), p.logger)
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		return nil, tm1err.NewAuthentication(resp.Code, string(resp.Body))
	}

	jwt, err := jsonutil.GetString(resp.Body, "token")
	if err != nil {
		return nil, err
	}

	return auth.NewToken(jwt, auth.BearerToken, defaultTokenLifetime), nil
}

// ProxyJWTProvider asks a Planning Analytics proxy to issue a JWT for a
// named user. The proxy request itself is authorized by tokens from an
// upstream source, typically an ibmiam.Provider.
type ProxyJWTProvider struct {
	jwtURL   string
	username string
	source   auth.TokenSource

	timeout    time.Duration
	logger     *logger.Logger
	httpClient *httputil.HTTPClient

	cache *tokenCache
}

// NewProxyJWTProvider creates a provider that obtains user JWTs from the
// Planning Analytics proxy at paURL, authorizing the proxy requests with
// tokens from source.
func NewProxyJWTProvider(paURL, username string, source auth.TokenSource,
	options ...auth.ProviderOptions) (*ProxyJWTProvider, error) {

	if paURL == "" {
		return nil, tm1err.NewConfiguration("PA proxy URL must be non-empty")
	}

	if username == "" {
		return nil, tm1err.NewConfiguration("username must be non-empty")
	}

	if source == nil {
		return nil, tm1err.NewConfiguration("PA proxy login requires an upstream token source")
	}

	opt := resolveOptions(options)
	return &ProxyJWTProvider{
		jwtURL:     paURL + jwtPath,
		username:   username,
		source:     source,
		timeout:    opt.Timeout,
		logger:     opt.Logger,
		httpClient: opt.HTTPClient,
		cache:      newTokenCache(opt.ExpiryWindow, opt.Logger),
	}, nil
}

// Mode returns auth.PAProxy.
func (p *ProxyJWTProvider) Mode() auth.Mode {
	return auth.PAProxy
}

// HandshakeCredentials returns an "Authorization: Bearer ..." header carrying
// the JWT the proxy issued for the configured user.
func (p *ProxyJWTProvider) HandshakeCredentials(ctx context.Context) (*auth.Credentials, error) {
	token, err := p.cache.token(ctx, p.fetch)
	if err != nil {
		return nil, err
	}

	return auth.NewHeaderCredentials(token.AuthString()), nil
}

// Close releases resources allocated by the provider.
// The upstream token source is not closed, its owner closes it.
func (p *ProxyJWTProvider) Close() error {
	p.cache.close()
	return nil
}

func (p *ProxyJWTProvider) fetch(ctx context.Context) (*auth.Token, error) {
	upstream, err := p.source.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(struct {
		Username string `json:"username"`
	}{p.username})
	if err != nil {
		return nil, err
	}

	headers := commonHeaders("application/json")
	headers["Authorization"] = upstream.AuthString()

	resp, err := httputil.DoRequest(ctx, p.httpClient, p.timeout, http.MethodPost,
		p.jwtURL, body, headers, p.logger)
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		return nil, tm1err.NewAuthentication(resp.Code, string(resp.Body))
	}

	jwt, err := jsonutil.GetString(resp.Body, "jwt")
	if err != nil {
		return nil, err
	}

	return auth.NewToken(jwt, auth.BearerToken, defaultTokenLifetime), nil
}

// parseOAuthToken parses a standard OAuth token response carrying
// "access_token", an optional "token_type" and an optional "expires_in"
// lifetime in seconds.
func parseOAuthToken(data []byte) (*auth.Token, error) {
	accessToken, err := jsonutil.GetString(data, "access_token")
	if err != nil {
		return nil, err
	}

	tokenType, err := jsonutil.GetString(data, "token_type")
	if err != nil {
		tokenType = auth.BearerToken
	}

	if expiresIn, err := jsonutil.GetNumber(data, "expires_in"); err == nil {
		return auth.NewToken(accessToken, tokenType, time.Duration(expiresIn*float64(time.Second))), nil
	}

	return auth.NewToken(accessToken, tokenType, defaultTokenLifetime), nil
}
