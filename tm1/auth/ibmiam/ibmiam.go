//
// Copyright (c) 2022, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package ibmiam provides an authentication provider for TM1 databases on
// IBM Cloud. The provider exchanges an IBM Cloud API key for a bearer token
// at an IAM token endpoint and keeps the token renewed while in use.
package ibmiam

import (
	"context"
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
	// DefaultIAMURL is the public IBM Cloud IAM token endpoint.
	DefaultIAMURL = "https://iam.cloud.ibm.com/identity/token"

	// apiKeyGrant is the grant type for API key token exchanges.
	apiKeyGrant = "urn:ibm:params:oauth:grant-type:apikey"
)

// Default options for the provider.
var defaultOptions = auth.ProviderOptions{
	Timeout:      10 * time.Second,
	ExpiryWindow: 2 * time.Minute,
	Logger:       logger.DefaultLogger,
	HTTPClient:   httputil.DefaultHTTPClient,
}

// Provider exchanges an IBM Cloud API key for a bearer token.
//
// Tokens are cached and reused until they approach expiry. A token that is
// about to expire within the configured expiry window is renewed on a
// background goroutine while the cached token keeps serving callers.
type Provider struct {
	// IAM token endpoint.
	iamURL string

	// API key used for the token exchange.
	apiKey []byte

	// Logger.
	logger *logger.Logger

	// HTTP client.
	httpClient *httputil.HTTPClient

	// HTTP request headers.
	reqHeaders map[string]string

	// Request timeout.
	timeout time.Duration

	// isClosed represents if the provider is closed or not.
	isClosed bool

	// Cached token that can be reused when it is valid.
	cachedToken *auth.Token

	// A duration of time that determines how far ahead of access token expiry
	// the provider is allowed to renew the token.
	expiryWindow time.Duration

	mutex sync.RWMutex
	wg    sync.WaitGroup
}

// NewProvider creates a provider that exchanges apiKey at the public IBM
// Cloud IAM endpoint.
//
// This is a variadic function that may be invoked with zero or more arguments
// for the options parameter, but only the first argument for the options
// parameter, if specified, is used, others are ignored.
func NewProvider(apiKey []byte, options ...auth.ProviderOptions) (*Provider, error) {
	return NewProviderWithURL(DefaultIAMURL, apiKey, options...)
}

// NewProviderWithURL creates a provider that exchanges apiKey at the
// specified IAM token endpoint.
func NewProviderWithURL(iamURL string, apiKey []byte, options ...auth.ProviderOptions) (*Provider, error) {
	if iamURL == "" {
		return nil, tm1err.NewConfiguration("IAM URL must be non-empty")
	}

	if len(apiKey) == 0 {
		return nil, tm1err.NewConfiguration("API key must be non-nil and non-empty")
	}

	// Initialize with default options.
	opt := defaultOptions
	// Overwrite with supplied values if they are valid.
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

	p := &Provider{
		iamURL:       iamURL,
		timeout:      opt.Timeout,
		expiryWindow: opt.ExpiryWindow,
		logger:       opt.Logger,
		httpClient:   opt.HTTPClient,
		reqHeaders: map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/x-www-form-urlencoded",
			"Connection":   "keep-alive",
			"User-Agent":   sdkutil.UserAgent(),
		},
	}

	p.apiKey = make([]byte, len(apiKey))
	copy(p.apiKey, apiKey)

	return p, nil
}

// NewProviderFromFile creates a provider using the specified configuration
// file and options. The configuration file must specify the API key, and may
// override the IAM endpoint, in the form of:
//
//	api_key=zogau3Hx...
//	iam_url=https://iam.cloud.ibm.com/identity/token
func NewProviderFromFile(configFile string, options ...auth.ProviderOptions) (*Provider, error) {
	prop, err := sdkutil.NewProperties(configFile)
	if err != nil {
		return nil, err
	}

	if err = prop.Load(); err != nil {
		return nil, err
	}

	apiKey, err := prop.Get("api_key")
	if err != nil {
		return nil, err
	}

	iamURL := prop.GetDefault("iam_url", DefaultIAMURL)
	return NewProviderWithURL(iamURL, []byte(apiKey), options...)
}

// Mode returns auth.IBMCloudAPIKey.
func (p *Provider) Mode() auth.Mode {
	return auth.IBMCloudAPIKey
}

// HandshakeCredentials returns an "Authorization: Bearer ..." header carrying
// a valid IAM token.
func (p *Provider) HandshakeCredentials(ctx context.Context) (*auth.Credentials, error) {
	token, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}

	return auth.NewHeaderCredentials(token.AuthString()), nil
}

// Token returns a valid IAM token, exchanging the API key when no cached
// token can serve.
//
// This method looks for the token in the local cache first. If the cached
// token is valid but about to expire within the expiry window, a new
// goroutine renews it in the background while the cached token is returned.
//
// Token implements the auth.TokenSource interface, so the provider can feed
// providers that layer a further exchange on top of IAM.
func (p *Provider) Token(ctx context.Context) (*auth.Token, error) {
	if p.checkClosed() {
		return nil, tm1err.NewConfiguration("provider is closed")
	}

	p.mutex.RLock()
	token, ok, needRenew := p.getCachedToken()
	p.mutex.RUnlock()

	// Cached token is nil or expired.
	if !ok {
		return p.exchange(ctx)
	}

	if needRenew {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.renewToken()
		}()
	}

	return token, nil
}

// Close releases resources allocated by the provider and sets closed state
// for the provider. IAM tokens are not server-side sessions, so nothing is
// revoked upstream.
func (p *Provider) Close() error {
	if p.checkClosed() {
		return nil
	}

	p.wg.Wait()

	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.isClosed = true
	p.cachedToken = nil
	return nil
}

// checkClosed checks if the provider is closed.
func (p *Provider) checkClosed() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.isClosed
}

// getCachedToken looks for the token from cache and checks if the cached token
// is valid and needs to renew.
func (p *Provider) getCachedToken() (token *auth.Token, ok bool, needRenew bool) {
	if p.cachedToken == nil {
		return
	}

	token = p.cachedToken
	ok = !token.Expired()
	needRenew = token.NeedRefresh(p.expiryWindow)
	return
}

// exchange performs the API key token exchange and caches the result.
func (p *Provider) exchange(ctx context.Context) (*auth.Token, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Another caller may have exchanged while this one waited on the lock.
	if token, ok, _ := p.getCachedToken(); ok {
		return token, nil
	}

	token, err := p.doExchange(ctx)
	if err != nil {
		return nil, err
	}

	p.cachedToken = token
	return token, nil
}

// renewToken attempts to renew the token that currently in use.
func (p *Provider) renewToken() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	_, ok, needRenew := p.getCachedToken()
	if !ok || !needRenew {
		return
	}

	token, err := p.doExchange(context.Background())
	if err != nil {
		p.logger.Warn("%v", err)
		return
	}

	p.cachedToken = token
}

// doExchange sends the token exchange request to the IAM endpoint.
// Callers must hold the write lock.
func (p *Provider) doExchange(ctx context.Context) (*auth.Token, error) {
	form := url.Values{}
	form.Set("grant_type", apiKeyGrant)
	form.Set("apikey", string(p.apiKey))

	resp, err := httputil.DoRequest(ctx, p.httpClient, p.timeout, http.MethodPost,
		p.iamURL, []byte(form.Encode()), p.reqHeaders, p.logger)
	if err != nil {
		return nil, err
	}

	if resp.Code != http.StatusOK {
		return nil, tm1err.NewAuthentication(resp.Code, string(resp.Body))
	}

	return parseTokenFromJSON(resp.Body)
}

// parseTokenFromJSON parses an IAM token from the specified JSON.
//
// The JSON data must contain the required "access_token" field and may carry
// the token lifetime as "expires_in" (seconds) or the absolute expiry as
// "expiration" (Unix seconds).
func parseTokenFromJSON(data []byte) (*auth.Token, error) {
	accessToken, err := jsonutil.GetString(data, "access_token")
	if err != nil {
		return nil, err
	}

	tokenType, err := jsonutil.GetString(data, "token_type")
	if err != nil {
		tokenType = auth.BearerToken
	}

	if expiration, err := jsonutil.GetNumber(data, "expiration"); err == nil {
		expiry := time.Unix(int64(expiration), 0)
		return auth.NewTokenWithExpiry(accessToken, tokenType, expiry), nil
	}

	if expiresIn, err := jsonutil.GetNumber(data, "expires_in"); err == nil {
		return auth.NewToken(accessToken, tokenType, time.Duration(expiresIn*float64(time.Second))), nil
	}

	return auth.NewToken(accessToken, tokenType, 0), nil
}
