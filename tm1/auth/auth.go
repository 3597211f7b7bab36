//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package auth provides functionality and types used for authentication providers.
//
// A Provider produces the credentials for the initial session handshake with
// a TM1 database. After the handshake succeeds the server-issued TM1SessionId
// cookie authenticates subsequent requests, so providers are consulted again
// only when the session must be re-established.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
)

// Mode represents an authentication mode used for the session handshake.
type Mode int

const (
	// Basic authenticates with a username and password against the TM1
	// database's native security.
	Basic Mode = iota + 1

	// CAM authenticates with a username, password and CAM namespace against
	// an IBM Cognos Access Manager server.
	CAM

	// CAMSSO authenticates with a CAM passport obtained from a Cognos
	// gateway single sign-on flow.
	CAMSSO

	// Negotiate authenticates with an SPNEGO token for integrated login
	// (Kerberos or NTLM).
	Negotiate

	// IBMCloudAPIKey authenticates with an IBM Cloud API key that is
	// exchanged for a bearer token at an IAM token endpoint.
	IBMCloudAPIKey

	// ServiceToService authenticates an application with client credentials
	// or a service API key, used for v12 databases.
	ServiceToService

	// PAProxy authenticates through a Planning Analytics proxy that issues
	// a JWT for a named user.
	PAProxy

	// AccessToken authenticates with a pre-acquired bearer token supplied
	// by the application.
	AccessToken
)

// String returns a human readable name of the authentication mode.
func (m Mode) String() string {
	switch m {
	case Basic:
		return "Basic"
	case CAM:
		return "CAM"
	case CAMSSO:
		return "CAMSSO"
	case Negotiate:
		return "Negotiate"
	case IBMCloudAPIKey:
		return "IBMCloudAPIKey"
	case ServiceToService:
		return "ServiceToService"
	case PAProxy:
		return "PAProxy"
	case AccessToken:
		return "AccessToken"
	default:
		return "Unknown"
	}
}

// BearerToken represents the bearer token authorization scheme that the
// bearer who holds the access token can access authorized resources.
const BearerToken string = "Bearer"

// Token represents the credentials used to authorize the requests to access protected resources.
type Token struct {
	// The access token issued by the authorization server.
	AccessToken string `json:"access_token"`

	// Token type.
	// If not set, this is "Bearer" by default.
	Type string `json:"token_type,omitempty"`

	// The duration of time the access token is granted for.
	// A zero value of ExpiresIn means the access token does not expire.
	ExpiresIn time.Duration `json:"expires_in,omitempty"`

	// The time when the access token expires.
	// A zero value of Expiry means the access token does not expire.
	Expiry time.Time `json:"expiry,omitempty"`
}

// NewToken creates a token with the specified access token, token type and expiresIn duration.
func NewToken(accessToken, tokenType string, expiresIn time.Duration) *Token {
	if tokenType == "" {
		tokenType = BearerToken
	}

	t := &Token{
		AccessToken: accessToken,
		Type:        tokenType,
		ExpiresIn:   expiresIn,
	}

	if expiresIn > 0 {
		t.Expiry = time.Now().Add(expiresIn)
	}

	return t
}

// NewTokenWithExpiry creates a token with the specified access token, token type and expiry.
func NewTokenWithExpiry(accessToken, tokenType string, expiry time.Time) *Token {
	if tokenType == "" {
		tokenType = BearerToken
	}

	t := &Token{
		AccessToken: accessToken,
		Type:        tokenType,
		Expiry:      expiry,
	}

	if expiry.After(time.Now()) {
		t.ExpiresIn = time.Until(expiry)
	}

	return t
}

// Expired checks whether the access token has expired.
func (t Token) Expired() bool {
	// A zero expiry time means the access token does not expire.
	if t.Expiry.IsZero() {
		return false
	}

	return t.Expiry.Before(time.Now())
}

// NeedRefresh checks whether the access token needs to refresh.
//
// An access token needs to refresh if it is about to expire in a duration of
// time that is within the specified expiry window.
func (t Token) NeedRefresh(expiryWindow time.Duration) bool {
	if t.Expiry.IsZero() || expiryWindow <= 0 || expiryWindow > t.ExpiresIn {
		return false
	}

	return time.Until(t.Expiry) <= expiryWindow
}

// AuthString returns a string that will be set in the HTTP "Authorization" header.
func (t Token) AuthString() string {
	if t.Type == "" {
		return BearerToken + " " + t.AccessToken
	}

	return t.Type + " " + t.AccessToken
}

// Credentials represents the material a provider contributes to the session
// handshake request.
type Credentials struct {
	// Header holds the headers to set on the handshake request.
	// Most providers contribute an "Authorization" header.
	Header http.Header

	// Cookies holds cookies to present on the handshake request, used by
	// providers whose upstream authority issues session material as cookies.
	Cookies []*http.Cookie
}

// NewHeaderCredentials creates Credentials carrying a single "Authorization" header.
func NewHeaderCredentials(authorization string) *Credentials {
	h := make(http.Header, 1)
	h.Set("Authorization", authorization)
	return &Credentials{Header: h}
}

// Provider produces handshake credentials for an authentication mode.
//
// Implementations must be safe for concurrent use: the session manager may
// re-establish an expired session from multiple goroutines.
type Provider interface {
	// Mode returns the authentication mode this provider implements.
	Mode() Mode

	// HandshakeCredentials returns the credentials to present on the
	// session handshake request. Providers that exchange credentials with
	// an upstream authority may issue network requests bounded by ctx.
	HandshakeCredentials(ctx context.Context) (*Credentials, error)

	// Close releases resources allocated by the provider and terminates
	// any upstream session it holds.
	Close() error
}

// TokenSource supplies bearer tokens for providers that layer a credential
// exchange on top of another authority.
type TokenSource interface {
	Token(ctx context.Context) (*Token, error)
}

// NegotiateTokenSource produces SPNEGO tokens for integrated login.
//
// The SDK does not ship a Kerberos implementation. Applications using
// integrated login supply a source backed by their platform's security
// support provider.
type NegotiateTokenSource interface {
	// NegotiateToken returns the raw SPNEGO token for the specified
	// service principal.
	NegotiateToken(ctx context.Context, service string) ([]byte, error)
}

// ProviderOptions represents options for an authentication provider.
type ProviderOptions struct {
	// Timeout specifies the timeout for requests the provider issues to
	// its upstream authority.
	// If not set, or set to a value that is less than 1 millisecond,
	// use the default timeout that depends on the concrete implementation
	// of the provider.
	Timeout time.Duration

	// ExpiryWindow specifies a duration of time that determines how far ahead
	// of access token expiry the provider is allowed to renew the access token.
	// If not set, or set to a value that is less than 1 millisecond,
	// use the default expiry window that depends on the concrete implementation
	// of the provider.
	// If set to a duration that is greater than the access token's lifetime,
	// the provider does not renew cached tokens.
	ExpiryWindow time.Duration

	// Logger specifies a logger for the provider.
	// If not set, use logger.DefaultLogger by default.
	Logger *logger.Logger

	// HTTPClient specifies an HTTP client for the provider.
	// If not set, use httputil.DefaultHTTPClient by default.
	HTTPClient *httputil.HTTPClient
}
