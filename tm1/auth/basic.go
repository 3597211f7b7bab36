//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package auth

import (
	"context"
	"encoding/base64"

	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// BasicProvider authenticates with a username and password against the TM1
// database's native security mode.
type BasicProvider struct {
	username  string
	basicAuth string
}

// NewBasicProvider creates a provider with the specified username and password.
func NewBasicProvider(username string, password []byte) (*BasicProvider, error) {
	if username == "" {
		return nil, tm1err.NewConfiguration("username must be non-empty")
	}

	return &BasicProvider{
		username:  username,
		basicAuth: httputil.BasicAuth(username, password),
	}, nil
}

// Mode returns auth.Basic.
func (p *BasicProvider) Mode() Mode {
	return Basic
}

// HandshakeCredentials returns an "Authorization: Basic ..." header built
// from the username and password supplied to the provider.
func (p *BasicProvider) HandshakeCredentials(ctx context.Context) (*Credentials, error) {
	return NewHeaderCredentials(p.basicAuth), nil
}

// Close is a no-op for this provider.
func (p *BasicProvider) Close() error {
	return nil
}

// StaticTokenProvider authenticates with a pre-acquired bearer token.
//
// The provider never refreshes the token. Applications own the token
// lifecycle and must create a new client when the token is rotated.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider with the specified access token.
func NewStaticTokenProvider(accessToken string) (*StaticTokenProvider, error) {
	if accessToken == "" {
		return nil, tm1err.NewConfiguration("access token must be non-empty")
	}

	return &StaticTokenProvider{token: accessToken}, nil
}

// Mode returns auth.AccessToken.
func (p *StaticTokenProvider) Mode() Mode {
	return AccessToken
}

// HandshakeCredentials returns an "Authorization: Bearer ..." header carrying
// the token supplied to the provider.
func (p *StaticTokenProvider) HandshakeCredentials(ctx context.Context) (*Credentials, error) {
	return NewHeaderCredentials(BearerToken + " " + p.token), nil
}

// Close is a no-op for this provider.
func (p *StaticTokenProvider) Close() error {
	return nil
}

// NegotiateProvider authenticates with integrated login. Each handshake asks
// the configured NegotiateTokenSource for a fresh SPNEGO token.
type NegotiateProvider struct {
	source  NegotiateTokenSource
	service string
}

// NewNegotiateProvider creates a provider that obtains SPNEGO tokens from
// source for the specified service principal, typically "HTTP/<host>".
func NewNegotiateProvider(source NegotiateTokenSource, service string) (*NegotiateProvider, error) {
	if source == nil {
		return nil, tm1err.NewConfiguration("integrated login requires a negotiate token source")
	}

	return &NegotiateProvider{
		source:  source,
		service: service,
	}, nil
}

// Mode returns auth.Negotiate.
func (p *NegotiateProvider) Mode() Mode {
	return Negotiate
}

// HandshakeCredentials returns an "Authorization: Negotiate ..." header
// carrying a freshly acquired SPNEGO token.
func (p *NegotiateProvider) HandshakeCredentials(ctx context.Context) (*Credentials, error) {
	token, err := p.source.NegotiateToken(ctx, p.service)
	if err != nil {
		return nil, err
	}

	return NewHeaderCredentials("Negotiate " + base64.StdEncoding.EncodeToString(token)), nil
}

// Close is a no-op for this provider.
func (p *NegotiateProvider) Close() error {
	return nil
}
