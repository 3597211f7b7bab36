//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package cam provides authentication providers for TM1 databases secured by
// IBM Cognos Access Manager.
//
// Three flows are supported: namespace credentials (username, password and
// CAM namespace presented directly to the database), a pre-acquired CAM
// passport, and a gateway single sign-on flow that obtains a passport from a
// Cognos gateway with integrated login.
package cam

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/tm1labs/tm1-go-sdk/tm1/auth"
	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/internal/sdkutil"
	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// passportCookie is the cookie under which Cognos gateways issue passports.
const passportCookie = "cam_passport"

// Default options for the gateway provider.
var defaultOptions = auth.ProviderOptions{
	Timeout:    10 * time.Second,
	Logger:     logger.DefaultLogger,
	HTTPClient: httputil.DefaultHTTPClient,
}

// NamespaceProvider authenticates with a username, password and CAM
// namespace against the database's configured Cognos Access Manager.
type NamespaceProvider struct {
	username  string
	namespace string
	authValue string
}

// NewNamespaceProvider creates a provider with the specified username,
// password and CAM namespace ID.
func NewNamespaceProvider(username string, password []byte, namespace string) (*NamespaceProvider, error) {
	if username == "" {
		return nil, tm1err.NewConfiguration("username must be non-empty")
	}

	if namespace == "" {
		return nil, tm1err.NewConfiguration("CAM namespace must be non-empty")
	}

	raw := fmt.Sprintf("%s:%s:%s", username, string(password), namespace)
	return &NamespaceProvider{
		username:  username,
		namespace: namespace,
		authValue: "CAMNamespace " + base64.StdEncoding.EncodeToString([]byte(raw)),
	}, nil
}

// Mode returns auth.CAM.
func (p *NamespaceProvider) Mode() auth.Mode {
	return auth.CAM
}

// HandshakeCredentials returns an "Authorization: CAMNamespace ..." header
// that carries the base64 encoded username:password:namespace triple.
func (p *NamespaceProvider) HandshakeCredentials(ctx context.Context) (*auth.Credentials, error) {
	return auth.NewHeaderCredentials(p.authValue), nil
}

// Close is a no-op for this provider.
func (p *NamespaceProvider) Close() error {
	return nil
}

// PassportProvider authenticates with a CAM passport the application already
// holds, typically harvested from an interactive Cognos session.
type PassportProvider struct {
	passport string
}

// NewPassportProvider creates a provider with the specified CAM passport.
func NewPassportProvider(passport string) (*PassportProvider, error) {
	if passport == "" {
		return nil, tm1err.NewConfiguration("CAM passport must be non-empty")
	}

	return &PassportProvider{passport: passport}, nil
}

// Mode returns auth.CAMSSO.
func (p *PassportProvider) Mode() auth.Mode {
	return auth.CAMSSO
}

// HandshakeCredentials returns an "Authorization: CAMPassport ..." header
// along with the matching cam_passport cookie.
func (p *PassportProvider) HandshakeCredentials(ctx context.Context) (*auth.Credentials, error) {
	creds := auth.NewHeaderCredentials("CAMPassport " + p.passport)
	creds.Cookies = []*http.Cookie{{Name: passportCookie, Value: p.passport}}
	return creds, nil
}

// Close is a no-op for this provider.
func (p *PassportProvider) Close() error {
	return nil
}

// GatewayProvider obtains a CAM passport from a Cognos gateway using
// integrated login, then presents the passport to the database.
//
// Each handshake runs the gateway flow anew. Passports are not cached
// because the database session they establish outlives them.
type GatewayProvider struct {
	gatewayURL string
	source     auth.NegotiateTokenSource
	service    string

	timeout    time.Duration
	logger     *logger.Logger
	httpClient *httputil.HTTPClient
	reqHeaders map[string]string
}

// NewGatewayProvider creates a provider that authenticates against the
// Cognos gateway at gatewayURL with SPNEGO tokens from source.
//
// This is a variadic function that may be invoked with zero or more arguments
// for the options parameter, but only the first argument for the options
// parameter, if specified, is used, others are ignored.
func NewGatewayProvider(gatewayURL string, source auth.NegotiateTokenSource, service string,
	options ...auth.ProviderOptions) (*GatewayProvider, error) {

	if gatewayURL == "" {
		return nil, tm1err.NewConfiguration("CAM gateway URL must be non-empty")
	}

	if source == nil {
		return nil, tm1err.NewConfiguration("CAM gateway login requires a negotiate token source")
	}

	opt := defaultOptions
	if len(options) > 0 {
		v := &options[0]
		if v.Timeout >= time.Millisecond {
			opt.Timeout = v.Timeout
		}

		if v.Logger != nil {
			opt.Logger = v.Logger
		}

		if v.HTTPClient != nil {
			opt.HTTPClient = v.HTTPClient
		}
	}

	return &GatewayProvider{
		gatewayURL: gatewayURL,
		source:     source,
		service:    service,
		timeout:    opt.Timeout,
		logger:     opt.Logger,
		httpClient: opt.HTTPClient,
		reqHeaders: map[string]string{
			"Accept":     "application/json",
			"Connection": "keep-alive",
			"User-Agent": sdkutil.UserAgent(),
		},
	}, nil
}

// Mode returns auth.CAMSSO.
func (p *GatewayProvider) Mode() auth.Mode {
	return auth.CAMSSO
}

// HandshakeCredentials performs the gateway single sign-on flow and returns
// the issued passport as an "Authorization: CAMPassport ..." header plus the
// cam_passport cookie.
func (p *GatewayProvider) HandshakeCredentials(ctx context.Context) (*auth.Credentials, error) {
	passport, err := p.login(ctx)
	if err != nil {
		return nil, err
	}

	creds := auth.NewHeaderCredentials("CAMPassport " + passport)
	creds.Cookies = []*http.Cookie{{Name: passportCookie, Value: passport}}
	return creds, nil
}

// Close is a no-op for this provider.
func (p *GatewayProvider) Close() error {
	return nil
}

// login authenticates against the gateway and extracts the issued passport
// from the response cookies.
func (p *GatewayProvider) login(ctx context.Context) (string, error) {
	token, err := p.source.NegotiateToken(ctx, p.service)
	if err != nil {
		return "", err
	}

	headers := make(map[string]string, len(p.reqHeaders)+1)
	for k, v := range p.reqHeaders {
		headers[k] = v
	}
	headers["Authorization"] = "Negotiate " + base64.StdEncoding.EncodeToString(token)

	resp, err := httputil.DoRequest(ctx, p.httpClient, p.timeout, http.MethodGet, p.gatewayURL, nil, headers, p.logger)
	if err != nil {
		return "", err
	}

	if resp.Code != http.StatusOK {
		return "", tm1err.NewAuthentication(resp.Code, string(resp.Body))
	}

	for _, c := range (&http.Response{Header: resp.Header}).Cookies() {
		if c.Name == passportCookie && c.Value != "" {
			return c.Value, nil
		}
	}

	return "", tm1err.NewAuthentication(resp.Code,
		fmt.Sprintf("gateway %s did not issue a %s cookie", p.gatewayURL, passportCookie))
}
