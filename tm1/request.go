//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"net/http"
	"strings"
	"time"

	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// Request represents a single logical HTTP operation against the database.
//
// Services construct Requests internally; applications only need them for
// operations the service surface does not cover.
type Request struct {
	// Method specifies the HTTP method, one of GET, POST, PATCH, PUT or
	// DELETE.
	Method string

	// Path specifies the resource path relative to the service root. It
	// must start with a slash, for example "/Cubes('Sales')".
	Path string

	// Body specifies the request payload. It may be nil for operations
	// without one.
	Body []byte

	// Header carries additional headers for this request. They are set
	// after the standard headers and may override them.
	Header http.Header

	// ContentType overrides the default "application/json" payload type.
	ContentType string

	// Timeout overrides the configured request timeout.
	// If set, it must be greater than or equal to 1 millisecond.
	Timeout time.Duration

	// Async selects asynchronous dispatch for this request. If nil, the
	// configured AsyncRequestsMode applies. Use Client.DoAsync to obtain
	// the operation handle instead of waiting for completion.
	Async *bool

	// Idempotent overrides the idempotence classification derived from
	// Method. Only idempotent requests are replayed after a transport
	// disconnect.
	Idempotent *bool

	// CancelAtTimeout overrides the configured cancel-at-timeout policy
	// for this request.
	CancelAtTimeout *bool

	// Resolved timeout, set by setDefaults.
	reqTimeout time.Duration

	// noReconnect suppresses the expired-session replay. Set for requests
	// whose purpose a dead session already serves, such as closing it.
	noReconnect bool
}

// setDefaults fills unset request options from the client configuration.
func (r *Request) setDefaults(cfg *Config) {
	if r.Timeout != 0 {
		r.reqTimeout = r.Timeout
	} else {
		r.reqTimeout = cfg.DefaultRequestTimeout()
	}
}

// validate checks the request shape before dispatch.
func (r *Request) validate() error {
	if r == nil {
		return tm1err.NewConfiguration("request must be non-nil")
	}

	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
	default:
		return tm1err.NewConfiguration("unsupported request method %q", r.Method)
	}

	if !strings.HasPrefix(r.Path, "/") {
		return tm1err.NewConfiguration("request path %q must start with a slash", r.Path)
	}

	if r.Timeout != 0 && r.Timeout < time.Millisecond {
		return tm1err.NewConfiguration("request timeout must be at least 1 millisecond, got %v", r.Timeout)
	}

	return nil
}

// isIdempotent reports whether the request may be replayed after a transport
// level disconnect. GET, PUT and DELETE are idempotent unless overridden.
func (r *Request) isIdempotent() bool {
	if r.Idempotent != nil {
		return *r.Idempotent
	}

	switch r.Method {
	case http.MethodGet, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// isAsync reports whether the request is dispatched asynchronously.
func (r *Request) isAsync(cfg *Config) bool {
	if r.Async != nil {
		return *r.Async
	}
	return cfg.AsyncRequestsMode
}

// clone returns a copy of the request with its own header, so headers added
// at dispatch do not leak into the caller's request.
func (r *Request) clone() *Request {
	cp := *r
	cp.Header = make(http.Header, len(r.Header)+1)
	for k, vs := range r.Header {
		for _, v := range vs {
			cp.Header.Add(k, v)
		}
	}
	return &cp
}

// cancelAtTimeout reports whether a timed out request should attempt to
// cancel its server-side operation.
func (r *Request) cancelAtTimeout(cfg *Config) bool {
	if r.CancelAtTimeout != nil {
		return *r.CancelAtTimeout
	}
	return cfg.CancelAtTimeout
}

// contentType returns the payload type for the request.
func (r *Request) contentType() string {
	if r.ContentType != "" {
		return r.ContentType
	}
	return "application/json"
}
