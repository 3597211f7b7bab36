//
// Copyright (c) 2021, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/internal/sdkutil"
	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// restExecutor is the request execution capability the services consume.
// *Client satisfies it.
type restExecutor interface {
	Do(ctx context.Context, req *Request) (*httputil.Response, error)
}

// Do executes the specified request against the database and returns the
// server response.
//
// A 2xx response is returned as is. Any other status maps to a
// tm1err.RestError, a client-observed timeout to a tm1err.TimeoutError.
//
// Two failure modes are absorbed transparently, each at most once per call:
// a session the server reports as expired is re-established and the request
// replayed, and a connection torn down before a response arrived is replayed
// if the request is idempotent.
func (c *Client) Do(ctx context.Context, req *Request) (*httputil.Response, error) {
	if req == nil {
		return nil, tm1err.NewConfiguration("request must be non-nil")
	}

	req.setDefaults(&c.Config)
	if err := req.validate(); err != nil {
		return nil, err
	}

	if req.isAsync(&c.Config) {
		return c.doAsync(ctx, req)
	}

	return c.doSync(ctx, req)
}

// doSync runs the synchronous execution sequence for a request.
func (c *Client) doSync(ctx context.Context, req *Request) (*httputil.Response, error) {
	gen, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + req.Path
	start := time.Now()

	resp, err := c.attempt(ctx, req, url)

	if err != nil && isRemoteDisconnect(err) {
		if !req.isIdempotent() {
			c.logger.Warn("connection lost during non-idempotent %s %s, not replaying: %v",
				req.Method, url, err)
			return nil, err
		}

		c.logger.Debug("connection lost during %s %s, replaying once: %v", req.Method, url, err)
		c.metrics.RequestRetried(req.Method, RetryReasonTransport)
		c.HTTPClient.CloseIdleConnections()
		resp, err = c.attempt(ctx, req, url)
	}

	if err != nil {
		return nil, c.finishError(ctx, req, url, err)
	}

	// A 401 means the server rejected the session before executing the
	// request, so the replay is safe even for non-idempotent requests.
	if resp.Code == http.StatusUnauthorized && !req.noReconnect {
		c.logger.Debug("session expired during %s %s, reconnecting", req.Method, url)
		c.metrics.RequestRetried(req.Method, RetryReasonSessionExpired)
		if err = c.reconnect(ctx, gen); err != nil {
			return nil, err
		}

		resp, err = c.attempt(ctx, req, url)
		if err != nil {
			return nil, c.finishError(ctx, req, url, err)
		}
	}

	c.refreshSessionCookie(resp.Header)
	c.metrics.RequestCompleted(req.Method, resp.Code, time.Since(start))

	if resp.Code >= 200 && resp.Code <= 299 {
		return resp, nil
	}

	return nil, tm1err.NewRest(req.Method, url, resp.Code, truncateBody(resp.Body), resp.Header)
}

// attempt dispatches the request once with the current session credentials.
func (c *Client) attempt(ctx context.Context, req *Request, url string) (*httputil.Response, error) {
	cookie, extraAuth, _ := c.sessionState()

	hdr := make(http.Header)
	for k, vs := range req.Header {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	for k, vs := range extraAuth {
		for _, v := range vs {
			hdr.Set(k, v)
		}
	}
	if cookie != "" {
		hdr.Set("Cookie", cookie)
	}
	if len(req.Body) > 0 && hdr.Get("Content-Type") == "" {
		hdr.Set("Content-Type", req.contentType())
	}

	return c.doHTTP(ctx, req.reqTimeout, req.Method, url, req.Body, hdr)
}

// doHTTP executes one HTTP round trip with the specified timeout and reads
// the response body in full. The session and replay layers sit above it.
func (c *Client) doHTTP(ctx context.Context, timeout time.Duration,
	method, url string, body []byte, hdr http.Header) (*httputil.Response, error) {

	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequest(method, url, rd)
	if err != nil {
		return nil, err
	}

	for k, vs := range hdr {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("User-Agent", sdkutil.UserAgent())

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	httpReq = httpReq.WithContext(reqCtx)

	c.logger.LogWithFn(logger.Debug, func() string {
		return method + " " + url
	})

	httpResp, err := c.executor.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &httputil.Response{
		Code:   httpResp.StatusCode,
		Body:   data,
		Header: httpResp.Header,
	}, nil
}

// finishError resolves a transport-level failure into the error returned to
// the caller, mapping an elapsed timeout to a TimeoutError and optionally
// attempting a server-side cancelation first.
func (c *Client) finishError(ctx context.Context, req *Request, url string, err error) error {
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	if req.cancelAtTimeout(&c.Config) {
		c.cancelTimedOutRequest(req, url)
	}

	return tm1err.NewTimeout(req.Method, url, req.reqTimeout, err)
}

// cancelTimedOutRequest makes a best effort attempt to stop the server-side
// operation behind a timed out request. It cancels only when exactly one
// running thread belongs to this session, so an unrelated operation is never
// stopped. Failures are logged and otherwise ignored.
func (c *Client) cancelTimedOutRequest(req *Request, url string) {
	// The caller's context is already past its deadline.
	ctx, cancel := context.WithTimeout(context.Background(), c.DefaultHandshakeTimeout())
	defer cancel()

	threads, err := c.Monitoring.sessionThreads(ctx)
	if err != nil {
		c.logger.Warn("cannot identify the operation behind timed out %s %s: %v", req.Method, url, err)
		return
	}

	running := make([]Thread, 0, 1)
	for _, t := range threads {
		if t.State != ThreadStateIdle && t.Type != ThreadTypeSystem {
			running = append(running, t)
		}
	}

	if len(running) != 1 {
		c.logger.Debug("skipping cancelation of timed out %s %s: %d candidate threads",
			req.Method, url, len(running))
		return
	}

	if err = c.Monitoring.CancelThread(ctx, running[0].ID); err != nil {
		c.logger.Warn("cannot cancel thread %d of timed out %s %s: %v", running[0].ID, req.Method, url, err)
		return
	}

	c.logger.Info("canceled thread %d behind timed out %s %s", running[0].ID, req.Method, url)
}

// isRemoteDisconnect reports whether the error indicates the connection was
// torn down before a response arrived, typically by an idle-connection
// reaper on the server or an intermediary.
func isRemoteDisconnect(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	// net/http reports a reaped keep-alive connection with a sentinel that
	// is not exported and not wrapped.
	return strings.Contains(err.Error(), "server closed idle connection")
}

// doJSON executes the request and unmarshals the response body into out.
// A nil out discards the body.
func doJSON(ctx context.Context, rest restExecutor, req *Request, out interface{}) error {
	resp, err := rest.Do(ctx, req)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err = json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decoding response of %s %s: %w", req.Method, req.Path, err)
	}

	return nil
}
