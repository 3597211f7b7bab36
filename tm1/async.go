//
// Copyright (c) 2022, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tm1labs/tm1-go-sdk/tm1/httputil"
	"github.com/tm1labs/tm1-go-sdk/tm1/internal/sdkutil"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

// asyncPollSchedule spaces the status polls of an asynchronous operation.
// The last interval repeats until the operation completes.
var asyncPollSchedule = []time.Duration{
	100 * time.Millisecond,
	300 * time.Millisecond,
	600 * time.Millisecond,
	time.Second,
}

// AsyncOperation tracks a request the server chose to execute
// asynchronously. It is returned by Client.DoAsync and is not safe for
// concurrent use.
type AsyncOperation struct {
	c       *Client
	method  string
	url     string
	id      string
	timeout time.Duration
	start   time.Time
	polls   int
	resp    *httputil.Response
	done    bool
}

// DoAsync dispatches the request asynchronously and returns the operation
// handle without waiting for completion. If the server answered
// synchronously anyway, the returned operation is already complete.
//
// Call Wait on the handle to obtain the result, or Cancel to abandon the
// operation server-side.
func (c *Client) DoAsync(ctx context.Context, req *Request) (*AsyncOperation, error) {
	if req == nil {
		return nil, tm1err.NewConfiguration("request must be non-nil")
	}

	req.setDefaults(&c.Config)
	if err := req.validate(); err != nil {
		return nil, err
	}

	dispatch := req.clone()
	dispatch.Header.Set("Prefer", "respond-async")

	op := &AsyncOperation{
		c:       c,
		method:  req.Method,
		url:     c.baseURL + req.Path,
		timeout: req.reqTimeout,
		start:   time.Now(),
	}

	resp, err := c.doSync(ctx, dispatch)
	if err != nil {
		return nil, err
	}

	if resp.Code == http.StatusAccepted {
		if id := asyncID(resp.Header); id != "" {
			op.id = id
			return op, nil
		}
	}

	op.resp = resp
	return op, nil
}

// doAsync runs a request asynchronously and waits for its result. This is
// the transparent path behind Config.AsyncRequestsMode: long-running
// requests survive connection-level idle limits because only short status
// polls cross the wire after dispatch.
func (c *Client) doAsync(ctx context.Context, req *Request) (*httputil.Response, error) {
	op, err := c.DoAsync(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

// ID returns the server-side identifier of the asynchronous operation, or
// an empty string if the server answered synchronously.
func (op *AsyncOperation) ID() string {
	return op.id
}

// Done reports whether the operation reached a terminal state.
func (op *AsyncOperation) Done() bool {
	return op.done || op.resp != nil
}

// Wait polls the operation until it completes and returns its result. Wait
// consumes the operation and must be called at most once.
//
// The request timeout bounds the whole operation, dispatch included. When
// it elapses, Wait makes a best effort attempt to cancel the operation
// server-side and returns a tm1err.TimeoutError.
func (op *AsyncOperation) Wait(ctx context.Context) (*httputil.Response, error) {
	if op.resp != nil {
		return op.finish(op.resp)
	}
	if op.done {
		return nil, fmt.Errorf("asynchronous operation %s already consumed", op.id)
	}

	deadline := op.start.Add(op.timeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	timer := time.NewTimer(asyncPollSchedule[0])
	defer timer.Stop()

	for i := 0; ; i++ {
		select {
		case <-timer.C:
		case <-waitCtx.Done():
			return nil, op.abandon(ctx, waitCtx.Err())
		}

		resp, final, err := op.poll(waitCtx)
		if err != nil {
			if tm1err.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
				return nil, op.abandon(ctx, err)
			}
			return nil, err
		}
		if final {
			return op.finish(resp)
		}

		next := i + 1
		if next >= len(asyncPollSchedule) {
			next = len(asyncPollSchedule) - 1
		}
		timer.Reset(asyncPollSchedule[next])
	}
}

// Cancel abandons the operation server-side. Canceling an operation that
// already completed is not an error.
func (op *AsyncOperation) Cancel(ctx context.Context) error {
	if op.id == "" || op.Done() {
		return nil
	}

	req := &Request{
		Method:          http.MethodDelete,
		Path:            op.pollPath(),
		Async:           boolPtr(false),
		CancelAtTimeout: boolPtr(false),
	}

	_, err := op.c.Do(ctx, req)
	if err != nil && tm1err.IsNotFound(err) {
		// the operation finished before the cancelation arrived
		return nil
	}
	if err == nil {
		op.done = true
	}
	return err
}

// poll checks the operation status once. It reports whether the operation
// reached a terminal state.
func (op *AsyncOperation) poll(ctx context.Context) (*httputil.Response, bool, error) {
	req := &Request{
		Method:          http.MethodGet,
		Path:            op.pollPath(),
		Async:           boolPtr(false),
		CancelAtTimeout: boolPtr(false),
	}

	resp, err := op.c.Do(ctx, req)
	if err != nil {
		return nil, false, err
	}

	op.polls++
	if resp.Code == http.StatusAccepted {
		return nil, false, nil
	}
	return resp, true, nil
}

// finish resolves the terminal response of the operation, unwrapping the
// embedded result message servers before v12 answer status polls with.
func (op *AsyncOperation) finish(resp *httputil.Response) (*httputil.Response, error) {
	op.resp = nil
	op.done = true

	if isEmbeddedResponse(resp) {
		inner, err := parseEmbeddedResponse(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("parsing result of asynchronous %s %s: %w", op.method, op.url, err)
		}
		resp = inner
	}

	op.c.metrics.AsyncCompleted(op.polls, time.Since(op.start))

	if resp.Code >= 200 && resp.Code <= 299 {
		return resp, nil
	}
	return nil, tm1err.NewRest(op.method, op.url, resp.Code, truncateBody(resp.Body), resp.Header)
}

// abandon makes a best effort attempt to cancel the operation server-side
// after the caller gave up on it, and shapes the error Wait returns.
func (op *AsyncOperation) abandon(ctx context.Context, cause error) error {
	op.done = true

	// The caller's context may already be past its deadline.
	cancelCtx, cancel := context.WithTimeout(context.Background(), op.c.DefaultHandshakeTimeout())
	defer cancel()

	req := &Request{
		Method:          http.MethodDelete,
		Path:            op.pollPath(),
		Async:           boolPtr(false),
		CancelAtTimeout: boolPtr(false),
	}
	if _, err := op.c.Do(cancelCtx, req); err != nil && !tm1err.IsNotFound(err) {
		op.c.logger.Warn("cannot cancel abandoned asynchronous operation %s: %v", op.id, err)
	}

	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	return tm1err.NewTimeout(op.method, op.url, op.timeout, cause)
}

func (op *AsyncOperation) pollPath() string {
	return "/" + fmt.Sprintf(sdkutil.AsyncResourceFormat, op.id)
}

// asyncID extracts the operation identifier from the Location header of an
// asynchronous dispatch response.
func asyncID(header http.Header) string {
	const marker = "_async('"

	loc := header.Get("Location")
	i := strings.Index(loc, marker)
	if i < 0 {
		return ""
	}
	rest := loc[i+len(marker):]
	j := strings.Index(rest, "')")
	if j < 0 {
		return ""
	}
	return rest[:j]
}

// isEmbeddedResponse reports whether a status poll answered with the raw
// HTTP response message of the underlying operation, as servers before v12
// do.
func isEmbeddedResponse(resp *httputil.Response) bool {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/http") {
		return true
	}
	return bytes.HasPrefix(resp.Body, []byte("HTTP/1."))
}

// parseEmbeddedResponse decodes an HTTP response message embedded in a
// status poll body.
func parseEmbeddedResponse(data []byte) (*httputil.Response, error) {
	httpResp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &httputil.Response{
		Code:   httpResp.StatusCode,
		Body:   body,
		Header: httpResp.Header,
	}, nil
}
