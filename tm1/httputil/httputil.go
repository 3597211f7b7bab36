//
// Copyright (c) 2021, 2026 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package httputil

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/tm1labs/tm1-go-sdk/tm1/logger"
	"github.com/tm1labs/tm1-go-sdk/tm1/tm1err"
)

const (
	retryInterval = time.Second
)

// RequestExecutor represents an interface used to execute an HTTP request.
type RequestExecutor interface {
	// Do is used to send an http request to the server, returns an http
	// response and an error if occurred during execution.
	Do(req *http.Request) (*http.Response, error)
}

// Response represents a response that contains the content, status code and
// headers of an http.Response returned from the server.
type Response struct {
	Body   []byte      // HTTP response body.
	Code   int         // HTTP response status code.
	Header http.Header // HTTP response headers.
}

// newHTTPRequest creates an http request using the specified method, url and
// data. The http request header is populated with the specified headers.
func newHTTPRequest(method string, url string, data []byte, headers map[string]string) (*http.Request, error) {
	var rd io.Reader
	if len(data) > 0 {
		rd = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequest(method, url, rd)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	if httpReq.Header.Get("Host") == "" {
		httpReq.Header.Set("Host", httpReq.URL.Hostname())
	}

	return httpReq, nil
}

// executeRequest creates an http request using the specified method, url,
// data and headers, then executes the request using the specified executor.
func executeRequest(ctx context.Context, executor RequestExecutor, timeout time.Duration,
	method string, url string, data []byte, headers map[string]string) (*Response, error) {

	httpReq, err := newHTTPRequest(method, url, data, headers)
	if err != nil {
		return nil, err
	}

	reqCtx, reqCancel := context.WithTimeout(ctx, timeout)
	defer reqCancel()

	httpReq = httpReq.WithContext(reqCtx)
	httpResp, err := executor.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Code:   httpResp.StatusCode,
		Body:   body,
		Header: httpResp.Header,
	}, nil
}

// DoRequest creates an http request using the specified method, url, data
// and headers, then executes the request using the specified executor.
// When the executor returns an http response after execution, DoRequest
// checks the response status code, it returns immediately if the status code
// is less than 500, otherwise it retries the request until either the
// request gets executed successfully or the specified timeout elapses.
//
// This is used by the token-exchange auth providers, which talk to
// authorization endpoints outside of the session/request execution layer.
func DoRequest(ctx context.Context, executor RequestExecutor, timeout time.Duration,
	method string, url string, data []byte, headers map[string]string,
	lgr *logger.Logger) (*Response, error) {

	var err error
	var resp *Response
	var timer *time.Timer
	var delay time.Duration
	var numAttempts uint

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

DoRetry:
	for {
		numAttempts++
		resp, err = executeRequest(reqCtx, executor, timeout, method, url, data, headers)
		if err != nil {
			break
		}

		if resp.Code < 500 {
			return resp, nil
		}

		// Retry if status code >= 500.
		lgr.Trace("remote server temporarily unavailable, status code: %d, response: %s",
			resp.Code, string(resp.Body))
		delay = (1 << (numAttempts - 1)) * retryInterval
		lgr.Trace("DoRequest(): number of attempts: %d, will retry in %v.", numAttempts, delay)

		if timer == nil {
			timer = time.NewTimer(delay)
			defer timer.Stop()
		} else {
			timer.Reset(delay)
		}

		select {
		case <-timer.C: // Stop timer and retry the request.
			timer.Stop()
		case <-reqCtx.Done(): // Request timeout or canceled.
			timer.Stop()
			break DoRetry
		}
	}

	ctxErr := reqCtx.Err()
	switch {
	case ctxErr == context.DeadlineExceeded:
		return nil, tm1err.NewTimeout(method, url, timeout, ctxErr)
	case ctxErr == context.Canceled:
		if err != nil {
			return nil, fmt.Errorf("request was canceled, got error: %w", err)
		}
		return nil, fmt.Errorf("request was canceled")
	default:
		return nil, err
	}
}

// BasicAuth returns a basic authentication string of the format:
//
//	Basic base64(user:password)
func BasicAuth(user string, password []byte) string {
	s := fmt.Sprintf("%s:%s", user, string(password))
	buf := UTF8Encode(s)
	return "Basic " + base64.StdEncoding.EncodeToString(buf)
}

// UTF8Encode returns the UTF-8 encoding of the specified string.
func UTF8Encode(s string) []byte {
	rs := []rune(s)
	byteLen := 0
	for _, r := range rs {
		byteLen += utf8.RuneLen(r)
	}
	buf := make([]byte, byteLen)
	off := 0
	for _, r := range rs {
		off += utf8.EncodeRune(buf[off:], r)
	}
	return buf
}
