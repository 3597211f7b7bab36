//
// Copyright (c) 2021, 2026 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package tm1err defines the error types that may be returned by the TM1
// client.
//
// Errors are divided into categories as follows:
//
// 1. Errors raised before any network call is made. These report unresolved
// or contradictory connection configuration and are represented by
// ConfigurationError.
//
// 2. Errors raised while establishing a session. A rejected authentication
// handshake is represented by AuthenticationError.
//
// 3. Errors raised while executing requests. Any non-2xx server response not
// otherwise classified is represented by RestError; a client-observed
// timeout is represented by TimeoutError.
//
// 4. Terminal outcomes of the bulk write pipeline. WriteFailureError reports
// that no group of a bulk write succeeded, WritePartialFailureError that
// some but not all groups succeeded.
package tm1err

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ConfigurationError represents an unresolved or contradictory connection
// configuration. It is fatal and is returned before any network call is made.
//
// This implements the error interface.
type ConfigurationError struct {
	// Message specifies the description of the configuration problem.
	Message string `json:"message"`

	// Cause optionally specifies the cause of the error.
	Cause error `json:"cause,omitempty"`
}

// NewConfiguration creates a ConfigurationError with the specified message.
func NewConfiguration(msgFmt string, msgArgs ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Message: fmt.Sprintf(msgFmt, msgArgs...),
	}
}

// NewConfigurationWithCause creates a ConfigurationError with the specified
// message and the cause of the error.
func NewConfigurationWithCause(cause error, msgFmt string, msgArgs ...interface{}) *ConfigurationError {
	return &ConfigurationError{
		Message: fmt.Sprintf(msgFmt, msgArgs...),
		Cause:   cause,
	}
}

// Error returns a descriptive message for the error.
func (e *ConfigurationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[Configuration]: %s", e.Message)
	}

	return fmt.Sprintf("[Configuration]: %s. Caused by:\n\t%s", e.Message, e.Cause.Error())
}

// Unwrap returns the cause of the error, if any.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// AuthenticationError represents an authentication handshake that was
// rejected by the server. It is fatal for that connection attempt.
//
// This implements the error interface.
type AuthenticationError struct {
	// StatusCode specifies the HTTP status code the server answered the
	// handshake with.
	StatusCode int `json:"statusCode"`

	// Reason specifies the HTTP reason phrase associated with StatusCode.
	Reason string `json:"reason"`

	// Body specifies the response body returned for the handshake, which
	// usually carries the server's explanation of the rejection.
	Body string `json:"body,omitempty"`
}

// NewAuthentication creates an AuthenticationError for the specified
// handshake response.
func NewAuthentication(statusCode int, body string) *AuthenticationError {
	return &AuthenticationError{
		StatusCode: statusCode,
		Reason:     http.StatusText(statusCode),
		Body:       body,
	}
}

// Error returns a descriptive message for the error.
func (e *AuthenticationError) Error() string {
	s := fmt.Sprintf("[Authentication]: handshake rejected with status %d %s", e.StatusCode, e.Reason)
	if e.Body != "" {
		s += ", response body: " + e.Body
	}
	return s
}

// RestError represents a non-2xx server response that is not otherwise
// classified. It carries the request method and URL along with the response
// status, reason phrase, body and headers, so callers can reproduce and
// diagnose the failure without re-running with elevated logging.
//
// This implements the error interface.
type RestError struct {
	// Method specifies the HTTP method of the failed request.
	Method string `json:"method"`

	// URL specifies the URL of the failed request.
	URL string `json:"url"`

	// StatusCode specifies the HTTP status code of the response.
	StatusCode int `json:"statusCode"`

	// Reason specifies the HTTP reason phrase associated with StatusCode.
	Reason string `json:"reason"`

	// Body specifies the response body.
	Body string `json:"body,omitempty"`

	// Header specifies the response headers.
	Header http.Header `json:"header,omitempty"`
}

// NewRest creates a RestError for the specified request and response details.
func NewRest(method, url string, statusCode int, body string, header http.Header) *RestError {
	return &RestError{
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Reason:     http.StatusText(statusCode),
		Body:       body,
		Header:     header,
	}
}

// Error returns a descriptive message for the error.
func (e *RestError) Error() string {
	s := fmt.Sprintf("[Rest]: %s %s returned %d %s", e.Method, e.URL, e.StatusCode, e.Reason)
	if e.Body != "" {
		s += ", response body: " + e.Body
	}
	return s
}

// TimeoutError represents a client-observed timeout. It carries the method,
// URL and configured timeout of the request that did not complete.
//
// This implements the error interface.
type TimeoutError struct {
	// Method specifies the HTTP method of the timed out request.
	Method string `json:"method"`

	// URL specifies the URL of the timed out request.
	URL string `json:"url"`

	// Timeout specifies the configured timeout that elapsed.
	Timeout time.Duration `json:"timeout"`

	// Cause optionally specifies the underlying error, usually
	// context.DeadlineExceeded.
	Cause error `json:"cause,omitempty"`
}

// NewTimeout creates a TimeoutError for the specified request details.
func NewTimeout(method, url string, timeout time.Duration, cause error) *TimeoutError {
	return &TimeoutError{
		Method:  method,
		URL:     url,
		Timeout: timeout,
		Cause:   cause,
	}
}

// Error returns a descriptive message for the error.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("[Timeout]: %s %s did not complete within %v", e.Method, e.URL, e.Timeout)
}

// Unwrap returns the cause of the error, if any.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// WriteFailureError represents a bulk write in which no group succeeded.
// It carries the status descriptions and diagnostic log references of all
// failed groups and the total number of groups attempted.
//
// This implements the error interface.
type WriteFailureError struct {
	// Statuses specifies the status descriptions reported for the groups.
	Statuses []string `json:"statuses"`

	// ErrorLogFiles specifies the diagnostic log references reported for
	// the failed groups.
	ErrorLogFiles []string `json:"errorLogFiles,omitempty"`

	// Attempts specifies the total number of groups attempted.
	Attempts int `json:"attempts"`
}

// NewWriteFailure creates a WriteFailureError with the specified group
// statuses, diagnostic log references and attempt count.
func NewWriteFailure(statuses, errorLogFiles []string, attempts int) *WriteFailureError {
	return &WriteFailureError{
		Statuses:      statuses,
		ErrorLogFiles: errorLogFiles,
		Attempts:      attempts,
	}
}

// Error returns a descriptive message for the error.
func (e *WriteFailureError) Error() string {
	return fmt.Sprintf("[WriteFailure]: all %d groups failed, statuses: %s%s",
		e.Attempts, strings.Join(e.Statuses, "; "), logFileSuffix(e.ErrorLogFiles))
}

// WritePartialFailureError represents a bulk write in which some but not all
// groups succeeded. It carries the same information as WriteFailureError so
// callers can drive retry or rollback logic, and distinguishes "some rows
// written" from "nothing written".
//
// This implements the error interface.
type WritePartialFailureError struct {
	// Statuses specifies the status descriptions reported for the failed groups.
	Statuses []string `json:"statuses"`

	// ErrorLogFiles specifies the diagnostic log references reported for
	// the failed groups.
	ErrorLogFiles []string `json:"errorLogFiles,omitempty"`

	// Attempts specifies the total number of groups attempted, including
	// the ones that succeeded.
	Attempts int `json:"attempts"`
}

// NewWritePartialFailure creates a WritePartialFailureError with the
// specified failed-group statuses, diagnostic log references and attempt
// count.
func NewWritePartialFailure(statuses, errorLogFiles []string, attempts int) *WritePartialFailureError {
	return &WritePartialFailureError{
		Statuses:      statuses,
		ErrorLogFiles: errorLogFiles,
		Attempts:      attempts,
	}
}

// Error returns a descriptive message for the error.
func (e *WritePartialFailureError) Error() string {
	return fmt.Sprintf("[WritePartialFailure]: %d of %d groups failed, statuses: %s%s",
		len(e.Statuses), e.Attempts, strings.Join(e.Statuses, "; "), logFileSuffix(e.ErrorLogFiles))
}

func logFileSuffix(files []string) string {
	if len(files) == 0 {
		return ""
	}
	return ", error logs: " + strings.Join(files, "; ")
}

// IsConfiguration returns true if the specified error is a
// ConfigurationError, otherwise returns false.
func IsConfiguration(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// IsAuthentication returns true if the specified error is an
// AuthenticationError, otherwise returns false.
func IsAuthentication(err error) bool {
	var e *AuthenticationError
	return errors.As(err, &e)
}

// IsTimeout returns true if the specified error is a TimeoutError,
// otherwise returns false.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// IsRest returns true if the specified error is a RestError and its status
// code matches any of the expected status codes if specified, otherwise
// returns false.
func IsRest(err error, expectedStatusCodes ...int) bool {
	var e *RestError
	if !errors.As(err, &e) {
		return false
	}

	if len(expectedStatusCodes) == 0 {
		return true
	}

	for _, code := range expectedStatusCodes {
		if e.StatusCode == code {
			return true
		}
	}

	return false
}

// IsNotFound returns true if the specified error is a RestError with status
// 404, otherwise returns false.
func IsNotFound(err error) bool {
	return IsRest(err, http.StatusNotFound)
}

// IsUnauthorized returns true if the specified error is a RestError with
// status 401, otherwise returns false.
func IsUnauthorized(err error) bool {
	return IsRest(err, http.StatusUnauthorized)
}

// IsWriteFailure returns true if the specified error is a WriteFailureError,
// otherwise returns false.
func IsWriteFailure(err error) bool {
	var e *WriteFailureError
	return errors.As(err, &e)
}

// IsWritePartialFailure returns true if the specified error is a
// WritePartialFailureError, otherwise returns false.
func IsWritePartialFailure(err error) bool {
	var e *WritePartialFailureError
	return errors.As(err, &e)
}
