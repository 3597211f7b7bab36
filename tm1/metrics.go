//
// Copyright (c) 2024, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package tm1

import "time"

// Replay reasons reported through MetricsCollector.RequestRetried.
const (
	// RetryReasonSessionExpired marks a replay after the server reported
	// the session expired.
	RetryReasonSessionExpired = "session_expired"

	// RetryReasonTransport marks a replay after the connection was torn
	// down before a response arrived.
	RetryReasonTransport = "transport"
)

// MetricsCollector receives client activity measurements.
//
// Implementations must be safe for concurrent use. The SDK ships a no-op
// default; an adapter backed by VictoriaMetrics lives under
// contrib/metrics/vm.
type MetricsCollector interface {
	// RequestCompleted records one finished request with its HTTP method,
	// terminal status code and total duration including replays.
	RequestCompleted(method string, statusCode int, elapsed time.Duration)

	// RequestRetried records a replay of a request. The reason is either
	// "session_expired" or "transport".
	RequestRetried(method, reason string)

	// SessionReconnected records a session re-establishment after the
	// server reported the session expired.
	SessionReconnected()

	// AsyncCompleted records a finished asynchronous operation with the
	// number of status polls it took and the total wait.
	AsyncCompleted(polls int, elapsed time.Duration)

	// WriteGroupCompleted records one bulk write group outcome.
	WriteGroupCompleted(strategy string, cells int, success bool, elapsed time.Duration)
}

// NopMetrics discards all measurements. It is the default collector.
type NopMetrics struct{}

var _ MetricsCollector = (*NopMetrics)(nil)

// RequestCompleted does nothing.
func (*NopMetrics) RequestCompleted(method string, statusCode int, elapsed time.Duration) {}

// RequestRetried does nothing.
func (*NopMetrics) RequestRetried(method, reason string) {}

// SessionReconnected does nothing.
func (*NopMetrics) SessionReconnected() {}

// AsyncCompleted does nothing.
func (*NopMetrics) AsyncCompleted(polls int, elapsed time.Duration) {}

// WriteGroupCompleted does nothing.
func (*NopMetrics) WriteGroupCompleted(strategy string, cells int, success bool, elapsed time.Duration) {}

// resolveMetrics returns the configured collector or the no-op default.
func resolveMetrics(mc MetricsCollector) MetricsCollector {
	if mc == nil {
		return &NopMetrics{}
	}
	return mc
}
