//
// Copyright (c) 2024, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package vm

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/tm1labs/tm1-go-sdk/tm1"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix. It defaults to "tm1".
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet registers the metrics with the given set instead of a new
// globally registered one. The caller is responsible for exposing the set.
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements tm1.MetricsCollector backed by VictoriaMetrics.
// It is safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	reconnects    *metrics.Counter
	asyncPolls    *metrics.Histogram
	asyncDuration *metrics.Histogram
}

var _ tm1.MetricsCollector = (*Collector)(nil)

// New creates a collector. Without WithMetricsSet, it creates its own
// metrics set and registers it globally for standard Prometheus scraping.
func New(opts ...Option) *Collector {
	c := &Collector{prefix: "tm1"}
	for _, opt := range opts {
		opt(c)
	}

	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	// Unlabeled metrics are pre-created; the labeled ones materialize per
	// label value on first use.
	c.reconnects = c.set.NewCounter(c.prefix + "_session_reconnects_total")
	c.asyncPolls = c.set.NewHistogram(c.prefix + "_async_polls")
	c.asyncDuration = c.set.NewHistogram(c.prefix + "_async_duration_seconds")

	return c
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler exposes the metrics in Prometheus text format, for use with
// http.HandleFunc.
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes the metrics in Prometheus text format to w.
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// RequestCompleted records one finished request.
func (c *Collector) RequestCompleted(method string, statusCode int, elapsed time.Duration) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_requests_total{method=%q,status="%d"}`,
		c.prefix, method, statusCode)).Inc()
	c.set.GetOrCreateHistogram(fmt.Sprintf(`%s_request_duration_seconds{method=%q}`,
		c.prefix, method)).Update(elapsed.Seconds())
}

// RequestRetried records a replay of a request.
func (c *Collector) RequestRetried(method, reason string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_request_replays_total{method=%q,reason=%q}`,
		c.prefix, method, reason)).Inc()
}

// SessionReconnected records a session re-establishment.
func (c *Collector) SessionReconnected() {
	c.reconnects.Inc()
}

// AsyncCompleted records a finished asynchronous operation.
func (c *Collector) AsyncCompleted(polls int, elapsed time.Duration) {
	c.asyncPolls.Update(float64(polls))
	c.asyncDuration.Update(elapsed.Seconds())
}

// WriteGroupCompleted records one bulk write group outcome.
func (c *Collector) WriteGroupCompleted(strategy string, cells int, success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}

	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_write_groups_total{strategy=%q,outcome=%q}`,
		c.prefix, strategy, outcome)).Inc()
	c.set.GetOrCreateCounter(fmt.Sprintf(`%s_write_cells_total{strategy=%q,outcome=%q}`,
		c.prefix, strategy, outcome)).Add(cells)
	c.set.GetOrCreateHistogram(fmt.Sprintf(`%s_write_group_duration_seconds{strategy=%q}`,
		c.prefix, strategy)).Update(elapsed.Seconds())
}
