//
// Copyright (c) 2024, 2025 TM1 Labs and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package vm provides a VictoriaMetrics-backed implementation of the
// tm1.MetricsCollector interface.
//
// Create a collector and hand it to the client configuration:
//
//	collector := vm.New()
//	client, err := tm1.NewClient(tm1.Config{
//	    Address:          "tm1.example.com:8010",
//	    User:             "admin",
//	    Password:         "apple",
//	    MetricsCollector: collector,
//	})
//
// Expose the metrics over HTTP:
//
//	http.HandleFunc("/metrics", collector.Handler)
//
// The collector publishes, under the configured prefix (default "tm1"):
//
//   - {prefix}_requests_total{method,status} - finished requests
//   - {prefix}_request_duration_seconds{method} - request latencies
//   - {prefix}_request_replays_total{method,reason} - transparent replays
//   - {prefix}_session_reconnects_total - session re-establishments
//   - {prefix}_async_polls - status polls per asynchronous operation
//   - {prefix}_async_duration_seconds - asynchronous operation waits
//   - {prefix}_write_groups_total{strategy,outcome} - bulk write groups
//   - {prefix}_write_cells_total{strategy,outcome} - bulk write cells
//   - {prefix}_write_group_duration_seconds{strategy} - group latencies
package vm
