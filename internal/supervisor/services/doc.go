// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

/*
Package services provides suture.Service wrappers for relay components.

Each wrapper implements suture.Service and fmt.Stringer:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Available services:

  - HTTPServerService: *http.Server with graceful shutdown
  - WebSocketHubService: the hub event loop
  - ReadingLogService: the append-only reading log writer
  - StatsReporterService: periodic statistics log line

Components are referenced through small interfaces (ContextHub, ReadingLog,
StatusSource, HTTPServer) so tests can substitute fakes.
*/
package services
