// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

/*
Package supervisor provides process supervision for the relay using suture v4.

# Overview

Services are organized into three layers for failure isolation:

	RootSupervisor ("homerelay")
	├── DataSupervisor ("data-layer")
	│   └── ReadingLogService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   └── StatsReporterService (if stats.report_interval > 0)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A service that panics or returns an error is restarted with backoff. Nothing
inside the tree is fatal to the process; only configuration errors at startup
are.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewReadingLogService(writer))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)

# Logging

Supervisor events (service start, failure, restart, backoff) are emitted
through sutureslog into the zerolog stream via logging.NewSlogLogger.
*/
package supervisor
