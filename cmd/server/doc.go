// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

/*
Package main is the entry point for the Homerelay server.

Homerelay relays sensor readings from microcontroller producers (an Arduino
sensor array posting over HTTP or WebSocket) to browser dashboards over
WebSocket, relays dashboard commands back to producers, and appends every
accepted reading to a JSON Lines log file.

# Application Architecture

	RootSupervisor ("homerelay")
	├── DataSupervisor ("data-layer")
	│   └── Reading log writer (sensor_data.log)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub
	│   └── Stats reporter (stats.report_interval > 0)
	└── APISupervisor ("api-layer")
	    └── HTTP server (chi)

Component initialization order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog at the configured level and format
 3. Reading log writer
 4. WebSocket hub with the writer as its recorder
 5. HTTP router and server
 6. Supervisor tree

# Configuration

Common environment variables:

	PORT / HTTP_PORT        listen port (default 3000)
	HTTP_HOST               listen host (default 0.0.0.0)
	LOG_FILE                reading log path (default sensor_data.log)
	LOG_LEVEL, LOG_FORMAT   zerolog level and json|console
	LIVENESS_INTERVAL       WebSocket ping interval (default 30s, 0 disables)
	LIVENESS_MAX_MISSED     disconnect after N silent intervals (default 0: never)
	CORS_ORIGINS            comma-separated origins (default *)
	PRODUCER_DEVICES        device names classified as producers
	CONFIG_PATH             YAML config file

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for
server.shutdown_timeout, the hub closes every WebSocket, and the reading log
flushes its queue before the process exits.
*/
package main
