// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

/*
Package api provides the HTTP surface of the relay on a chi router.

Endpoints:

	POST /sensor-data        reading ingest (path used by deployed firmware)
	POST /api/v1/readings    reading ingest
	GET  /, GET /ws          WebSocket upgrade for producers and consumers
	GET  /api/v1/status      server_status snapshot
	GET  /health/live        liveness probe
	GET  /health/ready       readiness probe (hub running)
	GET  /metrics            Prometheus exposition

Ingest replies use the flat form the firmware parses:

	200 {"status":"success","message":"Data received"}
	400 {"status":"error","message":"Invalid JSON"}

Every request passes through request id, real IP, panic recovery, CORS and
Prometheus middleware. Ingest routes are additionally rate limited per IP
with go-chi/httprate.

WebSocket upgrades accept an empty Origin header, since microcontroller
clients never send one, and otherwise require the origin to be in the CORS
list.
*/
package api
