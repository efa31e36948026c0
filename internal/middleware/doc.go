// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

/*
Package middleware provides HTTP middleware for the relay's chi router.

Key Components:

  - RequestID: UUID request IDs, propagated to the logging context
  - PrometheusMetrics: request count, latency and in-flight instrumentation

Both have the standard func(http.Handler) http.Handler signature:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

The metrics wrapper keeps http.Hijacker available so WebSocket upgrades work
through it.
*/
package middleware
