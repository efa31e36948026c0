// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

/*
Package models defines the data structures shared by the relay packages.

Key Components:

  - Reading: one sensor snapshot, an open JSON object with typed accessors for
    well-known fields (temperature, humidity, light, motion, rgb_color, ...)
  - Command: an operator instruction relayed to producers
  - APIResponse, APIError, Metadata: envelope for operational HTTP endpoints
  - IngestResponse: the flat acknowledgement returned to firmware

Readings are never validated field by field. Unknown fields pass through to
consumers and the reading log unchanged; the only ingest failure is
ErrMalformedPayload.

Example:

	r, err := models.DecodeReading(body)
	if err != nil {
	    return err // wraps models.ErrMalformedPayload
	}
	r = r.WithDefaults("arduino_advanced_001", time.Now())
	if t, ok := r.Temperature(); ok {
	    fmt.Printf("%.1f°C\n", t)
	}
*/
package models
