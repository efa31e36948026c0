// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package models

import (
	"time"
)

// APIResponse is the envelope used by the operational endpoints
// (health probes, errors). The ingest endpoints keep the flat
// IngestResponse form that existing firmware expects.
//
//	{
//	  "status": "success",
//	  "data": {"alive": true, "uptime": 12.5},
//	  "metadata": {"timestamp": "2026-05-30T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a machine-readable error body.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// IngestResponse is returned by the reading ingest endpoints.
type IngestResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
