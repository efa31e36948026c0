// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"time"

	"github.com/tomtom215/homerelay/internal/models"
)

// ReadingCache holds the current Reading. A new Reading replaces the previous
// one wholesale; fields are never merged across readings.
// It is not safe for concurrent use; the hub goroutine owns it.
type ReadingCache struct {
	current models.Reading
	ok      bool
}

// Ingest decodes raw, fills device_id and timestamp when absent and stores
// the result. On error the cache is left untouched.
func (c *ReadingCache) Ingest(raw []byte, deviceID string, now time.Time) (models.Reading, error) {
	reading, err := models.DecodeReading(raw)
	if err != nil {
		return nil, err
	}
	reading = reading.WithDefaults(deviceID, now)
	c.Store(reading)
	return reading, nil
}

// Store replaces the current Reading.
func (c *ReadingCache) Store(r models.Reading) {
	c.current = r
	c.ok = true
}

// Current returns the cached Reading, or false before the first one arrives.
func (c *ReadingCache) Current() (models.Reading, bool) {
	return c.current, c.ok
}
