// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ErrMalformedPayload is returned when a payload is not a well-formed JSON object.
var ErrMalformedPayload = errors.New("malformed payload")

// TimestampLayout matches the millisecond ISO-8601 form browsers produce.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Well-known reading fields.
const (
	FieldTemperature    = "temperature"
	FieldHumidity       = "humidity"
	FieldLight          = "light"
	FieldMotion         = "motion"
	FieldSound          = "sound"
	FieldWaterDetected  = "water_detected"
	FieldMoistureLevel  = "moisture_level"
	FieldMoistureStatus = "moisture_status"
	FieldDistance       = "distance"
	FieldPotentiometer  = "potentiometer"
	FieldRGBColor       = "rgb_color"
	FieldRGBEnabled     = "rgb_enabled"
	FieldMulticolorMode = "multicolor_mode"
	FieldPotControlMode = "pot_control_mode"
	FieldDeviceID       = "device_id"
	FieldTimestamp      = "timestamp"

	// fieldType is the frame discriminator; it never belongs to a Reading.
	fieldType = "type"
)

// Reading is one sensor snapshot. Fields are kept exactly as the producer sent
// them: well-known fields have typed accessors and anything else passes
// through untouched. A Reading is treated as immutable once it is cached.
type Reading map[string]any

// DecodeReading parses raw as a JSON object. No field-level validation is
// performed; the only failure is malformed input.
func DecodeReading(raw []byte) (Reading, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedPayload)
	}
	delete(fields, fieldType)
	return Reading(fields), nil
}

// Clone returns a shallow copy of r.
func (r Reading) Clone() Reading {
	out := make(Reading, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// WithDefaults returns a copy of r with device_id and timestamp filled in when
// they are absent or empty. Other fields are never touched.
func (r Reading) WithDefaults(deviceID string, now time.Time) Reading {
	out := r.Clone()
	if isBlank(out[FieldDeviceID]) && deviceID != "" {
		out[FieldDeviceID] = deviceID
	}
	if isBlank(out[FieldTimestamp]) {
		out[FieldTimestamp] = now.UTC().Format(TimestampLayout)
	}
	return out
}

func isBlank(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	default:
		return false
	}
}

// Has reports whether the field is present.
func (r Reading) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Float returns a numeric field. Numeric strings are accepted because some
// firmware sends fixed-point strings like "21.5".
func (r Reading) Float(field string) (float64, bool) {
	switch typed := r[field].(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(typed, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Bool returns a boolean field.
func (r Reading) Bool(field string) (value bool, ok bool) {
	value, ok = r[field].(bool)
	return value, ok
}

// Text returns a string field.
func (r Reading) Text(field string) (value string, ok bool) {
	value, ok = r[field].(string)
	return value, ok
}

// Temperature in degrees Celsius.
func (r Reading) Temperature() (float64, bool) { return r.Float(FieldTemperature) }

// Humidity in percent.
func (r Reading) Humidity() (float64, bool) { return r.Float(FieldHumidity) }

// Motion reports the PIR sensor state.
func (r Reading) Motion() (bool, bool) { return r.Bool(FieldMotion) }

// DeviceID identifies the producing device.
func (r Reading) DeviceID() string {
	id, _ := r.Text(FieldDeviceID)
	return id
}

// Timestamp returns the capture timestamp as sent or stamped on ingest.
func (r Reading) Timestamp() string {
	ts, _ := r.Text(FieldTimestamp)
	return ts
}

// RGBColor is the 3-channel color value reported by the RGB module.
type RGBColor struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Color decodes the rgb_color field.
func (r Reading) Color() (RGBColor, bool) {
	raw, ok := r[FieldRGBColor].(map[string]any)
	if !ok {
		return RGBColor{}, false
	}
	channel := func(key string) float64 {
		v, _ := Reading(raw).Float(key)
		return v
	}
	return RGBColor{R: channel("r"), G: channel("g"), B: channel("b")}, true
}

// Command is an operator instruction relayed to producers. It is never persisted.
type Command struct {
	Command   string `json:"command"`
	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
}
