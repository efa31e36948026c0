// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package main

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/tomtom215/homerelay/internal/models"
)

// sensorArray produces readings that drift like the physical board does.
type sensorArray struct {
	rng      *rand.Rand
	deviceID string

	temperature float64
	humidity    float64
	light       float64
	moisture    float64
	distance    float64
	pot         float64
	rgb         models.RGBColor
}

func newSensorArray(deviceID string, seed uint64) *sensorArray {
	return &sensorArray{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		deviceID:    deviceID,
		temperature: 21.0,
		humidity:    45.0,
		light:       300.0,
		moisture:    500.0,
		distance:    120.0,
		pot:         512.0,
		rgb:         models.RGBColor{R: 255, G: 120, B: 40},
	}
}

// walk moves v by at most step and clamps it to [lo, hi].
func (s *sensorArray) walk(v, step, lo, hi float64) float64 {
	v += (s.rng.Float64()*2 - 1) * step
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func moistureStatus(level float64) string {
	switch {
	case level < 300:
		return "dry"
	case level < 700:
		return "moist"
	default:
		return "wet"
	}
}

// next advances every sensor one step and returns the reading.
func (s *sensorArray) next(now time.Time) models.Reading {
	s.temperature = s.walk(s.temperature, 0.3, -10, 45)
	s.humidity = s.walk(s.humidity, 1.0, 0, 100)
	s.light = s.walk(s.light, 25, 0, 1023)
	s.moisture = s.walk(s.moisture, 15, 0, 1023)
	s.distance = s.walk(s.distance, 10, 2, 400)
	s.pot = s.walk(s.pot, 20, 0, 1023)
	s.rgb = models.RGBColor{
		R: math.Round(s.walk(s.rgb.R, 8, 0, 255)),
		G: math.Round(s.walk(s.rgb.G, 8, 0, 255)),
		B: math.Round(s.walk(s.rgb.B, 8, 0, 255)),
	}

	return models.Reading{
		models.FieldDeviceID:       s.deviceID,
		models.FieldTimestamp:      now.UTC().Format(models.TimestampLayout),
		models.FieldTemperature:    round1(s.temperature),
		models.FieldHumidity:       round1(s.humidity),
		models.FieldLight:          math.Round(s.light),
		models.FieldMotion:         s.rng.Float64() < 0.1,
		models.FieldSound:          s.rng.Float64() < 0.05,
		models.FieldWaterDetected:  s.moisture > 900,
		models.FieldMoistureLevel:  math.Round(s.moisture),
		models.FieldMoistureStatus: moistureStatus(s.moisture),
		models.FieldDistance:       round1(s.distance),
		models.FieldPotentiometer:  math.Round(s.pot),
		models.FieldRGBColor: map[string]any{
			"r": s.rgb.R,
			"g": s.rgb.G,
			"b": s.rgb.B,
		},
		models.FieldRGBEnabled: true,
	}
}

// jittered returns interval shifted by up to ±jitter.
func (s *sensorArray) jittered(interval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	d := interval + time.Duration((s.rng.Float64()*2-1)*float64(jitter))
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}
