// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"errors"
	"testing"

	"github.com/tomtom215/homerelay/internal/models"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, f Frame)
	}{
		{
			name: "connection",
			raw:  `{"type":"connection","device":"Arduino Sensor Array","version":2.1,"ip":"192.168.1.40"}`,
			check: func(t *testing.T, f Frame) {
				cf, ok := f.(ConnectionFrame)
				if !ok {
					t.Fatalf("got %T", f)
				}
				if cf.Device != "Arduino Sensor Array" || cf.Version != "2.1" || cf.IP != "192.168.1.40" {
					t.Errorf("ConnectionFrame = %+v", cf)
				}
			},
		},
		{
			name: "sensor data",
			raw:  `{"type":"sensor_data","temperature":22,"motion":false}`,
			check: func(t *testing.T, f Frame) {
				sf, ok := f.(SensorDataFrame)
				if !ok {
					t.Fatalf("got %T", f)
				}
				if sf.Reading.Has("type") {
					t.Error("type must be stripped from the reading")
				}
				if v, _ := sf.Reading.Temperature(); v != 22 {
					t.Errorf("Temperature() = %v", v)
				}
			},
		},
		{
			name: "command",
			raw:  `{"type":"command","command":"led_on","device":"led"}`,
			check: func(t *testing.T, f Frame) {
				cf, ok := f.(CommandFrame)
				if !ok {
					t.Fatalf("got %T", f)
				}
				if cf.Command != "led_on" || cf.Device != "led" || cf.Original["type"] != TypeCommand {
					t.Errorf("CommandFrame = %+v", cf)
				}
			},
		},
		{
			name: "ping",
			raw:  `{"type":"ping"}`,
			check: func(t *testing.T, f Frame) {
				if _, ok := f.(PingFrame); !ok {
					t.Fatalf("got %T", f)
				}
			},
		},
		{
			name: "get_status",
			raw:  `{"type":"get_status"}`,
			check: func(t *testing.T, f Frame) {
				if _, ok := f.(StatusFrame); !ok {
					t.Fatalf("got %T", f)
				}
			},
		},
		{
			name: "unknown type passes through verbatim",
			raw:  `{"type":"voice_note","text":"hi"}`,
			check: func(t *testing.T, f Frame) {
				pf, ok := f.(PassthroughFrame)
				if !ok {
					t.Fatalf("got %T", f)
				}
				if pf.Type != "voice_note" || string(pf.Raw) != `{"type":"voice_note","text":"hi"}` {
					t.Errorf("PassthroughFrame = %+v", pf)
				}
			},
		},
		{
			name: "missing type passes through",
			raw:  `{"hello":"world"}`,
			check: func(t *testing.T, f Frame) {
				if _, ok := f.(PassthroughFrame); !ok {
					t.Fatalf("got %T", f)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeFrame([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			tt.check(t, f)
		})
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	for _, raw := range []string{`{"type":"sensor_data",`, `[1,2]`, `"text"`, `null`, ``} {
		if _, err := DecodeFrame([]byte(raw)); !errors.Is(err, models.ErrMalformedPayload) {
			t.Errorf("DecodeFrame(%q) error = %v, want ErrMalformedPayload", raw, err)
		}
	}
}

func TestWelcomeMessageOmitsMissingReading(t *testing.T) {
	raw, err := MarshalMessage(WelcomeMessage{Type: TypeWelcome, ClientID: "client_1", ServerTime: "now"})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	if got := string(raw); got != `{"type":"welcome","clientId":"client_1","serverTime":"now"}` {
		t.Errorf("welcome = %s", got)
	}
}
