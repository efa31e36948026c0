// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/homerelay/internal/models"
)

// Inbound frame types.
const (
	TypeConnection = "connection"
	TypeSensorData = "sensor_data"
	TypeCommand    = "command"
	TypePing       = "ping"
	TypeGetStatus  = "get_status"
)

// Outbound message types.
const (
	TypeWelcome      = "welcome"
	TypeCommandSent  = "command_sent"
	TypePong         = "pong"
	TypeServerStatus = "server_status"
	TypeError        = "error"
)

// Error messages sent back to a peer.
const (
	ErrorInvalidJSON = "Invalid JSON format"
	ErrorRateLimited = "Rate limit exceeded"
)

// Frame is one decoded inbound message. The set of implementations is closed:
// ConnectionFrame, SensorDataFrame, CommandFrame, PingFrame, StatusFrame and
// PassthroughFrame.
type Frame interface {
	frameType() string
}

// ConnectionFrame declares the sender's role.
type ConnectionFrame struct {
	Role    string
	Device  string
	Version string
	IP      string
}

// SensorDataFrame carries one Reading; the type discriminator is already removed.
type SensorDataFrame struct {
	Reading models.Reading
}

// CommandFrame is an operator instruction for the producers. Original keeps
// the frame as received so it can be echoed in command_sent.
type CommandFrame struct {
	Command  string
	Device   string
	Original map[string]any
}

// PingFrame is an application-level liveness probe from the peer.
type PingFrame struct{}

// StatusFrame requests a server_status reply.
type StatusFrame struct{}

// PassthroughFrame holds a frame with an unknown or missing type. Raw is
// relayed byte for byte.
type PassthroughFrame struct {
	Type string
	Raw  []byte
}

func (ConnectionFrame) frameType() string    { return TypeConnection }
func (SensorDataFrame) frameType() string    { return TypeSensorData }
func (CommandFrame) frameType() string       { return TypeCommand }
func (PingFrame) frameType() string          { return TypePing }
func (StatusFrame) frameType() string        { return TypeGetStatus }
func (f PassthroughFrame) frameType() string { return f.Type }

// DecodeFrame parses raw into a Frame. The only error is a payload that is not
// a JSON object; it wraps models.ErrMalformedPayload.
func DecodeFrame(raw []byte) (Frame, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedPayload, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", models.ErrMalformedPayload)
	}

	frameType, _ := fields["type"].(string)
	switch frameType {
	case TypeConnection:
		return ConnectionFrame{
			Role:    text(fields, "role"),
			Device:  text(fields, "device"),
			Version: text(fields, "version"),
			IP:      text(fields, "ip"),
		}, nil
	case TypeSensorData:
		delete(fields, "type")
		return SensorDataFrame{Reading: models.Reading(fields)}, nil
	case TypeCommand:
		return CommandFrame{
			Command:  text(fields, "command"),
			Device:   text(fields, "device"),
			Original: fields,
		}, nil
	case TypePing:
		return PingFrame{}, nil
	case TypeGetStatus:
		return StatusFrame{}, nil
	default:
		return PassthroughFrame{Type: frameType, Raw: raw}, nil
	}
}

// text returns fields[key] as a string. Firmware sometimes sends numbers for
// version-like fields, so non-string scalars are formatted.
func text(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// WelcomeMessage is sent to every connection on accept. LatestSensorData is
// omitted until the first Reading has been accepted.
type WelcomeMessage struct {
	Type             string         `json:"type"`
	ClientID         ConnectionID   `json:"clientId"`
	ServerTime       string         `json:"serverTime"`
	LatestSensorData models.Reading `json:"latestSensorData,omitempty"`
}

// CommandMessage is relayed to producers.
type CommandMessage struct {
	Type string `json:"type"`
	models.Command
}

// CommandSentMessage acknowledges a command to its sender.
type CommandSentMessage struct {
	Type            string         `json:"type"`
	OriginalCommand map[string]any `json:"originalCommand"`
	SentTo          int            `json:"sentTo"`
}

// PongMessage answers a ping frame. ServerUptime is in milliseconds.
type PongMessage struct {
	Type         string `json:"type"`
	Timestamp    string `json:"timestamp"`
	ServerUptime int64  `json:"serverUptime"`
}

// ConnectionCounts partitions open connections by role.
type ConnectionCounts struct {
	Total     int `json:"total"`
	Producers int `json:"producers"`
	Consumers int `json:"consumers"`
	Unknown   int `json:"unknown"`
}

// ServerStatus answers get_status and GET /api/v1/status. Uptime is in milliseconds.
type ServerStatus struct {
	Type             string           `json:"type"`
	Uptime           int64            `json:"uptime"`
	Stats            Stats            `json:"stats"`
	Connections      ConnectionCounts `json:"connections"`
	LatestSensorData models.Reading   `json:"latestSensorData,omitempty"`
}

// ErrorMessage reports a rejected frame to its sender.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// sensorDataMessage flattens a Reading next to the type discriminator.
func sensorDataMessage(r models.Reading) map[string]any {
	out := make(map[string]any, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out["type"] = TypeSensorData
	return out
}

// MarshalMessage encodes an outbound message.
func MarshalMessage(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(models.TimestampLayout)
}
