// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

// Package config loads Homerelay configuration.
//
// Loading order (koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config file: optional YAML (CONFIG_PATH, config.yaml, /etc/homerelay/config.yaml)
//  3. Environment variables: explicit mappings in envTransformFunc
//
// The result is validated with go-playground/validator struct tags before it
// is returned.
package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/homerelay/internal/validation"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Ingest     IngestConfig     `koanf:"ingest"`
	ReadingLog ReadingLogConfig `koanf:"reading_log"`
	WebSocket  WebSocketConfig  `koanf:"websocket"`
	Liveness   LivenessConfig   `koanf:"liveness"`
	Security   SecurityConfig   `koanf:"security"`
	Stats      StatsConfig      `koanf:"stats"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IngestConfig controls how readings are accepted.
type IngestConfig struct {
	// DefaultDeviceID is used for HTTP readings that carry no device_id.
	DefaultDeviceID string `koanf:"default_device_id" validate:"required"`

	// MaxBodyBytes bounds HTTP ingest bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"min=1"`

	// ProducerDevices lists `device` values in a connection frame that mark
	// the sender as a producer when it does not send an explicit role.
	ProducerDevices []string `koanf:"producer_devices" validate:"min=1,dive,required"`
}

// ReadingLogConfig configures the append-only JSONL file.
type ReadingLogConfig struct {
	Path            string        `koanf:"path" validate:"required"`
	QueueSize       int           `koanf:"queue_size" validate:"min=1"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// WebSocketConfig holds per-connection transport limits.
type WebSocketConfig struct {
	SendBufferSize int   `koanf:"send_buffer_size" validate:"min=1"`
	MaxMessageSize int64 `koanf:"max_message_size" validate:"min=1"`

	// MaxMessagesPerSecond limits inbound frames per connection; 0 disables the limit.
	MaxMessagesPerSecond float64 `koanf:"max_messages_per_second" validate:"gte=0"`
	Burst                int     `koanf:"burst" validate:"gte=0"`
}

// LivenessConfig controls the periodic ping.
type LivenessConfig struct {
	// Interval between pings; 0 disables pings.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	// MaxMissed > 0 disconnects a peer after that many silent intervals.
	// 0 keeps liveness observational.
	MaxMissed int `koanf:"max_missed" validate:"gte=0"`
}

// SecurityConfig holds CORS and HTTP rate limiting.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// StatsConfig controls the periodic statistics log line.
type StatsConfig struct {
	// ReportInterval of 0 disables the reporter.
	ReportInterval time.Duration `koanf:"report_interval" validate:"gte=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks every struct constraint.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}

// AllowsOrigin reports whether origin is permitted by the CORS list.
func (c *Config) AllowsOrigin(origin string) bool {
	for _, allowed := range c.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
