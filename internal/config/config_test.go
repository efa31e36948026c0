// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearRelayEnv unsets every mapped variable for the duration of the test.
func clearRelayEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, "")
	for name := range envMappings {
		t.Setenv(strings.ToUpper(name), "")
		os.Unsetenv(strings.ToUpper(name))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Ingest.DefaultDeviceID != "arduino_advanced_001" {
		t.Errorf("Ingest.DefaultDeviceID = %q", cfg.Ingest.DefaultDeviceID)
	}
	if len(cfg.Ingest.ProducerDevices) != 1 || cfg.Ingest.ProducerDevices[0] != DefaultProducerDevice {
		t.Errorf("Ingest.ProducerDevices = %v", cfg.Ingest.ProducerDevices)
	}
	if cfg.ReadingLog.Path != "sensor_data.log" {
		t.Errorf("ReadingLog.Path = %q", cfg.ReadingLog.Path)
	}
	if cfg.Liveness.Interval != 30*time.Second {
		t.Errorf("Liveness.Interval = %v, want 30s", cfg.Liveness.Interval)
	}
	if cfg.Liveness.MaxMissed != 0 {
		t.Errorf("Liveness.MaxMissed = %d, want 0", cfg.Liveness.MaxMissed)
	}
	if cfg.Stats.ReportInterval != 5*time.Minute {
		t.Errorf("Stats.ReportInterval = %v, want 5m", cfg.Stats.ReportInterval)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PORT", "server.port"},
		{"HTTP_PORT", "server.port"},
		{"LOG_FILE", "reading_log.path"},
		{"LOG_LEVEL", "logging.level"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"PRODUCER_DEVICES", "ingest.producer_devices"},
		{"LIVENESS_MAX_MISS", "liveness.max_missed"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	t.Run("no config file exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})

	t.Run("CONFIG_PATH takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "relay.yaml")
		if err := os.WriteFile(customPath, []byte("server:\n  port: 4000\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Setenv(ConfigPathEnvVar, customPath)

		if got := findConfigFile(); got != customPath {
			t.Errorf("findConfigFile() = %q, want %q", got, customPath)
		}
	})

	t.Run("missing CONFIG_PATH falls back to defaults", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	clearRelayEnv(t)
	t.Chdir(t.TempDir())

	t.Setenv("PORT", "8080")
	t.Setenv("LOG_FILE", "/var/lib/homerelay/readings.log")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("LIVENESS_INTERVAL", "10s")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.ReadingLog.Path != "/var/lib/homerelay/readings.log" {
		t.Errorf("ReadingLog.Path = %q", cfg.ReadingLog.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "http://b.local" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Liveness.Interval != 10*time.Second {
		t.Errorf("Liveness.Interval = %v, want 10s", cfg.Liveness.Interval)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	clearRelayEnv(t)
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	content := `
server:
  port: 8888
  host: "127.0.0.1"
ingest:
  producer_devices:
    - "Arduino Sensor Array"
    - "ESP32 Weather Node"
liveness:
  interval: 15s
  max_missed: 3
logging:
  level: warn
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "127.0.0.1:8888" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if len(cfg.Ingest.ProducerDevices) != 2 {
		t.Errorf("Ingest.ProducerDevices = %v", cfg.Ingest.ProducerDevices)
	}
	if cfg.Liveness.MaxMissed != 3 {
		t.Errorf("Liveness.MaxMissed = %d, want 3", cfg.Liveness.MaxMissed)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.ReadingLog.Path != "sensor_data.log" {
		t.Errorf("ReadingLog.Path = %q, want default", cfg.ReadingLog.Path)
	}

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("PORT", "9999")
		cfg, err := LoadWithKoanf()
		if err != nil {
			t.Fatalf("LoadWithKoanf() error = %v", err)
		}
		if cfg.Server.Port != 9999 {
			t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
		}
	})
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "port out of range",
			env:     map[string]string{"PORT": "70000"},
			wantErr: "Server.Port",
		},
		{
			name:    "unknown log level",
			env:     map[string]string{"LOG_LEVEL": "verbose"},
			wantErr: "Logging.Level",
		},
		{
			name:    "negative liveness",
			env:     map[string]string{"LIVENESS_MAX_MISS": "-1"},
			wantErr: "Liveness.MaxMissed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearRelayEnv(t)
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestAllowsOrigin(t *testing.T) {
	cfg := defaultConfig()
	if !cfg.AllowsOrigin("http://anything.local") {
		t.Error("wildcard should allow any origin")
	}

	cfg.Security.CORSOrigins = []string{"http://dashboard.local"}
	if !cfg.AllowsOrigin("http://dashboard.local") {
		t.Error("listed origin should be allowed")
	}
	if cfg.AllowsOrigin("http://evil.local") {
		t.Error("unlisted origin should be rejected")
	}
}
