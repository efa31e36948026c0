// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

// Command simulator stands in for the Arduino sensor array. It dials the relay
// over WebSocket, declares itself a producer and streams random-walk readings.
//
//	simulator -url ws://localhost:3000/ws -interval 2s -jitter 500ms
//	simulator -replay sensor_data.log -interval 100ms
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/homerelay/internal/config"
	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/models"
	"github.com/tomtom215/homerelay/internal/readinglog"
	ws "github.com/tomtom215/homerelay/internal/websocket"
)

// options are the command-line flags.
type options struct {
	URL      string
	Interval time.Duration
	Jitter   time.Duration
	Count    int
	Seed     uint64
	DeviceID string
	Device   string
	Replay   string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.StringVar(&opts.URL, "url", "ws://localhost:3000/ws", "relay WebSocket URL")
	fs.DurationVar(&opts.Interval, "interval", 2*time.Second, "time between readings")
	fs.DurationVar(&opts.Jitter, "jitter", 0, "random +/- offset applied to each interval")
	fs.IntVar(&opts.Count, "count", 0, "readings to send before exiting (0 = forever)")
	fs.Uint64Var(&opts.Seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	fs.StringVar(&opts.DeviceID, "device-id", "arduino_advanced_001", "device_id stamped on readings")
	fs.StringVar(&opts.Device, "device", config.DefaultProducerDevice, "device name sent in the connection frame")
	fs.StringVar(&opts.Replay, "replay", "", "reading log (JSON Lines) to replay instead of random readings")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.Interval <= 0 {
		return options{}, fmt.Errorf("interval must be positive, got %v", opts.Interval)
	}
	if opts.Count < 0 {
		return options{}, fmt.Errorf("count must not be negative, got %d", opts.Count)
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logging.Init(logging.Config{Level: "info", Format: "console", Timestamp: true, Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("simulator stopped")
		os.Exit(1)
	}
}

// run connects, announces the producer and streams readings until ctx is
// done, Count readings have been sent, or the relay closes the connection.
func run(ctx context.Context, opts options) error {
	sensors := newSensorArray(opts.DeviceID, opts.Seed)
	next, err := readingSource(opts, sensors)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	defer conn.Close()

	logging.Info().Str("url", opts.URL).Str("device", opts.Device).Msg("connected to relay")

	if err := writeJSON(conn, map[string]string{
		"type":    ws.TypeConnection,
		"device":  opts.Device,
		"version": "1.0",
	}); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go func() { readErr <- readLoop(conn) }()

	timer := time.NewTimer(0)
	defer timer.Stop()

	sent := 0
	for opts.Count == 0 || sent < opts.Count {
		select {
		case <-ctx.Done():
			closeGracefully(conn)
			return ctx.Err()
		case err := <-readErr:
			return err
		case now := <-timer.C:
			reading, ok := next(now)
			if !ok {
				logging.Info().Int("count", sent).Msg("replay finished")
				closeGracefully(conn)
				return nil
			}
			frame := make(map[string]any, len(reading)+1)
			for k, v := range reading {
				frame[k] = v
			}
			frame["type"] = ws.TypeSensorData
			if err := writeJSON(conn, frame); err != nil {
				return err
			}
			sent++
			logging.Debug().Int("sent", sent).Interface("temperature", reading[models.FieldTemperature]).Msg("reading sent")
			timer.Reset(sensors.jittered(opts.Interval, opts.Jitter))
		}
	}

	logging.Info().Int("count", sent).Msg("all readings sent")
	closeGracefully(conn)
	return nil
}

// readingSource returns the generator for opts: recorded readings when
// Replay is set, otherwise the random-walk sensor array.
func readingSource(opts options, sensors *sensorArray) (func(time.Time) (models.Reading, bool), error) {
	if opts.Replay == "" {
		return func(now time.Time) (models.Reading, bool) {
			return sensors.next(now), true
		}, nil
	}

	f, err := os.Open(opts.Replay)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	records, err := readinglog.ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("read replay file %s: %w", opts.Replay, err)
	}
	logging.Info().Str("path", opts.Replay).Int("records", len(records)).Msg("replaying reading log")

	i := 0
	return func(time.Time) (models.Reading, bool) {
		if i >= len(records) {
			return nil, false
		}
		r := records[i]
		i++
		return r, true
	}, nil
}

// readLoop logs commands and status replies until the connection fails.
func readLoop(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			logging.Warn().Err(err).Msg("unreadable message from relay")
			continue
		}

		switch msg["type"] {
		case ws.TypeCommand:
			logging.Info().
				Any("command", msg["command"]).
				Any("device", msg["device"]).
				Msg("command received")
		case ws.TypeWelcome:
			logging.Info().Interface("client_id", msg["clientId"]).Msg("welcome received")
		case ws.TypeError:
			logging.Warn().Interface("message", msg["message"]).Msg("relay reported an error")
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func closeGracefully(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
