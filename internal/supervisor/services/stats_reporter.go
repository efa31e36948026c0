// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package services

import (
	"context"
	"time"

	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/websocket"
)

// StatusSource is satisfied by *websocket.Hub.
type StatusSource interface {
	Status(ctx context.Context) (websocket.ServerStatus, error)
}

// statusTimeout bounds a single snapshot request.
const statusTimeout = 5 * time.Second

// StatsReporterService logs a relay statistics summary every interval.
type StatsReporterService struct {
	source   StatusSource
	interval time.Duration
	name     string
}

// NewStatsReporterService creates the reporter. Callers skip adding it to the
// tree when interval is 0.
func NewStatsReporterService(source StatusSource, interval time.Duration) *StatsReporterService {
	return &StatsReporterService{
		source:   source,
		interval: interval,
		name:     "stats-reporter",
	}
}

// Serve implements suture.Service.
func (s *StatsReporterService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.report(ctx)
		}
	}
}

// report logs one snapshot. A stopped hub is skipped; the supervisor restarts it.
func (s *StatsReporterService) report(ctx context.Context) {
	snapCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	status, err := s.source.Status(snapCtx)
	if err != nil {
		logging.Debug().Err(err).Msg("stats snapshot unavailable")
		return
	}

	logging.Info().
		Str("component", s.name).
		Dur("uptime", time.Duration(status.Uptime)*time.Millisecond).
		Uint64("messages_received", status.Stats.MessagesReceived).
		Uint64("messages_sent", status.Stats.MessagesSent).
		Uint64("readings_accepted", status.Stats.ReadingsAccepted).
		Uint64("send_failures", status.Stats.SendFailures).
		Uint64("connections_total", status.Stats.ConnectionsTotal).
		Int("connections_current", status.Connections.Total).
		Int("producers", status.Connections.Producers).
		Int("consumers", status.Connections.Consumers).
		Bool("has_reading", status.LatestSensorData != nil).
		Msg("relay statistics")
}

// String implements fmt.Stringer for suture logging.
func (s *StatsReporterService) String() string {
	return s.name
}
