// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"fmt"

	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/metrics"
	"github.com/tomtom215/homerelay/internal/models"
)

// Fan-out runs on the hub goroutine. Every send is isolated: a failing or
// panicking peer is logged and counted and the remaining peers are still
// attempted. A failed peer is not removed here; its read pump unregisters it.

// broadcastReading sends a sensor_data message to every consumer and returns
// the number of successful sends.
func (h *Hub) broadcastReading(reading models.Reading) int {
	payload, err := MarshalMessage(sensorDataMessage(reading))
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode sensor_data message")
		return 0
	}
	return h.fanout(h.registry.Consumers(), payload, metrics.KindReading)
}

// relayCommand sends cmd to every producer and returns the number of
// producers addressed.
func (h *Hub) relayCommand(cmd models.Command) int {
	payload, err := MarshalMessage(CommandMessage{Type: TypeCommand, Command: cmd})
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode command message")
		return 0
	}
	producers := h.registry.Producers()
	h.fanout(producers, payload, metrics.KindCommand)
	metrics.CommandsRelayed.Inc()
	return len(producers)
}

// welcomeConsumer sends the cached Reading to a newly classified consumer.
// Nothing is sent before the first Reading.
func (h *Hub) welcomeConsumer(conn *Connection) {
	current, ok := h.cache.Current()
	if !ok {
		return
	}
	h.sendMessage(conn, sensorDataMessage(current), metrics.KindReading)
}

// relayPassthrough forwards raw to every open connection except sender.
func (h *Hub) relayPassthrough(sender ConnectionID, raw []byte) int {
	targets := make([]*Connection, 0, h.registry.Len())
	for _, conn := range h.registry.All() {
		if conn.ID != sender {
			targets = append(targets, conn)
		}
	}
	return h.fanout(targets, raw, metrics.KindPassthrough)
}

func (h *Hub) fanout(conns []*Connection, payload []byte, kind string) int {
	delivered := 0
	for _, conn := range conns {
		if h.send(conn, payload, kind) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) sendMessage(conn *Connection, msg any, kind string) bool {
	payload, err := MarshalMessage(msg)
	if err != nil {
		logging.Error().Err(err).Str("client_id", string(conn.ID)).Msg("failed to encode message")
		return false
	}
	return h.send(conn, payload, kind)
}

func (h *Hub) send(conn *Connection, payload []byte, kind string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			h.recordSendFailure(conn, kind, fmt.Errorf("peer panicked: %v", r))
		}
	}()

	if err := conn.Peer.Send(payload); err != nil {
		h.recordSendFailure(conn, kind, err)
		return false
	}
	h.stats.MessagesSent++
	metrics.FanoutSends.WithLabelValues(kind).Inc()
	return true
}

func (h *Hub) recordSendFailure(conn *Connection, kind string, err error) {
	h.stats.SendFailures++
	metrics.FanoutFailures.WithLabelValues(kind).Inc()
	logging.Warn().
		Err(err).
		Str("client_id", string(conn.ID)).
		Str("role", string(conn.Role)).
		Str("kind", kind).
		Msg("failed to send to websocket client")
}
