// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/homerelay/internal/config"
	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/models"
	ws "github.com/tomtom215/homerelay/internal/websocket"
)

// Handler serves the HTTP surface of the relay.
type Handler struct {
	hub       *ws.Hub
	config    *config.Config
	clientCfg ws.ClientConfig
	startTime time.Time
}

// NewHandler creates a Handler bound to hub.
func NewHandler(cfg *config.Config, hub *ws.Hub) *Handler {
	return &Handler{
		hub:       hub,
		config:    cfg,
		clientCfg: ClientConfigFrom(cfg),
		startTime: time.Now(),
	}
}

// ClientConfigFrom maps the websocket and liveness sections to per-client limits.
func ClientConfigFrom(cfg *config.Config) ws.ClientConfig {
	return ws.ClientConfig{
		SendBufferSize:    cfg.WebSocket.SendBufferSize,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		PingInterval:      cfg.Liveness.Interval,
		MaxMissed:         cfg.Liveness.MaxMissed,
		MessagesPerSecond: cfg.WebSocket.MaxMessagesPerSecond,
		Burst:             cfg.WebSocket.Burst,
	}
}

// IngestReading accepts one reading over HTTP POST.
//
// The body is a JSON object of sensor fields. Missing device_id is filled with
// the configured default device and missing timestamp with the server time.
func (h *Handler) IngestReading(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.Ingest.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondIngest(w, http.StatusRequestEntityTooLarge, "error", "Payload too large")
			return
		}
		respondIngest(w, http.StatusBadRequest, "error", msgInvalidJSON)
		return
	}

	reading, err := h.hub.Ingest(r.Context(), body)
	switch {
	case errors.Is(err, models.ErrMalformedPayload):
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Rejected malformed sensor data")
		respondIngest(w, http.StatusBadRequest, "error", msgInvalidJSON)
		return
	case err != nil:
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Relay unavailable for sensor data")
		respondIngest(w, http.StatusServiceUnavailable, "error", "Relay unavailable")
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("device_id", reading.DeviceID()).
		Msg("Sensor data received over HTTP")
	respondIngest(w, http.StatusOK, "success", msgDataReceived)
}

// WebSocket upgrades the request and hands the connection to the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, h.clientCfg)
	info := ws.ConnInfo{RemoteAddr: r.RemoteAddr, UserAgent: r.UserAgent()}
	if err := client.Serve(r.Context(), info); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).
			Str("client_id", string(client.ID())).
			Msg("WebSocket client rejected")
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin admits microcontrollers, which send no Origin, and
// browsers whose Origin is in the CORS list.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.config.AllowsOrigin(origin) {
		return true
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// Status returns the same payload a get_status frame produces.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.hub.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "HUB_UNAVAILABLE", "Relay is not running", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
