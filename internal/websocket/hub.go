// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/metrics"
	"github.com/tomtom215/homerelay/internal/models"
)

// ErrHubStopped is returned once the hub has shut down.
var ErrHubStopped = errors.New("websocket hub stopped")

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline means the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Recorder receives every accepted Reading. Log must not block.
type Recorder interface {
	Log(models.Reading)
}

// HubConfig configures role resolution and ingest defaults.
type HubConfig struct {
	// DefaultDeviceID is applied to HTTP readings without a device_id.
	DefaultDeviceID string

	// ProducerDevices are connection-frame device names that mark a producer.
	ProducerDevices []string

	// Recorder may be nil.
	Recorder Recorder
}

// Stats are the cumulative counters reported by get_status and the stats reporter.
type Stats struct {
	StartTime          time.Time `json:"startTime"`
	MessagesReceived   uint64    `json:"messagesReceived"`
	MessagesSent       uint64    `json:"messagesSent"`
	ConnectionsTotal   uint64    `json:"connectionsTotal"`
	CurrentConnections int       `json:"currentConnections"`
	ReadingsAccepted   uint64    `json:"readingsAccepted"`
	SendFailures       uint64    `json:"sendFailures"`
}

type registration struct {
	peer Peer
	info ConnInfo
}

type inboundFrame struct {
	id  ConnectionID
	raw []byte
}

type ingestResult struct {
	reading models.Reading
	err     error
}

type ingestRequest struct {
	raw   []byte
	reply chan ingestResult
}

// Hub owns the connection registry, the reading cache and the counters.
// Every mutation happens on the goroutine running RunWithContext; other
// goroutines talk to it over unbuffered channels, so frames from one
// connection are handled in the order its read pump delivered them.
type Hub struct {
	cfg      HubConfig
	producer map[string]struct{}
	now      func() time.Time

	registry *Registry
	cache    ReadingCache
	stats    Stats

	register   chan registration
	unregister chan ConnectionID
	inbound    chan inboundFrame
	touch      chan ConnectionID
	ingest     chan ingestRequest
	status     chan chan ServerStatus

	closing   chan struct{}
	closeOnce sync.Once

	running     atomic.Bool
	clientCount atomic.Int64
}

// NewHub creates a Hub. Call RunWithContext to start it.
func NewHub(cfg HubConfig) *Hub {
	producer := make(map[string]struct{}, len(cfg.ProducerDevices))
	for _, device := range cfg.ProducerDevices {
		producer[device] = struct{}{}
	}
	return &Hub{
		cfg:        cfg,
		producer:   producer,
		now:        time.Now,
		registry:   NewRegistry(),
		stats:      Stats{StartTime: time.Now()},
		register:   make(chan registration),
		unregister: make(chan ConnectionID),
		inbound:    make(chan inboundFrame),
		touch:      make(chan ConnectionID),
		ingest:     make(chan ingestRequest),
		status:     make(chan chan ServerStatus),
		closing:    make(chan struct{}),
	}
}

// RunWithContext processes hub events until ctx is canceled, then closes
// every connection and returns ctx.Err(). It is designed for suture supervision.
//
// DETERMINISM: events are taken by priority:
//   - Priority 1: context cancellation
//   - Priority 2: connection lifecycle (register/unregister)
//   - Priority 3: frames, liveness, ingest and status requests
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		// Priority 1: shutdown
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle
		select {
		case reg := <-h.register:
			h.handleRegister(reg)
			continue
		case id := <-h.unregister:
			h.handleUnregister(id)
			continue
		default:
		}

		// Priority 3: everything else
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case reg := <-h.register:
			h.handleRegister(reg)
		case id := <-h.unregister:
			h.handleUnregister(id)
		case frame := <-h.inbound:
			h.handleFrame(frame)
		case id := <-h.touch:
			h.registry.Touch(id, h.now())
			metrics.LivenessSignals.Inc()
		case req := <-h.ingest:
			h.handleIngest(req)
		case reply := <-h.status:
			reply <- h.buildStatus()
		}
	}
}

// Connect registers peer and sends it a welcome message.
func (h *Hub) Connect(ctx context.Context, peer Peer, info ConnInfo) error {
	select {
	case h.register <- registration{peer: peer, info: info}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.closing:
		return ErrHubStopped
	}
}

// Disconnect removes id from the registry and closes its peer.
func (h *Hub) Disconnect(id ConnectionID) {
	select {
	case h.unregister <- id:
	case <-h.closing:
	}
}

// Deliver hands one inbound frame from id to the hub.
func (h *Hub) Deliver(id ConnectionID, raw []byte) error {
	select {
	case h.inbound <- inboundFrame{id: id, raw: raw}:
		return nil
	case <-h.closing:
		return ErrHubStopped
	}
}

// Touch records a liveness reply from id.
func (h *Hub) Touch(id ConnectionID) {
	select {
	case h.touch <- id:
	case <-h.closing:
	}
}

// Ingest accepts an HTTP reading. It waits until the hub has cached, logged
// and broadcast the reading, or until ctx is done.
func (h *Hub) Ingest(ctx context.Context, raw []byte) (models.Reading, error) {
	req := ingestRequest{raw: raw, reply: make(chan ingestResult, 1)}
	select {
	case h.ingest <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.closing:
		return nil, ErrHubStopped
	}

	select {
	case res := <-req.reply:
		return res.reading, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns a server_status snapshot.
func (h *Hub) Status(ctx context.Context) (ServerStatus, error) {
	reply := make(chan ServerStatus, 1)
	select {
	case h.status <- reply:
	case <-ctx.Done():
		return ServerStatus{}, ctx.Err()
	case <-h.closing:
		return ServerStatus{}, ErrHubStopped
	}

	select {
	case status := <-reply:
		return status, nil
	case <-ctx.Done():
		return ServerStatus{}, ctx.Err()
	}
}

// IsRunning reports whether RunWithContext is active.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// GetClientCount returns the number of open connections.
func (h *Hub) GetClientCount() int {
	return int(h.clientCount.Load())
}

func (h *Hub) handleRegister(reg registration) {
	now := h.now()
	id := h.registry.Accept(reg.peer, reg.info, now)
	h.stats.ConnectionsTotal++
	metrics.ConnectionsTotal.Inc()
	h.publishCounts()

	logging.Info().
		Str("client_id", string(id)).
		Str("remote_addr", reg.info.RemoteAddr).
		Int("total_clients", h.registry.Len()).
		Msg("websocket client connected")

	conn, _ := h.registry.Get(id)
	welcome := WelcomeMessage{
		Type:       TypeWelcome,
		ClientID:   id,
		ServerTime: formatTime(now),
	}
	if current, ok := h.cache.Current(); ok {
		welcome.LatestSensorData = current
	}
	h.sendMessage(conn, welcome, metrics.KindDirect)
}

func (h *Hub) handleUnregister(id ConnectionID) {
	conn, ok := h.registry.Remove(id)
	if !ok {
		return
	}
	conn.Peer.Close()
	h.publishCounts()

	logging.Info().
		Str("client_id", string(id)).
		Str("role", string(conn.Role)).
		Int("total_clients", h.registry.Len()).
		Msg("websocket client disconnected")
}

func (h *Hub) handleFrame(in inboundFrame) {
	conn, ok := h.registry.Get(in.id)
	if !ok {
		return
	}
	h.stats.MessagesReceived++
	metrics.MessagesReceived.Inc()

	frame, err := DecodeFrame(in.raw)
	if err != nil {
		metrics.IngestErrors.WithLabelValues(metrics.SourceWebSocket).Inc()
		logging.Warn().Err(err).Str("client_id", string(conn.ID)).Msg("rejected malformed frame")
		h.sendMessage(conn, ErrorMessage{Type: TypeError, Message: ErrorInvalidJSON}, metrics.KindDirect)
		return
	}

	switch f := frame.(type) {
	case ConnectionFrame:
		h.handleConnection(conn, f)
	case SensorDataFrame:
		reading := f.Reading.WithDefaults(string(conn.ID), h.now())
		h.cache.Store(reading)
		h.publishReading(reading, metrics.SourceWebSocket)
	case CommandFrame:
		h.handleCommand(conn, f)
	case PingFrame:
		now := h.now()
		h.registry.Touch(conn.ID, now)
		metrics.LivenessSignals.Inc()
		h.sendMessage(conn, PongMessage{
			Type:         TypePong,
			Timestamp:    formatTime(now),
			ServerUptime: now.Sub(h.stats.StartTime).Milliseconds(),
		}, metrics.KindDirect)
	case StatusFrame:
		h.sendMessage(conn, h.buildStatus(), metrics.KindDirect)
	case PassthroughFrame:
		logging.Debug().
			Str("client_id", string(conn.ID)).
			Str("type", f.Type).
			Msg("relaying unknown frame type")
		h.relayPassthrough(conn.ID, f.Raw)
	default:
		logging.Error().Str("type", frame.frameType()).Msg("unhandled frame variant")
	}
}

func (h *Hub) handleConnection(conn *Connection, f ConnectionFrame) {
	role := h.resolveRole(f)
	metadata := map[string]string{}
	for k, v := range map[string]string{"device": f.Device, "version": f.Version, "ip": f.IP} {
		if v != "" {
			metadata[k] = v
		}
	}

	if !h.registry.DeclareRole(conn.ID, role, metadata) {
		logging.Debug().
			Str("client_id", string(conn.ID)).
			Str("role", string(conn.Role)).
			Msg("ignoring repeated role declaration")
		return
	}
	metrics.RoleDeclarations.WithLabelValues(string(role)).Inc()
	h.publishCounts()

	logging.Info().
		Str("client_id", string(conn.ID)).
		Str("role", string(role)).
		Str("device", f.Device).
		Str("version", f.Version).
		Msg("websocket client classified")

	if role == RoleConsumer {
		h.welcomeConsumer(conn)
	}
}

// resolveRole: an explicit role wins, then a known producer device name,
// otherwise consumer.
func (h *Hub) resolveRole(f ConnectionFrame) Role {
	switch Role(f.Role) {
	case RoleProducer:
		return RoleProducer
	case RoleConsumer:
		return RoleConsumer
	}
	if _, ok := h.producer[f.Device]; ok {
		return RoleProducer
	}
	return RoleConsumer
}

func (h *Hub) handleCommand(conn *Connection, f CommandFrame) {
	cmd := models.Command{
		Command:   f.Command,
		Device:    f.Device,
		Timestamp: formatTime(h.now()),
	}
	sentTo := h.relayCommand(cmd)

	logging.Info().
		Str("client_id", string(conn.ID)).
		Str("command", cmd.Command).
		Str("device", cmd.Device).
		Int("sent_to", sentTo).
		Msg("command relayed")

	h.sendMessage(conn, CommandSentMessage{
		Type:            TypeCommandSent,
		OriginalCommand: f.Original,
		SentTo:          sentTo,
	}, metrics.KindDirect)
}

func (h *Hub) handleIngest(req ingestRequest) {
	reading, err := h.cache.Ingest(req.raw, h.cfg.DefaultDeviceID, h.now())
	if err != nil {
		metrics.IngestErrors.WithLabelValues(metrics.SourceHTTP).Inc()
		req.reply <- ingestResult{err: err}
		return
	}
	h.publishReading(reading, metrics.SourceHTTP)
	req.reply <- ingestResult{reading: reading}
}

// publishReading logs and broadcasts a Reading that is already cached.
func (h *Hub) publishReading(reading models.Reading, source string) {
	h.stats.ReadingsAccepted++
	metrics.ReadingsIngested.WithLabelValues(source).Inc()

	if h.cfg.Recorder != nil {
		h.cfg.Recorder.Log(reading)
	}
	delivered := h.broadcastReading(reading)

	logging.Debug().
		Str("source", source).
		Str("device_id", reading.DeviceID()).
		Int("delivered", delivered).
		Msg("reading accepted")
}

func (h *Hub) buildStatus() ServerStatus {
	now := h.now()
	stats := h.stats
	stats.CurrentConnections = h.registry.Len()

	status := ServerStatus{
		Type:        TypeServerStatus,
		Uptime:      now.Sub(h.stats.StartTime).Milliseconds(),
		Stats:       stats,
		Connections: h.registry.Counts(),
	}
	if current, ok := h.cache.Current(); ok {
		status.LatestSensorData = current
	}
	return status
}

func (h *Hub) publishCounts() {
	counts := h.registry.Counts()
	h.clientCount.Store(int64(counts.Total))
	metrics.SetConnectionGauges(counts.Unknown, counts.Producers, counts.Consumers)
}

// logGracefulShutdown closes every client and logs the shutdown.
// ctx.Err() is not logged as an error since cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	h.closeOnce.Do(func() { close(h.closing) })

	clientCount := h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes connections in accept order and empties the registry.
func (h *Hub) closeAllClients() int {
	conns := h.registry.Clear()
	for _, conn := range conns {
		conn.Peer.Close()
	}
	h.publishCounts()
	return len(conns)
}
