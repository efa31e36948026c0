// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/metrics"
)

const writeWait = 10 * time.Second

var (
	// ErrSendBufferFull is returned by Send when the peer is not draining its queue.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrPeerClosed is returned by Send after Close.
	ErrPeerClosed = errors.New("peer closed")
)

// ClientConfig holds per-connection transport limits.
type ClientConfig struct {
	SendBufferSize int
	MaxMessageSize int64

	// PingInterval of 0 disables pings.
	PingInterval time.Duration

	// MaxMissed > 0 disconnects a peer that stays silent for
	// PingInterval*(MaxMissed+1). 0 keeps liveness observational.
	MaxMissed int

	// MessagesPerSecond of 0 disables inbound rate limiting.
	MessagesPerSecond float64
	Burst             int
}

// DefaultClientConfig returns the limits used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBufferSize: 256,
		MaxMessageSize: 512 * 1024,
		PingInterval:   30 * time.Second,
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id      ConnectionID
	hub     *Hub
	conn    *websocket.Conn
	cfg     ClientConfig
	limiter *rate.Limiter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a Client with a fresh connection id.
func NewClient(hub *Hub, conn *websocket.Conn, cfg ClientConfig) *Client {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = DefaultClientConfig().SendBufferSize
	}
	c := &Client{
		id:   NewConnectionID(),
		hub:  hub,
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBufferSize),
		done: make(chan struct{}),
	}
	if cfg.MessagesPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MessagesPerSecond), burst)
	}
	return c
}

// ID returns the connection id.
func (c *Client) ID() ConnectionID {
	return c.id
}

// Send queues msg without blocking.
func (c *Client) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrPeerClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrPeerClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops the write pump, which sends a close frame. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Serve registers the client with the hub and starts its pumps.
// The connection is closed if registration fails.
func (c *Client) Serve(ctx context.Context, info ConnInfo) error {
	if err := c.hub.Connect(ctx, c, info); err != nil {
		_ = c.conn.Close() // best-effort cleanup
		return err
	}
	c.Start()
	return nil
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readTimeout returns 0 when liveness is observational.
func (c *Client) readTimeout() time.Duration {
	if c.cfg.MaxMissed <= 0 || c.cfg.PingInterval <= 0 {
		return 0
	}
	return c.cfg.PingInterval * time.Duration(c.cfg.MaxMissed+1)
}

func (c *Client) extendDeadline(timeout time.Duration) error {
	if timeout == 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(timeout))
}

// readPump pumps frames from the websocket connection to the hub in order.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.id)
		c.Close()
		_ = c.conn.Close() // best-effort cleanup
	}()

	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}

	timeout := c.readTimeout()
	if err := c.extendDeadline(timeout); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		c.hub.Touch(c.id)
		return c.extendDeadline(timeout)
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("client_id", string(c.id)).Msg("unexpected websocket close error")
			}
			return
		}
		if err := c.extendDeadline(timeout); err != nil {
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			metrics.RateLimitedFrames.Inc()
			c.rejectRateLimited()
			continue
		}

		if err := c.hub.Deliver(c.id, raw); err != nil {
			return
		}
	}
}

func (c *Client) rejectRateLimited() {
	payload, err := MarshalMessage(ErrorMessage{Type: TypeError, Message: ErrorRateLimited})
	if err != nil {
		return
	}
	if err := c.Send(payload); err != nil {
		logging.Debug().Err(err).Str("client_id", string(c.id)).Msg("failed to send rate limit error")
	}
}

// writePump pumps queued messages to the websocket connection and sends
// periodic pings.
func (c *Client) writePump() {
	var tick <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		_ = c.conn.Close() // best-effort cleanup
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Debug().Err(err).Str("client_id", string(c.id)).Msg("failed to write message")
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-tick:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
