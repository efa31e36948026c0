// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/homerelay/internal/logging"
	"github.com/tomtom215/homerelay/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// fakePeer records sent messages on a buffered channel.
type fakePeer struct {
	id     ConnectionID
	msgs   chan []byte
	fail   bool
	panics bool
	closed atomic.Bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: ConnectionID(id), msgs: make(chan []byte, 64)}
}

func (p *fakePeer) ID() ConnectionID { return p.id }

func (p *fakePeer) Send(msg []byte) error {
	if p.panics {
		panic("send on broken peer")
	}
	if p.fail || p.closed.Load() {
		return ErrPeerClosed
	}
	select {
	case p.msgs <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (p *fakePeer) Close() { p.closed.Store(true) }

// next waits for the next message and decodes it.
func (p *fakePeer) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case raw := <-p.msgs:
		var msg map[string]any
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("peer %s received invalid JSON %q: %v", p.id, raw, err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("peer %s: no message within 1s", p.id)
		return nil
	}
}

// nextRaw waits for the next message and returns it undecoded.
func (p *fakePeer) nextRaw(t *testing.T) []byte {
	t.Helper()
	select {
	case raw := <-p.msgs:
		return raw
	case <-time.After(time.Second):
		t.Fatalf("peer %s: no message within 1s", p.id)
		return nil
	}
}

// expectNone asserts nothing is queued. Call it after barrier.
func (p *fakePeer) expectNone(t *testing.T) {
	t.Helper()
	select {
	case raw := <-p.msgs:
		t.Fatalf("peer %s: unexpected message %s", p.id, raw)
	default:
	}
}

// recordingLog is an in-memory Recorder.
type recordingLog struct {
	mu       sync.Mutex
	readings []models.Reading
}

func (l *recordingLog) Log(r models.Reading) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readings = append(l.readings, r)
}

func (l *recordingLog) all() []models.Reading {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Reading(nil), l.readings...)
}

func testHubConfig(rec Recorder) HubConfig {
	return HubConfig{
		DefaultDeviceID: "arduino_advanced_001",
		ProducerDevices: []string{"Arduino Sensor Array"},
		Recorder:        rec,
	}
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T, cfg HubConfig) *Hub {
	t.Helper()
	hub := NewHub(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// barrier returns once the hub has processed every event sent before it.
func barrier(t *testing.T, hub *Hub) ServerStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status, err := hub.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	return status
}

// connect registers peer and consumes its welcome message.
func connect(t *testing.T, hub *Hub, peer *fakePeer) map[string]any {
	t.Helper()
	if err := hub.Connect(context.Background(), peer, ConnInfo{RemoteAddr: "127.0.0.1:5000"}); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	welcome := peer.next(t)
	if welcome["type"] != TypeWelcome {
		t.Fatalf("expected welcome, got %v", welcome)
	}
	return welcome
}

func deliver(t *testing.T, hub *Hub, peer *fakePeer, frame string) {
	t.Helper()
	if err := hub.Deliver(peer.id, []byte(frame)); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
}

// register adds peer with role directly to a hub that is not running.
func register(hub *Hub, peer *fakePeer, role Role) *Connection {
	id := hub.registry.Accept(peer, ConnInfo{}, time.Now())
	if role != RoleUnknown {
		hub.registry.DeclareRole(id, role, nil)
	}
	conn, _ := hub.registry.Get(id)
	return conn
}
