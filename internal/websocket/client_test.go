// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// setupRelayServer serves hub connections over a real WebSocket listener.
func setupRelayServer(t *testing.T, hub *Hub, cfg ClientConfig) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		client := NewClient(hub, conn, cfg)
		if err := client.Serve(r.Context(), ConnInfo{RemoteAddr: r.RemoteAddr, UserAgent: r.UserAgent()}); err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// dialWebSocket establishes a WebSocket connection to the test server
func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("invalid JSON %q: %v", raw, err)
	}
	return msg
}

func writeText(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		if msg := readJSON(t, conn); msg["type"] == msgType {
			return msg
		}
	}
	t.Fatalf("no %s message received", msgType)
	return nil
}

func TestClient_SendErrors(t *testing.T) {
	client := NewClient(NewHub(testHubConfig(nil)), nil, ClientConfig{SendBufferSize: 1})

	if err := client.Send([]byte("one")); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	if err := client.Send([]byte("two")); !errors.Is(err, ErrSendBufferFull) {
		t.Errorf("Send() on full buffer = %v, want ErrSendBufferFull", err)
	}

	client.Close()
	client.Close()
	if err := client.Send([]byte("three")); !errors.Is(err, ErrPeerClosed) {
		t.Errorf("Send() after Close = %v, want ErrPeerClosed", err)
	}
}

func TestClient_ReadTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
		want time.Duration
	}{
		{"observational", ClientConfig{PingInterval: 30 * time.Second}, 0},
		{"pings disabled", ClientConfig{MaxMissed: 2}, 0},
		{"enforced", ClientConfig{PingInterval: 30 * time.Second, MaxMissed: 2}, 90 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{cfg: tt.cfg}
			if got := c.readTimeout(); got != tt.want {
				t.Errorf("readTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_ProducerToConsumer(t *testing.T) {
	hub := startHub(t, testHubConfig(nil))
	server := setupRelayServer(t, hub, DefaultClientConfig())

	consumer := dialWebSocket(t, server)
	if msg := readJSON(t, consumer); msg["type"] != TypeWelcome {
		t.Fatalf("expected welcome, got %v", msg)
	}
	writeText(t, consumer, `{"type":"connection","device":"dashboard"}`)

	producer := dialWebSocket(t, server)
	readJSON(t, producer)
	writeText(t, producer, `{"type":"connection","device":"Arduino Sensor Array","version":"3.2"}`)
	writeText(t, producer, `{"type":"sensor_data","temperature":24.5,"rgb_color":{"r":10,"g":20,"b":30}}`)

	msg := readUntil(t, consumer, TypeSensorData)
	if msg["temperature"] != 24.5 {
		t.Errorf("temperature = %v", msg["temperature"])
	}
	if rgb, _ := msg["rgb_color"].(map[string]any); rgb["g"] != 20.0 {
		t.Errorf("rgb_color = %v", msg["rgb_color"])
	}

	writeText(t, consumer, `{"type":"command","command":"buzzer_off","device":"buzzer"}`)
	if cmd := readUntil(t, producer, TypeCommand); cmd["command"] != "buzzer_off" {
		t.Errorf("command = %v", cmd)
	}
	if ack := readUntil(t, consumer, TypeCommandSent); ack["sentTo"] != 1.0 {
		t.Errorf("command_sent = %v", ack)
	}
}

func TestClient_MalformedFrameKeepsConnection(t *testing.T) {
	hub := startHub(t, testHubConfig(nil))
	server := setupRelayServer(t, hub, DefaultClientConfig())

	conn := dialWebSocket(t, server)
	readJSON(t, conn)

	writeText(t, conn, `{"type":`)
	msg := readJSON(t, conn)
	if msg["type"] != TypeError || msg["message"] != ErrorInvalidJSON {
		t.Errorf("expected invalid JSON error, got %v", msg)
	}

	writeText(t, conn, `{"type":"ping"}`)
	if msg := readJSON(t, conn); msg["type"] != TypePong {
		t.Errorf("expected pong after error, got %v", msg)
	}
}

func TestClient_RateLimit(t *testing.T) {
	hub := startHub(t, testHubConfig(nil))
	cfg := DefaultClientConfig()
	cfg.MessagesPerSecond = 0.01
	cfg.Burst = 1
	server := setupRelayServer(t, hub, cfg)

	conn := dialWebSocket(t, server)
	readJSON(t, conn)

	writeText(t, conn, `{"type":"ping"}`)
	if msg := readJSON(t, conn); msg["type"] != TypePong {
		t.Fatalf("expected pong, got %v", msg)
	}

	writeText(t, conn, `{"type":"ping"}`)
	msg := readJSON(t, conn)
	if msg["type"] != TypeError || msg["message"] != ErrorRateLimited {
		t.Errorf("expected rate limit error, got %v", msg)
	}
}

func TestClient_PingInterval(t *testing.T) {
	hub := startHub(t, testHubConfig(nil))
	cfg := DefaultClientConfig()
	cfg.PingInterval = 20 * time.Millisecond
	server := setupRelayServer(t, hub, cfg)

	conn := dialWebSocket(t, server)
	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(appData string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("no ping received")
	}
}

func TestClient_CloseUnregisters(t *testing.T) {
	hub := startHub(t, testHubConfig(nil))
	server := setupRelayServer(t, hub, DefaultClientConfig())

	conn := dialWebSocket(t, server)
	readJSON(t, conn)
	if hub.GetClientCount() != 1 {
		t.Fatalf("GetClientCount() = %d, want 1", hub.GetClientCount())
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client still registered after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
