// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

/*
Package websocket relays sensor readings between producers and consumers.

Producers (Arduino-like devices) push readings over a WebSocket connection or
through the HTTP ingest endpoint. Consumers (dashboards) receive every accepted
reading and may send commands, which are relayed to every producer.

Key Components:

  - Hub: single goroutine that owns the registry, the reading cache and the counters
  - Registry: open connections partitioned by role (unknown, producer, consumer)
  - ReadingCache: the latest reading, replaced wholesale on every ingest
  - Client: one gorilla/websocket connection with read and write pumps
  - Frame: closed set of decoded inbound messages

Architecture:

	  producers            ┌──────────┐            consumers
	┌──────────┐ readings  │   Hub    │  sensor_data ┌──────────┐
	│ Client A │ ────────► │ registry │ ───────────► │ Client C │
	│ Client B │ ◄──────── │ cache    │ ◄─────────── │ Client D │
	└──────────┘  command  └────┬─────┘   command    └──────────┘
	                            │
	                      reading log

Each client has two goroutines:
  - readPump: reads frames and hands them to the hub in arrival order
  - writePump: drains the send queue and pings at the liveness interval

Inbound frame types:

  - connection: declares a role; {role?, device?, version?, ip?}
  - sensor_data: one reading; device_id defaults to the connection id
  - command: {command, device}; relayed to producers, acknowledged with command_sent
  - ping: answered with pong
  - get_status: answered with server_status
  - anything else: relayed verbatim to every other connection

A frame that is not a JSON object is answered with
{"type":"error","message":"Invalid JSON format"} and the connection stays open.

Usage Example:

	hub := websocket.NewHub(websocket.HubConfig{
	    DefaultDeviceID: "arduino_advanced_001",
	    ProducerDevices: []string{"Arduino Sensor Array"},
	    Recorder:        readingLog,
	})
	go hub.RunWithContext(ctx)

	conn, _ := upgrader.Upgrade(w, r, nil)
	client := websocket.NewClient(hub, conn, websocket.DefaultClientConfig())
	_ = client.Serve(r.Context(), websocket.ConnInfo{RemoteAddr: r.RemoteAddr})

Thread Safety:

Registry and ReadingCache are not locked. Only the hub goroutine touches them;
other goroutines use Connect, Deliver, Touch, Ingest and Status, which are
channel round trips. Fan-out sends never block: a full client queue drops the
message for that client only.
*/
package websocket
