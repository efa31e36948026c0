// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package websocket

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role classifies a connection.
type Role string

const (
	RoleUnknown  Role = "unknown"
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// ConnectionID identifies a connection for the lifetime of the process.
type ConnectionID string

// NewConnectionID returns "client_" followed by nine hex characters of a random UUID.
func NewConnectionID() ConnectionID {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ConnectionID("client_" + hex[:9])
}

// Peer is the sending side of a connection as seen by the hub.
// Send must not block; Close must be idempotent.
type Peer interface {
	ID() ConnectionID
	Send(msg []byte) error
	Close()
}

// ConnInfo is transport metadata captured at accept time.
type ConnInfo struct {
	RemoteAddr string
	UserAgent  string
}

// Connection is the registry record for one open peer.
type Connection struct {
	ID           ConnectionID
	Peer         Peer
	Info         ConnInfo
	Role         Role
	Metadata     map[string]string
	ConnectedAt  time.Time
	LastLiveness time.Time

	// seq orders connections by accept time for deterministic fan-out.
	seq uint64
}

// Registry tracks open connections partitioned by role.
// It is not safe for concurrent use; the hub goroutine owns it.
type Registry struct {
	conns   map[ConnectionID]*Connection
	nextSeq uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnectionID]*Connection)}
}

// Accept registers peer with role unknown and returns its id.
func (r *Registry) Accept(peer Peer, info ConnInfo, now time.Time) ConnectionID {
	r.nextSeq++
	id := peer.ID()
	r.conns[id] = &Connection{
		ID:           id,
		Peer:         peer,
		Info:         info,
		Role:         RoleUnknown,
		ConnectedAt:  now,
		LastLiveness: now,
		seq:          r.nextSeq,
	}
	return id
}

// DeclareRole classifies an unknown connection. It reports false when the id
// is not registered, the role is not producer or consumer, or the connection
// already has a role.
func (r *Registry) DeclareRole(id ConnectionID, role Role, metadata map[string]string) bool {
	conn, ok := r.conns[id]
	if !ok || conn.Role != RoleUnknown {
		return false
	}
	if role != RoleProducer && role != RoleConsumer {
		return false
	}
	conn.Role = role
	conn.Metadata = metadata
	return true
}

// Remove deletes id from every set and returns the removed record.
// Removing an absent id is a no-op.
func (r *Registry) Remove(id ConnectionID) (*Connection, bool) {
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return conn, ok
}

// Get returns the record for id.
func (r *Registry) Get(id ConnectionID) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

// Touch records a liveness signal.
func (r *Registry) Touch(id ConnectionID, at time.Time) {
	if conn, ok := r.conns[id]; ok {
		conn.LastLiveness = at
	}
}

// Consumers returns the consumer set in accept order.
func (r *Registry) Consumers() []*Connection {
	return r.filter(func(c *Connection) bool { return c.Role == RoleConsumer })
}

// Producers returns the producer set in accept order.
func (r *Registry) Producers() []*Connection {
	return r.filter(func(c *Connection) bool { return c.Role == RoleProducer })
}

// All returns every open connection in accept order.
func (r *Registry) All() []*Connection {
	return r.filter(func(*Connection) bool { return true })
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// Counts returns the size of each partition.
func (r *Registry) Counts() ConnectionCounts {
	counts := ConnectionCounts{Total: len(r.conns)}
	for _, conn := range r.conns {
		switch conn.Role {
		case RoleProducer:
			counts.Producers++
		case RoleConsumer:
			counts.Consumers++
		default:
			counts.Unknown++
		}
	}
	return counts
}

// Clear removes every connection and returns them in accept order.
func (r *Registry) Clear() []*Connection {
	all := r.All()
	r.conns = make(map[ConnectionID]*Connection)
	return all
}

func (r *Registry) filter(keep func(*Connection) bool) []*Connection {
	out := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		if keep(conn) {
			out = append(out, conn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}
