// Package hub implements the process-wide connection registry from
// spec.md §4.4: connection-id → connection, and (after login)
// connection-id ↔ username. Built as an explicitly constructed struct per
// spec.md §9's "replace service locator with explicit construction" note,
// rather than the teacher's world.Instance() singleton pattern.
package hub

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/udisondev/la2go/internal/session"
)

// Hub is the process-wide connection registry. The zero value is not
// usable; construct with New.
type Hub struct {
	nextID atomic.Uint64

	mu           sync.RWMutex
	connections  map[uint64]*session.Connection
	byUsername   map[string]uint64 // username -> connection id
	usernameByID map[uint64]string // connection id -> username
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		connections:  make(map[uint64]*session.Connection),
		byUsername:   make(map[string]uint64),
		usernameByID: make(map[uint64]string),
	}
}

// NextID mints a connection id. Callers construct the session.Connection
// with this id before calling Register, since the id is immutable once
// the connection exists.
func (h *Hub) NextID() uint64 {
	return h.nextID.Add(1)
}

// Register adds conn to the registry, keyed by conn.ID().
func (h *Hub) Register(conn *session.Connection) {
	id := conn.ID()

	h.mu.Lock()
	h.connections[id] = conn
	h.mu.Unlock()

	slog.Debug("connection registered", "id", id, "remote", conn.RemoteEndpoint(), "trace", uuid.NewString())
}

// Unregister removes conn and any username association it held.
func (h *Hub) Unregister(conn *session.Connection) {
	id := conn.ID()

	h.mu.Lock()
	delete(h.connections, id)
	if name, ok := h.usernameByID[id]; ok {
		delete(h.usernameByID, id)
		delete(h.byUsername, name)
	}
	h.mu.Unlock()
}

// AssociateUsername binds conn to name. A second association for the same
// connection replaces the prior one. If name is already bound to a
// different live connection, that connection is evicted and disconnected
// per spec.md §4.4's "no username bound to two live connections" invariant.
func (h *Hub) AssociateUsername(conn *session.Connection, name string) {
	id := conn.ID()

	h.mu.Lock()
	var evict *session.Connection
	if existingID, ok := h.byUsername[name]; ok && existingID != id {
		evict = h.connections[existingID]
		delete(h.usernameByID, existingID)
	}
	if prevName, ok := h.usernameByID[id]; ok {
		delete(h.byUsername, prevName)
	}
	h.byUsername[name] = id
	h.usernameByID[id] = name
	h.mu.Unlock()

	if evict != nil {
		slog.Info("evicting prior connection for username", "username", name, "evicted_id", evict.ID())
		evict.Disconnect()
	}
}

// RemoveAssociation clears any username bound to conn, without
// unregistering the connection itself (used by Logout).
func (h *Hub) RemoveAssociation(conn *session.Connection) {
	id := conn.ID()

	h.mu.Lock()
	defer h.mu.Unlock()
	if name, ok := h.usernameByID[id]; ok {
		delete(h.usernameByID, id)
		delete(h.byUsername, name)
	}
}

// GetUsername returns the username bound to a connection id, if any.
func (h *Hub) GetUsername(id uint64) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	name, ok := h.usernameByID[id]
	return name, ok
}

// GetConnectionByUsername returns the connection currently bound to name.
func (h *Hub) GetConnectionByUsername(name string) (*session.Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.byUsername[name]
	if !ok {
		return nil, false
	}
	conn, ok := h.connections[id]
	return conn, ok
}

// Enumerate returns a point-in-time snapshot of registered connections.
func (h *Hub) Enumerate() []*session.Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session.Connection, 0, len(h.connections))
	for _, c := range h.connections {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
