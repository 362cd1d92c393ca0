// Package api implements the room synchronization surface: the websocket
// endpoint, the per-connection pumps, the event router that applies task
// mutations, and the dispatcher that fans resulting state out to room
// members.
package api

import (
	"sync"
)

// sender is the transport half the hub needs from a connection: a stable
// identifier and a non-blocking, best-effort send.
type sender interface {
	ID() string
	Send(payload []byte) bool
}

// Hub is the connection registry. It maps live connection ids to their
// transports and keeps an inverse index of which rooms each connection has
// joined, so disconnect handling does not need to scan every room.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]sender
	joined map[string]map[string]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]sender),
		joined: make(map[string]map[string]struct{}),
	}
}

// Register records a newly connected transport. The connection has no room
// membership yet.
func (h *Hub) Register(c sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

// Unregister forgets the connection and returns the rooms it had joined so
// the caller can clean up presence.
func (h *Hub) Unregister(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	rooms := make([]string, 0, len(h.joined[connID]))
	for roomID := range h.joined[connID] {
		rooms = append(rooms, roomID)
	}
	delete(h.joined, connID)
	return rooms
}

// TrackJoin records that the connection joined the room. Joining the same
// room twice is harmless.
func (h *Hub) TrackJoin(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[connID]; !ok {
		return
	}
	rooms := h.joined[connID]
	if rooms == nil {
		rooms = make(map[string]struct{})
		h.joined[connID] = rooms
	}
	rooms[roomID] = struct{}{}
}

// Send delivers the payload to a single connection without blocking. It
// returns false when the connection is gone or its send buffer is full.
func (h *Hub) Send(connID string, payload []byte) bool {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	return c.Send(payload)
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
