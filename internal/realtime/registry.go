package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// DefaultRoom is joined by every connection on connect and cannot be left.
const DefaultRoom = "all_users"

// Registry tracks live connections by id, by user and by room. All maps are
// guarded by mu; callers only ever receive snapshots.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]*Connection
	users map[uuid.UUID]map[uuid.UUID]*Connection
	rooms map[string]map[uuid.UUID]*Connection

	bufferSize int
	logger     *logrus.Logger
	now        func() time.Time

	sent    atomic.Uint64
	dropped atomic.Uint64

	onDisconnect func(*Connection)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBufferSize sets the per-connection outbound queue length.
func WithBufferSize(n int) RegistryOption {
	return func(r *Registry) { r.bufferSize = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// WithDisconnectHook is called once for every connection removed from the
// registry, after its socket is closed.
func WithDisconnectHook(fn func(*Connection)) RegistryOption {
	return func(r *Registry) { r.onDisconnect = fn }
}

func NewRegistry(logger *logrus.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:      make(map[uuid.UUID]*Connection),
		users:      make(map[uuid.UUID]map[uuid.UUID]*Connection),
		rooms:      make(map[string]map[uuid.UUID]*Connection),
		bufferSize: 64,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers an authenticated socket for userID and joins it to
// DefaultRoom.
func (r *Registry) Connect(socket Socket, userID uuid.UUID) *Connection {
	c := newConnection(socket, userID, r.bufferSize, r.now)

	r.mu.Lock()
	r.conns[c.ID] = c
	devices, ok := r.users[userID]
	if !ok {
		devices = make(map[uuid.UUID]*Connection)
		r.users[userID] = devices
	}
	devices[c.ID] = c
	r.joinLocked(c, DefaultRoom)
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"connection_id": c.ID,
		"user_id":       userID,
		"connections":   total,
	}).Debug("realtime: connection registered")
	return c
}

// Disconnect removes the connection from every index and closes its socket.
// It reports whether this call removed it; repeated calls are no-ops.
func (r *Registry) Disconnect(id uuid.UUID, reason string) bool {
	return r.disconnect(id, websocket.StatusNormalClosure, reason)
}

// DisconnectWithStatus is Disconnect with an explicit close code.
func (r *Registry) DisconnectWithStatus(id uuid.UUID, code websocket.StatusCode, reason string) bool {
	return r.disconnect(id, code, reason)
}

func (r *Registry) disconnect(id uuid.UUID, code websocket.StatusCode, reason string) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	if devices, ok := r.users[c.UserID]; ok {
		delete(devices, id)
		if len(devices) == 0 {
			delete(r.users, c.UserID)
		}
	}
	for room := range c.rooms {
		r.leaveLocked(c, room)
	}
	r.mu.Unlock()

	// Closing may wait on the peer, so it happens outside the lock.
	c.close(code, reason)
	r.logger.WithFields(logrus.Fields{
		"connection_id": id,
		"user_id":       c.UserID,
		"reason":        reason,
	}).Debug("realtime: connection removed")
	if r.onDisconnect != nil {
		r.onDisconnect(c)
	}
	return true
}

// JoinRoom adds the connection to room. Joining twice is a no-op. It reports
// false if the connection is not registered.
func (r *Registry) JoinRoom(id uuid.UUID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	r.joinLocked(c, room)
	return true
}

// LeaveRoom removes the connection from room, dropping the room once empty.
// Leaving a room that was never joined is a no-op.
func (r *Registry) LeaveRoom(id uuid.UUID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	r.leaveLocked(c, room)
	return true
}

func (r *Registry) joinLocked(c *Connection, room string) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]*Connection)
		r.rooms[room] = members
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}
}

func (r *Registry) leaveLocked(c *Connection, room string) {
	delete(c.rooms, room)
	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, c.ID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

func (r *Registry) Get(id uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// ConnectionsForUser returns every device the user currently has connected.
func (r *Registry) ConnectionsForUser(userID uuid.UUID) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.users[userID])
}

func (r *Registry) ConnectionsInRoom(room string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.rooms[room])
}

func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.conns)
}

// RoomsOf lists the rooms a connection belongs to.
func (r *Registry) RoomsOf(id uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return nil
	}
	return lo.Keys(c.rooms)
}

// Touch records inbound activity on a connection.
func (r *Registry) Touch(id uuid.UUID) {
	if c, ok := r.Get(id); ok {
		c.touch(r.now())
	}
}

// Stale returns the connections that have been silent for longer than window.
func (r *Registry) Stale(window time.Duration) []uuid.UUID {
	cutoff := r.now().Add(-window)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.FilterMap(lo.Values(r.conns), func(c *Connection, _ int) (uuid.UUID, bool) {
		return c.ID, c.LastActivity().Before(cutoff)
	})
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	TotalConnections int            `json:"total_connections"`
	UniqueUsers      int            `json:"unique_users"`
	Rooms            map[string]int `json:"rooms"`
	MessagesSent     uint64         `json:"messages_sent"`
	MessagesDropped  uint64         `json:"messages_dropped"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		TotalConnections: len(r.conns),
		UniqueUsers:      len(r.users),
		Rooms: lo.MapValues(r.rooms, func(members map[uuid.UUID]*Connection, _ string) int {
			return len(members)
		}),
		MessagesSent:    r.sent.Load(),
		MessagesDropped: r.dropped.Load(),
	}
}

// CloseAll disconnects every connection, used on shutdown.
func (r *Registry) CloseAll(reason string) int {
	n := 0
	for _, c := range r.All() {
		if r.disconnect(c.ID, websocket.StatusGoingAway, reason) {
			n++
		}
	}
	return n
}
