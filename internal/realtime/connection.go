package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// State is a connection's position in its lifecycle:
// Connecting -> Authenticating -> Connected -> Disconnected, or
// Authenticating -> Rejected when the handshake fails. A Handshake holds the
// states before registration, a Connection the rest.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateConnected
	StateDisconnected
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

var (
	ErrQueueFull        = apperr.New(apperr.CodeDelivery, "outbound queue full")
	ErrConnectionClosed = apperr.New(apperr.CodeDelivery, "connection closed")
	ErrUnknownConn      = apperr.New(apperr.CodeDelivery, "unknown connection")
)

// PumpConfig controls a connection's write loop.
type PumpConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// DefaultPumpConfig is used for any zero field of a PumpConfig.
var DefaultPumpConfig = PumpConfig{
	PingInterval: 30 * time.Second,
	WriteTimeout: 5 * time.Second,
}

// Connection is one authenticated socket. It is created by Registry.Connect and
// never shared across sockets. Frames handed to Enqueue are written in order by
// a single WritePump goroutine.
type Connection struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ConnectedAt time.Time

	socket Socket
	out    chan []byte
	done   chan struct{}

	closeOnce    sync.Once
	state        atomic.Int32
	lastActivity atomic.Int64
	now          func() time.Time

	// rooms is guarded by the owning Registry's mutex.
	rooms map[string]struct{}
}

func newConnection(socket Socket, userID uuid.UUID, bufferSize int, clock func() time.Time) *Connection {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	now := clock()
	c := &Connection{
		ID:          uuid.New(),
		UserID:      userID,
		ConnectedAt: now,
		now:         clock,
		socket:      socket,
		out:         make(chan []byte, bufferSize),
		done:        make(chan struct{}),
		rooms:       make(map[string]struct{}),
	}
	c.state.Store(int32(StateConnected))
	c.lastActivity.Store(now.UnixNano())
	return c
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

// Done is closed once the connection has been disconnected.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// LastActivity is the last time the client was heard from: an inbound frame
// or a pong to one of our pings.
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Connection) touch(now time.Time) {
	c.lastActivity.Store(now.UnixNano())
}

// Enqueue hands a frame to the write loop without blocking. A full queue is
// reported as ErrQueueFull; the caller decides whether to drop the connection.
func (c *Connection) Enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// WritePump drains the outbound queue onto the socket and pings it every
// cfg.PingInterval. It returns when ctx is cancelled, the connection is closed,
// or a write or ping fails; in the last case onFail is called with the error.
func (c *Connection) WritePump(ctx context.Context, cfg PumpConfig, onFail func(error)) {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPumpConfig.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultPumpConfig.WriteTimeout
	}
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case frame := <-c.out:
			writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
			err := c.socket.Write(writeCtx, frame)
			cancel()
			if err != nil {
				onFail(apperr.Wrap(err, apperr.CodeDelivery, "write failed"))
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
			err := c.socket.Ping(pingCtx)
			cancel()
			if err != nil {
				onFail(apperr.Wrap(err, apperr.CodeDelivery, "ping failed"))
				return
			}
			// Ping returns only once the pong arrived.
			c.touch(c.now())
		}
	}
}

// close runs at most once per connection.
func (c *Connection) close(code websocket.StatusCode, reason string) bool {
	closed := false
	c.closeOnce.Do(func() {
		closed = true
		c.state.Store(int32(StateDisconnected))
		close(c.done)
		_ = c.socket.Close(code, reason)
	})
	return closed
}
