package realtime

import (
	"encoding/json"
	"time"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dispatcher fans frames out to registered connections. Delivery is
// at-most-once and never blocks: a connection whose queue is full is
// disconnected without affecting the others.
type Dispatcher struct {
	registry *Registry
	logger   *logrus.Logger
	now      func() time.Time
}

func NewDispatcher(registry *Registry, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger, now: registry.now}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Encode builds the wire frame for an event.
func (d *Dispatcher) Encode(t EventType, data any) ([]byte, error) {
	frame, err := json.Marshal(Envelope{Type: t, Data: data, Timestamp: d.now().UTC()})
	if err != nil {
		return nil, apperr.Internal(err, "encode "+string(t))
	}
	return frame, nil
}

// SendToConnection delivers to a single connection.
func (d *Dispatcher) SendToConnection(id uuid.UUID, t EventType, data any) error {
	c, ok := d.registry.Get(id)
	if !ok {
		return ErrUnknownConn
	}
	frame, err := d.Encode(t, data)
	if err != nil {
		return err
	}
	return d.deliver(c, t, frame)
}

// SendError delivers an error event built from err.
func (d *Dispatcher) SendError(id uuid.UUID, err error) error {
	return d.SendToConnection(id, EventError, ErrorData{
		Code:    apperr.CodeOf(err),
		Message: apperr.PublicMessage(err),
	})
}

// SendToUser delivers to every device of a user and returns how many accepted
// the frame.
func (d *Dispatcher) SendToUser(userID uuid.UUID, t EventType, data any) int {
	return d.fanout(d.registry.ConnectionsForUser(userID), t, data)
}

// BroadcastToRoom delivers to every member of room. An empty or unknown room
// is a no-op.
func (d *Dispatcher) BroadcastToRoom(room string, t EventType, data any) int {
	return d.fanout(d.registry.ConnectionsInRoom(room), t, data)
}

func (d *Dispatcher) BroadcastToAll(t EventType, data any) int {
	return d.fanout(d.registry.All(), t, data)
}

func (d *Dispatcher) fanout(targets []*Connection, t EventType, data any) int {
	if len(targets) == 0 {
		return 0
	}
	frame, err := d.Encode(t, data)
	if err != nil {
		d.logger.WithError(err).WithField("type", t).Error("realtime: dropping broadcast")
		return 0
	}
	delivered := 0
	for _, c := range targets {
		if d.deliver(c, t, frame) == nil {
			delivered++
		}
	}
	return delivered
}

func (d *Dispatcher) deliver(c *Connection, t EventType, frame []byte) error {
	if err := c.Enqueue(frame); err != nil {
		d.registry.dropped.Add(1)
		d.logger.WithFields(logrus.Fields{
			"connection_id": c.ID,
			"user_id":       c.UserID,
			"type":          t,
			"code":          apperr.CodeOf(err),
		}).Warn("realtime: delivery failed, disconnecting")
		d.registry.DisconnectWithStatus(c.ID, websocket.StatusTryAgainLater, "delivery failed")
		return err
	}
	d.registry.sent.Add(1)
	return nil
}
