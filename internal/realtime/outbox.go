package realtime

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TargetKind selects who receives a Notification.
type TargetKind int

const (
	TargetUser TargetKind = iota
	TargetRoom
	TargetAll
	TargetConnection
)

type Target struct {
	Kind         TargetKind
	UserID       uuid.UUID
	Room         string
	ConnectionID uuid.UUID
}

func ToUser(userID uuid.UUID) Target   { return Target{Kind: TargetUser, UserID: userID} }
func ToRoom(room string) Target        { return Target{Kind: TargetRoom, Room: room} }
func ToAll() Target                    { return Target{Kind: TargetAll} }
func ToConnection(id uuid.UUID) Target { return Target{Kind: TargetConnection, ConnectionID: id} }

// Notification is a pending outbound event. When Build is set the payload is
// computed by the dispatch loop right before sending, so expensive payloads
// stay off the caller's path.
type Notification struct {
	Target Target
	Type   EventType
	Data   any
	Build  func(ctx context.Context) (any, error)
}

// Outbox decouples producers from delivery: Enqueue never blocks and a single
// Run loop drains the queue through the Dispatcher.
type Outbox struct {
	queue      chan Notification
	dispatcher *Dispatcher
	logger     *logrus.Logger

	enqueued  atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
	delivered atomic.Uint64
}

func NewOutbox(dispatcher *Dispatcher, size int, logger *logrus.Logger) *Outbox {
	if size <= 0 {
		size = 1
	}
	return &Outbox{
		queue:      make(chan Notification, size),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Enqueue reports false when the queue is full and the notification was
// dropped.
func (o *Outbox) Enqueue(n Notification) bool {
	select {
	case o.queue <- n:
		o.enqueued.Add(1)
		return true
	default:
		o.dropped.Add(1)
		o.logger.WithFields(logrus.Fields{
			"type":   n.Type,
			"target": n.Target.Kind,
		}).Warn("realtime: outbox full, dropping notification")
		return false
	}
}

// Run dispatches queued notifications until ctx is cancelled. Whatever is
// still queued at that point is dropped.
func (o *Outbox) Run(ctx context.Context) error {
	o.logger.Info("realtime: outbox loop started")
	defer o.logger.Info("realtime: outbox loop stopped")
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-o.queue:
			o.dispatch(ctx, n)
		}
	}
}

func (o *Outbox) dispatch(ctx context.Context, n Notification) {
	data := n.Data
	if n.Build != nil {
		built, err := n.Build(ctx)
		if err != nil {
			o.failed.Add(1)
			o.logger.WithError(err).WithField("type", n.Type).Error("realtime: building notification payload failed")
			return
		}
		data = built
	}

	d := o.dispatcher
	var count int
	switch n.Target.Kind {
	case TargetUser:
		count = d.SendToUser(n.Target.UserID, n.Type, data)
	case TargetRoom:
		count = d.BroadcastToRoom(n.Target.Room, n.Type, data)
	case TargetAll:
		count = d.BroadcastToAll(n.Type, data)
	case TargetConnection:
		if d.SendToConnection(n.Target.ConnectionID, n.Type, data) == nil {
			count = 1
		}
	}
	o.delivered.Add(uint64(count))
}

type OutboxStats struct {
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
	Enqueued  uint64 `json:"enqueued"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
	Delivered uint64 `json:"delivered"`
}

func (o *Outbox) Stats() OutboxStats {
	return OutboxStats{
		Queued:    len(o.queue),
		Capacity:  cap(o.queue),
		Enqueued:  o.enqueued.Load(),
		Dropped:   o.dropped.Load(),
		Failed:    o.failed.Load(),
		Delivered: o.delivered.Load(),
	}
}
