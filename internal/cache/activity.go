package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/coordinator"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Pusher is the subset of the Redis client used to enqueue records.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// ActivityPublisher records every committed mutation on a Redis list for the
// historian. Records are buffered in process so a slow Redis never delays a
// mutation; when the buffer is full records are dropped and counted.
type ActivityPublisher struct {
	client  Pusher
	queue   string
	pending chan models.Activity
	logger  *logrus.Logger

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewActivityPublisher(client Pusher, queue string, size int, logger *logrus.Logger) *ActivityPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	if size <= 0 {
		size = 1
	}
	return &ActivityPublisher{
		client:  client,
		queue:   queue,
		pending: make(chan models.Activity, size),
		logger:  logger,
	}
}

type activityPayload struct {
	Before models.PlayerSnapshot `json:"before"`
	After  models.PlayerSnapshot `json:"after"`
	Event  *models.RewardEvent   `json:"event,omitempty"`
	Roll   *models.RollAttempt   `json:"roll,omitempty"`
}

// AfterCommit implements coordinator.Hook.
func (p *ActivityPublisher) AfterCommit(_ context.Context, res *coordinator.Result) error {
	payload, err := json.Marshal(activityPayload{
		Before: res.Before.Snapshot(),
		After:  res.After.Snapshot(),
		Event:  res.Event,
		Roll:   res.Roll,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	a := models.Activity{
		ID:         uuid.New(),
		UserID:     res.UserID,
		ActorID:    res.Actor,
		Action:     res.Stimulus.Name(),
		Payload:    payload,
		OccurredAt: res.At,
	}
	select {
	case p.pending <- a:
		return nil
	default:
		p.dropped.Add(1)
		return fmt.Errorf("activity buffer full, dropped %s for user %s", a.Action, a.UserID)
	}
}

// Publish pushes one record to the Redis list.
func (p *ActivityPublisher) Publish(ctx context.Context, a models.Activity) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	if err := p.client.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	p.published.Add(1)
	return nil
}

// Run forwards buffered records to Redis until ctx is cancelled.
func (p *ActivityPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-p.pending:
			if err := p.Publish(ctx, a); err != nil {
				p.logger.WithFields(logrus.Fields{
					"user_id": a.UserID,
					"action":  a.Action,
				}).WithError(err).Warn("activity: publish failed")
			}
		}
	}
}

// Stats reports published and dropped record counts.
func (p *ActivityPublisher) Stats() (published, dropped uint64) {
	return p.published.Load(), p.dropped.Load()
}
