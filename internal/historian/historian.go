// Package historian drains the activity queue from Redis and persists it to
// Postgres in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Popper is the subset of the Redis client the historian reads with.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Sink persists a batch atomically.
type Sink interface {
	InsertActivityBatch(ctx context.Context, batch []models.Activity) error
}

type Config struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration
}

// Service accumulates records popped from Queue and flushes them when the
// batch is full or every FlushDelay, whichever comes first.
type Service struct {
	client Popper
	sink   Sink
	cfg    Config
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []models.Activity

	flushed uint64
}

func NewService(client Popper, sink Sink, cfg Config, logger *logrus.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = 500 * time.Millisecond
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = 3 * time.Second
	}
	return &Service{
		client: client,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		batch:  make([]models.Activity, 0, cfg.BatchSize),
	}
}

// Run pops records until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushDelay)
	defer ticker.Stop()
	defer s.Flush(context.WithoutCancel(ctx))

	s.logger.WithField("queue", s.cfg.Queue).Info("historian: started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("historian: shutting down")
			return nil
		case <-ticker.C:
			s.Flush(ctx)
		default:
			s.popOnce(ctx)
		}
	}
}

func (s *Service) popOnce(ctx context.Context) {
	// The timeout keeps the loop responsive to ticks and cancellation.
	res, err := s.client.BLPop(ctx, s.cfg.PopTimeout, s.cfg.Queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			s.logger.WithError(err).Error("historian: BLPop failed")
			// Avoid a hot loop while Redis is unavailable.
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		return
	}
	if len(res) < 2 {
		return
	}

	// res[0] is the queue name and res[1] the payload.
	var a models.Activity
	if err := json.Unmarshal([]byte(res[1]), &a); err != nil {
		s.logger.WithError(err).Warn("historian: invalid activity record")
		return
	}
	s.Append(ctx, a)
}

// Append adds a record to the batch and flushes once it is full.
func (s *Service) Append(ctx context.Context, a models.Activity) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, a)
	if len(s.batch) >= s.cfg.BatchSize {
		s.flushLocked(ctx)
	}
}

// Flush writes the pending batch.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked(ctx)
}

func (s *Service) flushLocked(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	batch := make([]models.Activity, len(s.batch))
	copy(batch, s.batch)
	s.batch = s.batch[:0]

	if err := s.sink.InsertActivityBatch(ctx, batch); err != nil {
		s.logger.WithError(err).WithField("records", len(batch)).Error("historian: flush failed")
		return
	}
	s.flushed += uint64(len(batch))
	s.logger.WithField("records", len(batch)).Debug("historian: flushed batch")
}

// Flushed is the number of records persisted so far.
func (s *Service) Flushed() uint64 {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return s.flushed
}
