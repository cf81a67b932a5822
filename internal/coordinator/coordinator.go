// Package coordinator applies reward stimuli to player state. Mutations of the
// same player are serialized; different players proceed in parallel.
package coordinator

import (
	"context"
	"time"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/database"
	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/reward"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Result describes one committed mutation.
type Result struct {
	UserID   uuid.UUID
	Actor    uuid.UUID
	Stimulus reward.Stimulus
	Before   *models.PlayerState
	After    *models.PlayerState
	Event    *models.RewardEvent
	Roll     *models.RollAttempt
	At       time.Time
}

// Hook observes committed mutations. Hooks run in registration order while the
// player is still locked, so they see a player's results in commit order. They
// must not block.
type Hook interface {
	AfterCommit(ctx context.Context, res *Result) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, res *Result) error

func (f HookFunc) AfterCommit(ctx context.Context, res *Result) error { return f(ctx, res) }

type Coordinator struct {
	store  database.PlayerStore
	engine *reward.Engine
	locks  *keyedLocks
	hooks  []Hook
	logger *logrus.Logger
	now    func() time.Time
}

func New(store database.PlayerStore, engine *reward.Engine, logger *logrus.Logger, hooks ...Hook) *Coordinator {
	return &Coordinator{
		store:  store,
		engine: engine,
		locks:  newKeyedLocks(),
		hooks:  hooks,
		logger: logger,
		now:    time.Now,
	}
}

// AddHook registers a hook. It must be called before the coordinator is used.
func (c *Coordinator) AddHook(h Hook) {
	c.hooks = append(c.hooks, h)
}

// Apply resolves s against userID's current state and persists the outcome.
// Validation failures (AwardValidation, NotFound) leave state untouched.
// Any other failure is reported as an internal error and nothing is written.
func (c *Coordinator) Apply(ctx context.Context, userID, actor uuid.UUID, s reward.Stimulus) (*Result, error) {
	if s == nil {
		return nil, reward.ErrUnknownStimulus
	}
	unlock, err := c.locks.lock(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "waiting for player lock")
	}
	defer unlock()

	var res *Result
	err = c.store.WithUserLock(ctx, userID, func(ctx context.Context, tx database.PlayerTx) error {
		before, err := tx.GetPlayerState(ctx)
		if err != nil {
			return err
		}
		in := reward.Input{State: before, Actor: actor, Now: c.now()}

		switch st := s.(type) {
		case reward.AssignmentAward:
			if in.Assignment, err = tx.Assignment(ctx, st.AssignmentID); err != nil {
				return err
			}
		case reward.StationAttempt:
			if in.Station, err = tx.Station(ctx, st.StationID); err != nil {
				return err
			}
		}

		out, err := c.engine.Resolve(in, s)
		if err != nil {
			return err
		}

		if _, isReset := s.(reward.Reset); isReset {
			err = tx.ResetPlayerState(ctx, out.State)
		} else {
			err = tx.CommitPlayerState(ctx, out.State, out.Event, out.Roll)
		}
		if err != nil {
			return err
		}

		res = &Result{
			UserID:   userID,
			Actor:    actor,
			Stimulus: s,
			Before:   before,
			After:    out.State,
			Event:    out.Event,
			Roll:     out.Roll,
			At:       in.Now,
		}
		return nil
	})
	if err != nil {
		return nil, c.classify(userID, s, err)
	}

	c.runHooks(ctx, res)
	return res, nil
}

// Reset zeroes a player's progress.
func (c *Coordinator) Reset(ctx context.Context, userID, actor uuid.UUID) (*Result, error) {
	return c.Apply(ctx, userID, actor, reward.Reset{})
}

// BulkItem is one entry of a bulk award.
type BulkItem struct {
	UserID   uuid.UUID
	Stimulus reward.Stimulus
}

// BulkOutcome reports what happened to one BulkItem.
type BulkOutcome struct {
	UserID uuid.UUID
	Result *Result
	Err    error
}

// BulkApply applies each item independently. A failing item does not stop
// the others.
func (c *Coordinator) BulkApply(ctx context.Context, actor uuid.UUID, items []BulkItem) []BulkOutcome {
	out := make([]BulkOutcome, len(items))
	for i, item := range items {
		res, err := c.Apply(ctx, item.UserID, actor, item.Stimulus)
		out[i] = BulkOutcome{UserID: item.UserID, Result: res, Err: err}
	}
	return out
}

func (c *Coordinator) classify(userID uuid.UUID, s reward.Stimulus, err error) error {
	fields := logrus.Fields{"user_id": userID, "stimulus": s.Name()}
	if apperr.IsValidation(err) {
		c.logger.WithFields(fields).WithError(err).Debug("coordinator: stimulus rejected")
		return err
	}
	c.logger.WithFields(fields).WithError(err).Error("coordinator: mutation failed")
	if apperr.HasCode(err, apperr.CodeInternal) {
		return err
	}
	return apperr.Internal(err, "failed to apply "+s.Name())
}

func (c *Coordinator) runHooks(ctx context.Context, res *Result) {
	for _, h := range c.hooks {
		if err := h.AfterCommit(ctx, res); err != nil {
			c.logger.WithFields(logrus.Fields{
				"user_id":  res.UserID,
				"stimulus": res.Stimulus.Name(),
			}).WithError(err).Warn("coordinator: commit hook failed")
		}
	}
}
