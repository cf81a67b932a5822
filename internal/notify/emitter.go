// Package notify turns committed mutations into realtime notifications.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/coordinator"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/realtime"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrOutboxFull is returned when at least one notification had to be dropped.
var ErrOutboxFull = errors.New("notify: outbox full")

// Outbox accepts notifications without blocking.
type Outbox interface {
	Enqueue(n realtime.Notification) bool
}

// LeaderboardSource returns the top entries ordered by rank.
type LeaderboardSource interface {
	TopN(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// Emitter is a coordinator.Hook. It never touches sockets itself; everything
// goes through the outbox, and leaderboard payloads are built by the outbox's
// dispatch loop.
type Emitter struct {
	outbox      Outbox
	leaderboard LeaderboardSource
	size        int
	logger      *logrus.Logger

	group singleflight.Group
}

func NewEmitter(outbox Outbox, leaderboard LeaderboardSource, size int, logger *logrus.Logger) *Emitter {
	if size <= 0 {
		size = 10
	}
	return &Emitter{outbox: outbox, leaderboard: leaderboard, size: size, logger: logger}
}

// ProgressUpdate is sent to every device of the affected player.
type ProgressUpdate struct {
	UserID uuid.UUID             `json:"user_id"`
	Reason string                `json:"reason"`
	Stats  models.PlayerSnapshot `json:"stats"`
	Event  *models.RewardEvent   `json:"event,omitempty"`
	Roll   *models.RollAttempt   `json:"roll,omitempty"`
}

// AwardNotification tells a player someone else rewarded them.
type AwardNotification struct {
	AwardType   models.Resource   `json:"award_type"`
	Kind        models.RewardKind `json:"kind"`
	Amount      int               `json:"amount"`
	Skill       models.Skill      `json:"skill,omitempty"`
	Description string            `json:"description,omitempty"`
	AwardedBy   uuid.UUID         `json:"awarded_by"`
}

// Achievement kinds.
const (
	AchievementLevelUp = "level_up"
	AchievementMedal   = "medal"
)

type AchievementNotification struct {
	Achievement string           `json:"achievement"`
	Level       int              `json:"level"`
	MedalTier   models.MedalTier `json:"medal_tier,omitempty"`
	Message     string           `json:"message"`
}

// Announcement is the payload of system_announcement.
type Announcement struct {
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// AfterCommit enqueues the notifications for one committed mutation.
func (e *Emitter) AfterCommit(_ context.Context, res *coordinator.Result) error {
	before, after := res.Before, res.After
	dropped := 0
	enqueue := func(n realtime.Notification) {
		if !e.outbox.Enqueue(n) {
			dropped++
		}
	}

	enqueue(realtime.Notification{
		Target: realtime.ToUser(res.UserID),
		Type:   realtime.EventProgressUpdate,
		Data: ProgressUpdate{
			UserID: res.UserID,
			Reason: res.Stimulus.Name(),
			Stats:  after.Snapshot(),
			Event:  res.Event,
			Roll:   res.Roll,
		},
	})

	if res.Event != nil && res.Actor != res.UserID {
		enqueue(realtime.Notification{
			Target: realtime.ToUser(res.UserID),
			Type:   realtime.EventAwardNotification,
			Data: AwardNotification{
				AwardType:   res.Event.Resource,
				Kind:        res.Event.Kind,
				Amount:      res.Event.Amount,
				Skill:       res.Event.Skill,
				Description: res.Event.Description,
				AwardedBy:   res.Actor,
			},
		})
	}

	for _, a := range achievements(before, after) {
		enqueue(realtime.Notification{
			Target: realtime.ToUser(res.UserID),
			Type:   realtime.EventAchievementNotification,
			Data:   a,
		})
	}

	if leaderboardChanged(before, after) {
		enqueue(e.LeaderboardNotification(realtime.ToAll()))
	}

	if dropped > 0 {
		return fmt.Errorf("%w: %d notifications dropped for user %s", ErrOutboxFull, dropped, res.UserID)
	}
	return nil
}

func leaderboardChanged(before, after *models.PlayerState) bool {
	return before.TotalXP != after.TotalXP ||
		before.Level() != after.Level() ||
		before.Gold != after.Gold
}

// achievements lists level-ups and newly reached medal tiers. Resets never
// produce achievements.
func achievements(before, after *models.PlayerState) []AchievementNotification {
	var out []AchievementNotification
	if after.Level() > before.Level() {
		out = append(out, AchievementNotification{
			Achievement: AchievementLevelUp,
			Level:       after.Level(),
			Message:     fmt.Sprintf("Level up! You reached level %d", after.Level()),
		})
	}
	prev, next := models.MedalForXP(before.TotalXP), models.MedalForXP(after.TotalXP)
	if next != prev && after.TotalXP > before.TotalXP {
		out = append(out, AchievementNotification{
			Achievement: AchievementMedal,
			Level:       after.Level(),
			MedalTier:   next,
			Message:     fmt.Sprintf("You earned the %s medal", next),
		})
	}
	return out
}

// Leaderboard returns the current top entries. Concurrent callers share one
// query.
func (e *Emitter) Leaderboard(ctx context.Context) (*models.Leaderboard, error) {
	return e.LeaderboardN(ctx, e.size)
}

// LeaderboardN is Leaderboard with an explicit size.
func (e *Emitter) LeaderboardN(ctx context.Context, limit int) (*models.Leaderboard, error) {
	if limit <= 0 {
		limit = e.size
	}
	// The query is shared by every coalesced caller, so one caller going away
	// must not cancel it for the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := e.group.Do(fmt.Sprintf("top:%d", limit), func() (any, error) {
		entries, err := e.leaderboard.TopN(shared, limit)
		if err != nil {
			return nil, err
		}
		return &models.Leaderboard{Overall: entries}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Leaderboard), nil
}

// LeaderboardNotification builds a leaderboard_update whose payload is
// computed when it is dispatched.
func (e *Emitter) LeaderboardNotification(target realtime.Target) realtime.Notification {
	return realtime.Notification{
		Target: target,
		Type:   realtime.EventLeaderboardUpdate,
		Build: func(ctx context.Context) (any, error) {
			return e.Leaderboard(ctx)
		},
	}
}

// BroadcastLeaderboard queues a leaderboard_update for every connection.
func (e *Emitter) BroadcastLeaderboard() bool {
	return e.outbox.Enqueue(e.LeaderboardNotification(realtime.ToAll()))
}

// Announce queues a system_announcement for a room, or for everyone when room
// is empty.
func (e *Emitter) Announce(message, priority, room string) bool {
	if priority == "" {
		priority = "normal"
	}
	target := realtime.ToAll()
	if room != "" {
		target = realtime.ToRoom(room)
	}
	return e.outbox.Enqueue(realtime.Notification{
		Target: target,
		Type:   realtime.EventSystemAnnouncement,
		Data:   Announcement{Message: message, Priority: priority},
	})
}
