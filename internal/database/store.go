package database

import (
	"context"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
)

// PlayerTx is a unit of work scoped to one locked player. Nothing it writes is
// visible to others until the enclosing WithUserLock returns nil.
type PlayerTx interface {
	// GetPlayerState returns the locked player's state, creating the default
	// row for a known user on first access.
	GetPlayerState(ctx context.Context) (*models.PlayerState, error)
	Assignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	Station(ctx context.Context, id int) (*models.Station, error)
	// CommitPlayerState writes the new state together with the records that
	// explain it. Either all of them persist or none do.
	CommitPlayerState(ctx context.Context, state *models.PlayerState, ev *models.RewardEvent, roll *models.RollAttempt) error
	// ResetPlayerState overwrites every counter of the player.
	ResetPlayerState(ctx context.Context, state *models.PlayerState) error
}

// PlayerStore serializes writers per player.
type PlayerStore interface {
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, tx PlayerTx) error) error
}

// ReadStore serves the queries that do not mutate player state.
type ReadStore interface {
	GetPlayerState(ctx context.Context, userID uuid.UUID) (*models.PlayerState, error)
	TopN(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Store is everything the server needs from persistence.
type Store interface {
	PlayerStore
	ReadStore
}

// rankEntries assigns 1-based ranks and medal tiers to an ordered slice.
func rankEntries(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].CurrentLevel = models.LevelForXP(entries[i].TotalXP)
		entries[i].MedalTier = models.MedalForXP(entries[i].TotalXP)
	}
	return entries
}
