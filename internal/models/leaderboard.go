package models

import "github.com/google/uuid"

// MedalTier is awarded from total XP thresholds.
type MedalTier string

const (
	MedalNone   MedalTier = ""
	MedalBronze MedalTier = "bronze"
	MedalSilver MedalTier = "silver"
	MedalGold   MedalTier = "gold"
)

// MedalForXP returns the medal tier earned with totalXP.
func MedalForXP(totalXP int) MedalTier {
	switch {
	case totalXP >= 1000:
		return MedalGold
	case totalXP >= 500:
		return MedalSilver
	case totalXP >= 250:
		return MedalBronze
	}
	return MedalNone
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank              int       `json:"rank"`
	UserID            uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	UserProgram       string    `json:"user_program"`
	TotalXP           int       `json:"total_xp"`
	CurrentLevel      int       `json:"current_level"`
	Gold              int       `json:"gold"`
	GameboardPosition int       `json:"gameboard_position"`
	MedalTier         MedalTier `json:"medal_tier,omitempty"`
}

// Leaderboard is the payload of leaderboard_update.
type Leaderboard struct {
	Overall []LeaderboardEntry `json:"overall"`
}
