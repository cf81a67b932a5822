package reward

import (
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
)

// Stimulus is the closed set of inputs the engine resolves. Only types in this
// package implement it.
type Stimulus interface {
	// Name is used in logs and in the activity record.
	Name() string
	stimulus()
}

// AssignmentAward grants XP for an assignment, capped at the assignment's MaxXP.
type AssignmentAward struct {
	AssignmentID uuid.UUID
	Amount       int
	Description  string
}

// BonusAward grants XP not tied to an assignment.
type BonusAward struct {
	Amount      int
	Description string
}

// GoldAward grants gold.
type GoldAward struct {
	Amount      int
	Description string
}

// MovesAward grants gameboard moves.
type MovesAward struct {
	Amount      int
	Description string
}

// SkillAward raises one skill, saturating at models.MaxSkillLevel.
type SkillAward struct {
	Skill       models.Skill
	Amount      int
	Description string
}

// StationAttempt spends one gameboard move on a dice roll at a station.
type StationAttempt struct {
	StationID int
}

// Reset zeroes a player's progress. It must be authorized by the caller.
type Reset struct{}

func (AssignmentAward) Name() string { return "award_xp" }
func (BonusAward) Name() string      { return "award_bonus_xp" }
func (GoldAward) Name() string       { return "award_gold" }
func (MovesAward) Name() string      { return "award_gameboard_moves" }
func (SkillAward) Name() string      { return "award_skill_points" }
func (StationAttempt) Name() string  { return "roll_dice" }
func (Reset) Name() string           { return "reset_student" }

func (AssignmentAward) stimulus() {}
func (BonusAward) stimulus()      {}
func (GoldAward) stimulus()       {}
func (MovesAward) stimulus()      {}
func (SkillAward) stimulus()      {}
func (StationAttempt) stimulus()  {}
func (Reset) stimulus()           {}
