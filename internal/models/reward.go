package models

import (
	"time"

	"github.com/google/uuid"
)

// RewardKind is the source of a reward, matching the xp_entries type constraint.
type RewardKind string

const (
	KindAssignment RewardKind = "assignment"
	KindBonus      RewardKind = "bonus"
	KindGameboard  RewardKind = "gameboard"
	KindSpecial    RewardKind = "special"
)

// Resource is what a reward increments.
type Resource string

const (
	ResourceXP             Resource = "xp"
	ResourceGold           Resource = "gold"
	ResourceGameboardMoves Resource = "gameboard_moves"
	ResourceSkillPoints    Resource = "skill_points"
)

// RewardEvent is the append-only record of one applied award. It is only ever
// written in the same transaction as the PlayerState change it describes.
type RewardEvent struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Amount       int        `json:"amount"`
	Kind         RewardKind `json:"kind"`
	Resource     Resource   `json:"resource"`
	Skill        Skill      `json:"skill,omitempty"`
	AssignmentID *uuid.UUID `json:"assignment_id,omitempty"`
	UnitID       *uuid.UUID `json:"unit_id,omitempty"`
	AwardedBy    uuid.UUID  `json:"awarded_by"`
	Description  string     `json:"description,omitempty"`
	AwardedAt    time.Time  `json:"awarded_at"`
}

// RollAttempt is the append-only record of one station dice roll.
type RollAttempt struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	StationID     int       `json:"station_id"`
	Skill         Skill     `json:"skill"`
	SkillLevel    int       `json:"skill_level"`
	SuccessChance int       `json:"success_chance"`
	RollResult    int       `json:"roll_result"`
	WasSuccessful bool      `json:"was_successful"`
	RolledAt      time.Time `json:"rolled_at"`
}

// Assignment is a gradable piece of work inside a unit. MaxXP caps a single award.
type Assignment struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	UnitID uuid.UUID `json:"unit_id"`
	MaxXP  int       `json:"max_xp"`
}

// Station is one gameboard location. Its ID is also its board position.
type Station struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	RequiredSkill Skill          `json:"required_skill"`
	RewardXP      int            `json:"completion_reward_xp"`
	RewardGold    int            `json:"completion_reward_gold"`
	RewardItems   map[string]int `json:"completion_reward_items"`
}
