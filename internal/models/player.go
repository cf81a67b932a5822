package models

import (
	"maps"

	"github.com/google/uuid"
)

// XPPerLevel is the amount of total XP needed to gain one level.
const XPPerLevel = 200

// MaxSkillLevel caps every skill; awards past it saturate.
const MaxSkillLevel = 5

// BoardLength is the number of stations on the gameboard.
const BoardLength = 10

// LevelForXP returns the level reached with totalXP experience points.
func LevelForXP(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/XPPerLevel + 1
}

// PlayerState is the mutable per-user game aggregate. Level is never stored,
// it is always derived from TotalXP.
type PlayerState struct {
	UserID            uuid.UUID      `json:"user_id"`
	CurrentXP         int            `json:"current_xp"`
	TotalXP           int            `json:"total_xp"`
	Gold              int            `json:"gold"`
	GameboardXP       int            `json:"gameboard_xp"`
	GameboardMoves    int            `json:"gameboard_moves"`
	GameboardPosition int            `json:"gameboard_position"`
	UnitXP            map[string]int `json:"unit_xp"`
	Skills            Skills         `json:"skills"`
	Inventory         Inventory      `json:"inventory"`
}

// NewPlayerState returns the state a player starts the course with.
func NewPlayerState(userID uuid.UUID) *PlayerState {
	return &PlayerState{
		UserID:            userID,
		Gold:              3,
		GameboardPosition: 1,
		UnitXP:            make(map[string]int),
		Skills:            DefaultSkills(),
	}
}

// Level is derived from TotalXP.
func (p *PlayerState) Level() int {
	return LevelForXP(p.TotalXP)
}

// Clone returns a deep copy so that a mutation can be computed without
// touching the snapshot it started from.
func (p *PlayerState) Clone() *PlayerState {
	c := *p
	c.UnitXP = make(map[string]int, len(p.UnitXP))
	maps.Copy(c.UnitXP, p.UnitXP)
	return &c
}

// Snapshot is the read view sent to clients, with the derived level filled in.
func (p *PlayerState) Snapshot() PlayerSnapshot {
	return PlayerSnapshot{
		TotalXP:           p.TotalXP,
		CurrentXP:         p.CurrentXP,
		CurrentLevel:      p.Level(),
		Gold:              p.Gold,
		GameboardXP:       p.GameboardXP,
		GameboardMoves:    p.GameboardMoves,
		GameboardPosition: p.GameboardPosition,
		UnitXP:            maps.Clone(p.UnitXP),
		Skills:            p.Skills,
		Inventory:         p.Inventory,
	}
}

// PlayerSnapshot is the JSON shape of a player's progress.
type PlayerSnapshot struct {
	TotalXP           int            `json:"total_xp"`
	CurrentXP         int            `json:"current_xp"`
	CurrentLevel      int            `json:"current_level"`
	Gold              int            `json:"gold"`
	GameboardXP       int            `json:"gameboard_xp"`
	GameboardMoves    int            `json:"gameboard_moves"`
	GameboardPosition int            `json:"gameboard_position"`
	UnitXP            map[string]int `json:"unit_xp"`
	Skills            Skills         `json:"skills"`
	Inventory         Inventory      `json:"inventory"`
}

// Skill names one of the five trainable skills.
type Skill string

const (
	SkillStrength  Skill = "strength"
	SkillEndurance Skill = "endurance"
	SkillTactics   Skill = "tactics"
	SkillClimbing  Skill = "climbing"
	SkillSpeed     Skill = "speed"
)

// Skills holds one level (1..MaxSkillLevel) per skill.
type Skills struct {
	Strength  int `json:"strength"`
	Endurance int `json:"endurance"`
	Tactics   int `json:"tactics"`
	Climbing  int `json:"climbing"`
	Speed     int `json:"speed"`
}

func DefaultSkills() Skills {
	return Skills{Strength: 1, Endurance: 1, Tactics: 1, Climbing: 1, Speed: 1}
}

// Level returns the level of the named skill, ok is false for unknown skills.
func (s Skills) Level(skill Skill) (int, bool) {
	switch skill {
	case SkillStrength:
		return s.Strength, true
	case SkillEndurance:
		return s.Endurance, true
	case SkillTactics:
		return s.Tactics, true
	case SkillClimbing:
		return s.Climbing, true
	case SkillSpeed:
		return s.Speed, true
	}
	return 0, false
}

// Set writes the level of the named skill. Unknown skills are ignored.
func (s *Skills) Set(skill Skill, level int) {
	switch skill {
	case SkillStrength:
		s.Strength = level
	case SkillEndurance:
		s.Endurance = level
	case SkillTactics:
		s.Tactics = level
	case SkillClimbing:
		s.Climbing = level
	case SkillSpeed:
		s.Speed = level
	}
}

// Inventory counts the consumable items a player holds.
type Inventory struct {
	Water       int `json:"water"`
	Gatorade    int `json:"gatorade"`
	FirstAidKit int `json:"first_aid_kit"`
}

// Add increases the count of a named item. It reports false for unknown items.
func (inv *Inventory) Add(item string, qty int) bool {
	switch item {
	case "water":
		inv.Water += qty
	case "gatorade":
		inv.Gatorade += qty
	case "first_aid_kit":
		inv.FirstAidKit += qty
	default:
		return false
	}
	return true
}
