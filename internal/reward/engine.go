// Package reward resolves stimuli against a player snapshot. It performs no I/O:
// the only source of nondeterminism is the injected Roller.
package reward

import (
	"time"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
)

// ChancePerSkillLevel is the success chance, in percent, contributed by each
// level of the station's required skill.
const ChancePerSkillLevel = 20

var (
	ErrNoMoves          = apperr.New(apperr.CodeAwardValidation, "no gameboard moves available")
	ErrNonPositive      = apperr.New(apperr.CodeAwardValidation, "amount must be greater than zero")
	ErrUnknownStimulus  = apperr.New(apperr.CodeAwardValidation, "unknown stimulus")
	ErrMissingState     = apperr.New(apperr.CodeInternal, "player state missing")
	ErrMissingReference = apperr.New(apperr.CodeNotFound, "referenced record not found")
)

// Input is everything the engine needs besides the stimulus. Assignment and
// Station are only consulted by the stimuli that reference them, and must
// match the referenced id.
type Input struct {
	State      *models.PlayerState
	Actor      uuid.UUID
	Assignment *models.Assignment
	Station    *models.Station
	Now        time.Time
}

// Outcome is the result of a resolved stimulus. State is always a fresh copy;
// the input snapshot is never modified.
type Outcome struct {
	State *models.PlayerState
	Event *models.RewardEvent
	Roll  *models.RollAttempt
}

type Engine struct {
	roller Roller
}

func NewEngine(roller Roller) *Engine {
	if roller == nil {
		roller = RandomRoller{}
	}
	return &Engine{roller: roller}
}

// SuccessChance returns the roll success chance, in percent, for a skill level.
func SuccessChance(skillLevel int) int {
	return min(100, max(0, skillLevel*ChancePerSkillLevel))
}

// Resolve applies s to in.State. Validation failures return an AppError with
// CodeAwardValidation or CodeNotFound and no outcome.
func (e *Engine) Resolve(in Input, s Stimulus) (*Outcome, error) {
	if in.State == nil {
		return nil, ErrMissingState
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	switch st := s.(type) {
	case AssignmentAward:
		return e.resolveAssignment(in, st)
	case BonusAward:
		if st.Amount <= 0 {
			return nil, ErrNonPositive
		}
		next := in.State.Clone()
		next.TotalXP += st.Amount
		next.CurrentXP += st.Amount
		return &Outcome{State: next, Event: newEvent(in, models.KindBonus, models.ResourceXP, st.Amount, st.Description)}, nil
	case GoldAward:
		if st.Amount <= 0 {
			return nil, ErrNonPositive
		}
		next := in.State.Clone()
		next.Gold += st.Amount
		return &Outcome{State: next, Event: newEvent(in, models.KindSpecial, models.ResourceGold, st.Amount, st.Description)}, nil
	case MovesAward:
		if st.Amount <= 0 {
			return nil, ErrNonPositive
		}
		next := in.State.Clone()
		next.GameboardMoves += st.Amount
		return &Outcome{State: next, Event: newEvent(in, models.KindGameboard, models.ResourceGameboardMoves, st.Amount, st.Description)}, nil
	case SkillAward:
		return e.resolveSkill(in, st)
	case StationAttempt:
		return e.resolveStation(in, st)
	case Reset:
		return &Outcome{State: resetState(in.State)}, nil
	}
	return nil, ErrUnknownStimulus
}

func (e *Engine) resolveAssignment(in Input, st AssignmentAward) (*Outcome, error) {
	if st.Amount <= 0 {
		return nil, ErrNonPositive
	}
	a := in.Assignment
	if a == nil || a.ID != st.AssignmentID {
		return nil, apperr.NotFound("assignment %s not found", st.AssignmentID)
	}
	if st.Amount > a.MaxXP {
		return nil, apperr.Validation("XP amount %d exceeds maximum %d for assignment %q", st.Amount, a.MaxXP, a.Name)
	}

	next := in.State.Clone()
	next.TotalXP += st.Amount
	next.CurrentXP += st.Amount
	unit := a.UnitID.String()
	next.UnitXP[unit] += st.Amount

	ev := newEvent(in, models.KindAssignment, models.ResourceXP, st.Amount, st.Description)
	assignmentID, unitID := a.ID, a.UnitID
	ev.AssignmentID = &assignmentID
	ev.UnitID = &unitID
	return &Outcome{State: next, Event: ev}, nil
}

func (e *Engine) resolveSkill(in Input, st SkillAward) (*Outcome, error) {
	if st.Amount <= 0 {
		return nil, ErrNonPositive
	}
	cur, ok := in.State.Skills.Level(st.Skill)
	if !ok {
		return nil, apperr.Validation("unknown skill %q", st.Skill)
	}
	next := in.State.Clone()
	next.Skills.Set(st.Skill, min(models.MaxSkillLevel, cur+st.Amount))

	ev := newEvent(in, models.KindSpecial, models.ResourceSkillPoints, st.Amount, st.Description)
	ev.Skill = st.Skill
	return &Outcome{State: next, Event: ev}, nil
}

func (e *Engine) resolveStation(in Input, st StationAttempt) (*Outcome, error) {
	station := in.Station
	if station == nil || station.ID != st.StationID {
		return nil, apperr.NotFound("station %d not found", st.StationID)
	}
	level, ok := in.State.Skills.Level(station.RequiredSkill)
	if !ok {
		return nil, apperr.Validation("station %d requires unknown skill %q", station.ID, station.RequiredSkill)
	}
	if in.State.GameboardMoves <= 0 {
		return nil, ErrNoMoves
	}

	next := in.State.Clone()
	next.GameboardMoves--

	chance := SuccessChance(level)
	draw := e.roller.Roll()
	success := draw <= chance

	roll := &models.RollAttempt{
		ID:            uuid.New(),
		UserID:        in.State.UserID,
		StationID:     station.ID,
		Skill:         station.RequiredSkill,
		SkillLevel:    level,
		SuccessChance: chance,
		RollResult:    draw,
		WasSuccessful: success,
		RolledAt:      in.Now,
	}
	out := &Outcome{State: next, Roll: roll}
	if !success {
		return out, nil
	}

	next.TotalXP += station.RewardXP
	next.CurrentXP += station.RewardXP
	next.GameboardXP += station.RewardXP
	next.Gold += station.RewardGold
	for item, qty := range station.RewardItems {
		next.Inventory.Add(item, qty)
	}
	if next.GameboardPosition == station.ID {
		next.GameboardPosition = min(models.BoardLength, next.GameboardPosition+1)
	}

	if station.RewardXP > 0 {
		out.Event = newEvent(in, models.KindGameboard, models.ResourceXP, station.RewardXP,
			"Gameboard station "+station.Name+" completed")
	}
	return out, nil
}

// resetState zeroes every counter. Unlike a fresh player, a reset player keeps
// no starting gold.
func resetState(cur *models.PlayerState) *models.PlayerState {
	next := models.NewPlayerState(cur.UserID)
	next.Gold = 0
	return next
}

func newEvent(in Input, kind models.RewardKind, res models.Resource, amount int, desc string) *models.RewardEvent {
	return &models.RewardEvent{
		ID:          uuid.New(),
		UserID:      in.State.UserID,
		Amount:      amount,
		Kind:        kind,
		Resource:    res,
		AwardedBy:   in.Actor,
		Description: desc,
		AwardedAt:   in.Now,
	}
}
