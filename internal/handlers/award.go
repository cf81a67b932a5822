package handlers

import (
	"net/http"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/coordinator"
	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/reward"
	"github.com/google/uuid"
)

// Award types accepted by the admin endpoints.
const (
	AwardXP             = "xp"
	AwardBonusXP        = "bonus_xp"
	AwardGold           = "gold"
	AwardGameboardMoves = "gameboard_moves"
	AwardSkillPoints    = "skill_points"
)

type awardRequest struct {
	UserID       uuid.UUID  `json:"user_id" validate:"required"`
	Type         string     `json:"type" validate:"required,oneof=xp bonus_xp gold gameboard_moves skill_points"`
	Amount       int        `json:"amount" validate:"gt=0,lte=100000"`
	AssignmentID *uuid.UUID `json:"assignment_id,omitempty"`
	Skill        string     `json:"skill,omitempty" validate:"omitempty,oneof=strength endurance tactics climbing speed"`
	Description  string     `json:"description,omitempty" validate:"max=500"`
}

// stimulus maps a validated request onto the engine's input.
func (req awardRequest) stimulus() (reward.Stimulus, error) {
	switch req.Type {
	case AwardXP:
		if req.AssignmentID == nil {
			return nil, apperr.Validation("assignment_id is required for xp awards")
		}
		return reward.AssignmentAward{AssignmentID: *req.AssignmentID, Amount: req.Amount, Description: req.Description}, nil
	case AwardBonusXP:
		return reward.BonusAward{Amount: req.Amount, Description: req.Description}, nil
	case AwardGold:
		return reward.GoldAward{Amount: req.Amount, Description: req.Description}, nil
	case AwardGameboardMoves:
		return reward.MovesAward{Amount: req.Amount, Description: req.Description}, nil
	case AwardSkillPoints:
		if req.Skill == "" {
			return nil, apperr.Validation("skill is required for skill_points awards")
		}
		return reward.SkillAward{Skill: models.Skill(req.Skill), Amount: req.Amount, Description: req.Description}, nil
	}
	return nil, reward.ErrUnknownStimulus
}

type mutationResponse struct {
	UserID uuid.UUID             `json:"user_id"`
	Stats  models.PlayerSnapshot `json:"stats"`
	Event  *models.RewardEvent   `json:"event,omitempty"`
	Roll   *models.RollAttempt   `json:"roll,omitempty"`
}

func newMutationResponse(res *coordinator.Result) mutationResponse {
	return mutationResponse{
		UserID: res.UserID,
		Stats:  res.After.Snapshot(),
		Event:  res.Event,
		Roll:   res.Roll,
	}
}

// AwardHandler applies a single instructor award.
func (s *Server) AwardHandler(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := decodeJSON(w, r, s.validate, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	stim, err := req.stimulus()
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}

	res, err := s.Coordinator.Apply(r.Context(), req.UserID, currentUser(r).ID, stim)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newMutationResponse(res))
}

type bulkAwardRequest struct {
	Awards []awardRequest `json:"awards" validate:"required,min=1,max=500,dive"`
}

type bulkAwardItem struct {
	UserID uuid.UUID              `json:"user_id"`
	OK     bool                   `json:"ok"`
	Error  *errorResponse         `json:"error,omitempty"`
	Stats  *models.PlayerSnapshot `json:"stats,omitempty"`
}

type bulkAwardResponse struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Results   []bulkAwardItem `json:"results"`
}

// BulkAwardHandler applies many awards independently. One bad entry does not
// abort the rest; the response reports each outcome in request order.
func (s *Server) BulkAwardHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkAwardRequest
	if err := decodeJSON(w, r, s.validate, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}

	results := make([]bulkAwardItem, len(req.Awards))
	items := make([]coordinator.BulkItem, 0, len(req.Awards))
	index := make([]int, 0, len(req.Awards))
	for i, a := range req.Awards {
		results[i].UserID = a.UserID
		stim, err := a.stimulus()
		if err != nil {
			results[i].Error = &errorResponse{Code: apperr.CodeOf(err), Error: apperr.PublicMessage(err)}
			continue
		}
		items = append(items, coordinator.BulkItem{UserID: a.UserID, Stimulus: stim})
		index = append(index, i)
	}

	for j, out := range s.Coordinator.BulkApply(r.Context(), currentUser(r).ID, items) {
		item := &results[index[j]]
		if out.Err != nil {
			item.Error = &errorResponse{Code: apperr.CodeOf(out.Err), Error: apperr.PublicMessage(out.Err)}
			continue
		}
		snap := out.Result.After.Snapshot()
		item.OK = true
		item.Stats = &snap
	}

	resp := bulkAwardResponse{Results: results}
	for _, item := range results {
		if item.OK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetHandler zeroes a student's progress.
func (s *Server) ResetHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, s.Logger, apperr.Validation("invalid user_id"))
		return
	}
	res, err := s.Coordinator.Reset(r.Context(), userID, currentUser(r).ID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newMutationResponse(res))
}

type rollRequest struct {
	StationID int `json:"station_id" validate:"required,gt=0"`
}

// RollHandler spends one of the caller's moves on a station roll.
func (s *Server) RollHandler(w http.ResponseWriter, r *http.Request) {
	var req rollRequest
	if err := decodeJSON(w, r, s.validate, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	u := currentUser(r)
	res, err := s.Coordinator.Apply(r.Context(), u.ID, u.ID, reward.StationAttempt{StationID: req.StationID})
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newMutationResponse(res))
}
