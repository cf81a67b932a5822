package handlers

import (
	"net/http"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/realtime"
)

var errOutboxFull = apperr.New(apperr.CodeDelivery, "notification queue is full, try again")

type queuedResponse struct {
	Queued bool `json:"queued"`
}

// BroadcastLeaderboardHandler pushes a fresh leaderboard to every connection.
func (s *Server) BroadcastLeaderboardHandler(w http.ResponseWriter, _ *http.Request) {
	if !s.Emitter.BroadcastLeaderboard() {
		writeError(w, s.Logger, errOutboxFull)
		return
	}
	writeJSON(w, http.StatusAccepted, queuedResponse{Queued: true})
}

type announcementRequest struct {
	Message  string `json:"message" validate:"required,max=1000"`
	Priority string `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	Room     string `json:"room,omitempty" validate:"max=64"`
}

// AnnouncementHandler sends a system_announcement to a room or to everyone.
func (s *Server) AnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := decodeJSON(w, r, s.validate, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	if !s.Emitter.Announce(req.Message, req.Priority, req.Room) {
		writeError(w, s.Logger, errOutboxFull)
		return
	}
	writeJSON(w, http.StatusAccepted, queuedResponse{Queued: true})
}

type statsResponse struct {
	Connections realtime.Stats       `json:"connections"`
	Outbox      realtime.OutboxStats `json:"outbox"`
}

// StatsHandler reports connection and delivery counters.
func (s *Server) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Connections: s.Registry.Stats(),
		Outbox:      s.Outbox.Stats(),
	})
}
