package handlers

import (
	"net/http"
	"strconv"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
)

// LeaderboardHandler serves GET /leaderboard?limit=N.
func (s *Server) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > s.MaxLeaderboard {
			writeError(w, s.Logger, apperr.Validation("limit must be between 1 and %d", s.MaxLeaderboard))
			return
		}
		limit = n
	}

	lb, err := s.Emitter.LeaderboardN(r.Context(), limit)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
