// Package handlers exposes the realtime core over HTTP and WebSocket.
package handlers

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/auth"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/coordinator"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/database"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/middleware"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/notify"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/realtime"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators the handlers need. All fields are required.
type Deps struct {
	Store       database.Store
	Tokens      *auth.TokenService
	Registry    *realtime.Registry
	Dispatcher  *realtime.Dispatcher
	Outbox      *realtime.Outbox
	Emitter     *notify.Emitter
	Coordinator *coordinator.Coordinator
	Logger      *logrus.Logger

	Pump           realtime.PumpConfig
	OriginPatterns []string
	// MaxLeaderboard caps the ?limit= of GET /leaderboard.
	MaxLeaderboard int
	// SecureCookies marks the login cookie Secure.
	SecureCookies bool
}

// Server holds the shared state of every handler, much like a game server
// holds its stores.
type Server struct {
	Deps
	validate *validator.Validate
}

func NewServer(d Deps) *Server {
	if d.MaxLeaderboard <= 0 {
		d.MaxLeaderboard = 100
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{Deps: d, validate: v}
}

// Routes builds the full route table wrapped in request logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	authed := middleware.RequireAuth(s.Tokens, s.Store, s.Logger)
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireAdmin(h))
	}

	// public
	mux.HandleFunc("POST /auth/login", s.LoginHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// realtime socket authenticates itself after the upgrade
	mux.HandleFunc("GET /realtime", s.RealtimeWSHandler)

	// player
	mux.Handle("GET /leaderboard", authed(http.HandlerFunc(s.LeaderboardHandler)))
	mux.Handle("GET /me/profile", authed(http.HandlerFunc(s.ProfileHandler)))
	mux.Handle("POST /gameboard/roll", authed(http.HandlerFunc(s.RollHandler)))

	// instructor
	mux.Handle("POST /admin/award", admin(s.AwardHandler))
	mux.Handle("POST /admin/bulk-award", admin(s.BulkAwardHandler))
	mux.Handle("DELETE /admin/reset/{user_id}", admin(s.ResetHandler))
	mux.Handle("POST /realtime/broadcast/leaderboard", admin(s.BroadcastLeaderboardHandler))
	mux.Handle("POST /realtime/broadcast/announcement", admin(s.AnnouncementHandler))
	mux.Handle("GET /realtime/stats", admin(s.StatsHandler))

	return middleware.LogMiddleware(s.Logger)(mux)
}

// profile assembles the public profile and derived stats of u.
func (s *Server) profile(ctx context.Context, u *models.User) (*models.Profile, error) {
	state, err := s.Store.GetPlayerState(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{User: u.Public(), Stats: state.Snapshot()}, nil
}

// currentUser is only valid behind RequireAuth.
func currentUser(r *http.Request) *models.User {
	u, _ := middleware.UserFrom(r.Context())
	return u
}
