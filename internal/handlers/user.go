package handlers

import (
	"net/http"
	"strings"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/auth"
	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/middleware"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
)

var errBadCredentials = apperr.New(apperr.CodeAuthentication, "invalid email or password")

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
	Admin bool              `json:"is_admin"`
}

// LoginHandler verifies credentials, sets the auth cookie and returns the token
// for clients that prefer the Authorization header.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, s.validate, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}

	u, err := s.Store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			err = errBadCredentials
		}
		writeError(w, s.Logger, err)
		return
	}
	ok, err := auth.ComparePasswordAndHash(req.Password, u.Password)
	if err != nil {
		writeError(w, s.Logger, apperr.Internal(err, "stored password hash is unreadable"))
		return
	}
	if !ok {
		writeError(w, s.Logger, errBadCredentials)
		return
	}

	token, err := s.Tokens.CreateToken(u.ID)
	if err != nil {
		writeError(w, s.Logger, apperr.Internal(err, "failed to create token"))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u.Public(), Admin: u.IsAdmin})
}

// ProfileHandler returns the caller's profile and derived stats.
func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.profile(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
