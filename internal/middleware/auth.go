package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/auth"
	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuthCookieName is the cookie the login endpoint sets.
const AuthCookieName = "auth_token"

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// UserLookup resolves the user behind a verified token.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ctxKey int

const userKey ctxKey = iota

// ExtractToken finds a token in the token query parameter, the Authorization
// bearer header, or the auth cookie, in that order.
func ExtractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate resolves the request's token to a user. Unknown users and bad
// tokens are authentication errors.
func Authenticate(ctx context.Context, r *http.Request, verifier TokenVerifier, users UserLookup) (*models.User, error) {
	claims, err := verifier.VerifyToken(ExtractToken(r))
	if err != nil {
		return nil, err
	}
	u, err := users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.Wrap(err, apperr.CodeAuthentication, "user no longer exists")
		}
		return nil, err
	}
	return u, nil
}

// RequireAuth rejects requests without a valid token and stores the user in
// the request context.
func RequireAuth(verifier TokenVerifier, users UserLookup, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := Authenticate(r.Context(), r, verifier, users)
			if err != nil {
				logger.WithError(err).WithField("path", r.URL.Path).Debug("authentication failed")
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok || !u.IsAdmin {
			writeAuthError(w, apperr.New(apperr.CodeForbidden, "admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	code := apperr.CodeOf(err)
	switch code {
	case apperr.CodeForbidden:
		status = http.StatusForbidden
	case apperr.CodeInternal:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":  string(code),
		"error": apperr.PublicMessage(err),
	})
}
