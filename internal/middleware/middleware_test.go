package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/auth"
	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userMap map[uuid.UUID]*models.User

func (m userMap) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	return u, nil
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=q" }, "q"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer b") }, "b"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AuthCookieName, Value: "c"}) }, "c"},
		{"query wins", func(r *http.Request) {
			r.URL.RawQuery = "token=q"
			r.Header.Set("Authorization", "Bearer b")
		}, "q"},
		{"basic auth ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic xyz") }, ""},
		{"none", func(*http.Request) {}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			assert.Equal(t, tt.want, ExtractToken(r))
		})
	}
}

func TestRequireAuthAndAdmin(t *testing.T) {
	tokens, err := auth.NewTokenService(time.Hour)
	require.NoError(t, err)
	student := &models.User{ID: uuid.New(), Username: "s"}
	admin := &models.User{ID: uuid.New(), Username: "a", IsAdmin: true}
	users := userMap{student.ID: student, admin.ID: admin}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	var seen *models.User
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	authed := RequireAuth(tokens, users, logger)(inner)
	adminOnly := RequireAuth(tokens, users, logger)(RequireAdmin(inner))

	call := func(h http.Handler, id uuid.UUID) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if id != uuid.Nil {
			tok, err := tokens.CreateToken(id)
			require.NoError(t, err)
			r.Header.Set("Authorization", "Bearer "+tok)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(authed, uuid.Nil))
	assert.Equal(t, http.StatusUnauthorized, call(authed, uuid.New()), "unknown user")

	assert.Equal(t, http.StatusNoContent, call(authed, student.ID))
	assert.Equal(t, student.ID, seen.ID)

	assert.Equal(t, http.StatusForbidden, call(adminOnly, student.ID))
	assert.Equal(t, http.StatusNoContent, call(adminOnly, admin.ID))
}

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/brew", nil))

	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/brew"`)
}
