package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/auth"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/coordinator"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/database"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/notify"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/realtime"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/reward"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t        *testing.T
	store    *database.MemoryStore
	tokens   *auth.TokenService
	server   *Server
	http     *httptest.Server
	registry *realtime.Registry

	admin      *models.User
	adminToken string
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newHarness wires the full stack on the in-memory store. Every roll draws 1,
// so station attempts always succeed.
func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := testLogger()
	store := database.NewMemoryStore()
	tokens, err := auth.NewTokenService(time.Hour)
	require.NoError(t, err)

	registry := realtime.NewRegistry(logger)
	dispatcher := realtime.NewDispatcher(registry, logger)
	outbox := realtime.NewOutbox(dispatcher, 256, logger)
	emitter := notify.NewEmitter(outbox, store, 10, logger)
	coord := coordinator.New(store, reward.NewEngine(reward.FixedRoller(1)), logger, emitter)

	s := NewServer(Deps{
		Store:       store,
		Tokens:      tokens,
		Registry:    registry,
		Dispatcher:  dispatcher,
		Outbox:      outbox,
		Emitter:     emitter,
		Coordinator: coord,
		Logger:      logger,
		Pump:        realtime.PumpConfig{PingInterval: time.Minute, WriteTimeout: time.Second},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = outbox.Run(ctx) }()

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { registry.CloseAll("test finished") })
	t.Cleanup(cancel)

	h := &harness{t: t, store: store, tokens: tokens, server: s, http: srv, registry: registry}
	h.admin = h.addUser("instructor", true)
	h.adminToken = h.token(h.admin.ID)
	return h
}

func (h *harness) addUser(name string, admin bool) *models.User {
	h.t.Helper()
	u := &models.User{
		Email:    name + "@laurentian.ca",
		Password: "secret-" + name,
		Username: name,
		IsAdmin:  admin,
	}
	require.NoError(h.t, h.store.CreateUser(context.Background(), u))
	return u
}

func (h *harness) token(id uuid.UUID) string {
	h.t.Helper()
	tok, err := h.tokens.CreateToken(id)
	require.NoError(h.t, err)
	return tok
}

// do sends a JSON request and decodes a JSON response into out when out is
// not nil.
func (h *harness) do(method, path, token string, body any, out any) *http.Response {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.http.URL+path, rd)
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}
