package database

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/auth"
	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. It backs tests and single-node
// development runs. Per-player locking is a mutex per user id; writes made in
// a WithUserLock callback are staged and applied only if it returns nil.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]*models.User
	states      map[uuid.UUID]*models.PlayerState
	assignments map[uuid.UUID]*models.Assignment
	stations    map[int]*models.Station
	events      []models.RewardEvent
	rolls       []models.RollAttempt
	activity    []models.Activity

	lockMu    sync.Mutex
	userLocks map[uuid.UUID]*memoryLock

	// FailCommit, when set, is returned by every commit. Used to exercise
	// rollback paths.
	FailCommit error
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		users:       make(map[uuid.UUID]*models.User),
		states:      make(map[uuid.UUID]*models.PlayerState),
		assignments: make(map[uuid.UUID]*models.Assignment),
		stations:    make(map[int]*models.Station),
		userLocks:   make(map[uuid.UUID]*memoryLock),
	}
	for _, st := range DefaultStations() {
		m.stations[st.ID] = &st
	}
	return m
}

// AddUser stores a user as is. The password must already be hashed.
func (m *MemoryStore) AddUser(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	cp.Email = strings.ToLower(strings.TrimSpace(cp.Email))
	m.users[u.ID] = &cp
}

// CreateUser hashes the password and stores the user.
func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	hash, err := auth.CreateHash(u.Password, auth.Params)
	if err != nil {
		return err
	}
	u.Password = hash
	m.AddUser(u)
	return nil
}

func (m *MemoryStore) AddAssignment(a models.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = &a
}

func (m *MemoryStore) AddStation(st models.Station) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stations[st.ID] = &st
}

// SetPlayerState overwrites a player's state directly, bypassing locking.
func (m *MemoryStore) SetPlayerState(p *models.PlayerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[p.UserID] = p.Clone()
}

func (m *MemoryStore) RewardEvents(userID uuid.UUID) []models.RewardEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RewardEvent
	for _, ev := range m.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out
}

func (m *MemoryStore) RollAttempts(userID uuid.UUID) []models.RollAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RollAttempt
	for _, r := range m.rolls {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

// memoryLock is reference counted so a user's entry is dropped once nobody
// holds or waits on it.
type memoryLock struct {
	mu   sync.Mutex
	refs int
}

func (m *MemoryStore) lockUser(id uuid.UUID) func() {
	m.lockMu.Lock()
	l, ok := m.userLocks[id]
	if !ok {
		l = &memoryLock{}
		m.userLocks[id] = l
	}
	l.refs++
	m.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.lockMu.Lock()
		defer m.lockMu.Unlock()
		l.refs--
		if l.refs == 0 {
			delete(m.userLocks, id)
		}
	}
}

func (m *MemoryStore) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, tx PlayerTx) error) error {
	unlock := m.lockUser(userID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	_, known := m.users[userID]
	m.mu.RUnlock()
	if !known {
		return apperr.NotFound("user %s not found", userID)
	}

	tx := &memoryTx{store: m, userID: userID}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.state == nil {
		return nil
	}
	if m.FailCommit != nil {
		return m.FailCommit
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = tx.state
	if tx.event != nil {
		m.events = append(m.events, *tx.event)
	}
	if tx.roll != nil {
		m.rolls = append(m.rolls, *tx.roll)
	}
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	userID uuid.UUID

	state *models.PlayerState
	event *models.RewardEvent
	roll  *models.RollAttempt
}

func (t *memoryTx) GetPlayerState(_ context.Context) (*models.PlayerState, error) {
	return t.store.loadState(t.userID), nil
}

func (t *memoryTx) Assignment(_ context.Context, id uuid.UUID) (*models.Assignment, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	a, ok := t.store.assignments[id]
	if !ok {
		return nil, apperr.NotFound("assignment %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (t *memoryTx) Station(_ context.Context, id int) (*models.Station, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	st, ok := t.store.stations[id]
	if !ok {
		return nil, apperr.NotFound("station %d not found", id)
	}
	cp := *st
	return &cp, nil
}

func (t *memoryTx) CommitPlayerState(_ context.Context, state *models.PlayerState, ev *models.RewardEvent, roll *models.RollAttempt) error {
	t.state = state.Clone()
	t.event = ev
	t.roll = roll
	return nil
}

func (t *memoryTx) ResetPlayerState(_ context.Context, state *models.PlayerState) error {
	t.state = state.Clone()
	return nil
}

func (m *MemoryStore) loadState(userID uuid.UUID) *models.PlayerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.states[userID]; ok {
		return p.Clone()
	}
	return models.NewPlayerState(userID)
}

func (m *MemoryStore) GetPlayerState(_ context.Context, userID uuid.UUID) (*models.PlayerState, error) {
	m.mu.RLock()
	_, known := m.users[userID]
	m.mu.RUnlock()
	if !known {
		return nil, apperr.NotFound("user %s not found", userID)
	}
	return m.loadState(userID), nil
}

func (m *MemoryStore) TopN(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	m.mu.RLock()
	entries := make([]models.LeaderboardEntry, 0, len(m.users))
	for _, u := range m.users {
		if u.IsAdmin {
			continue
		}
		p, ok := m.states[u.ID]
		if !ok {
			p = models.NewPlayerState(u.ID)
		}
		entries = append(entries, models.LeaderboardEntry{
			UserID:            u.ID,
			Username:          u.Username,
			UserProgram:       u.UserProgram,
			TotalXP:           p.TotalXP,
			Gold:              p.Gold,
			GameboardPosition: p.GameboardPosition,
		})
	}
	m.mu.RUnlock()

	slices.SortFunc(entries, func(a, b models.LeaderboardEntry) int {
		if c := cmp.Compare(b.TotalXP, a.TotalXP); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return rankEntries(entries), nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user %s not found", email)
}

// InsertActivityBatch appends activity records.
func (m *MemoryStore) InsertActivityBatch(_ context.Context, batch []models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, batch...)
	return nil
}

func (m *MemoryStore) Activity() []models.Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.activity)
}
