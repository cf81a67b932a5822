package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addUser(m *MemoryStore, name string, xp int, admin bool) uuid.UUID {
	id := uuid.New()
	m.AddUser(&models.User{ID: id, Email: name + "@example.com", Username: name, IsAdmin: admin})
	if xp > 0 {
		p := models.NewPlayerState(id)
		p.TotalXP = xp
		m.SetPlayerState(p)
	}
	return id
}

func TestMemoryStoreStagesWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	id := addUser(m, "ivy", 0, false)

	t.Run("callback error discards writes", func(t *testing.T) {
		boom := errors.New("boom")
		err := m.WithUserLock(ctx, id, func(ctx context.Context, tx PlayerTx) error {
			p, err := tx.GetPlayerState(ctx)
			require.NoError(t, err)
			p.Gold = 99
			require.NoError(t, tx.CommitPlayerState(ctx, p, &models.RewardEvent{UserID: id}, nil))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		p, err := m.GetPlayerState(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Gold)
		assert.Empty(t, m.RewardEvents(id))
	})

	t.Run("failed commit discards writes", func(t *testing.T) {
		m.FailCommit = errors.New("disk full")
		defer func() { m.FailCommit = nil }()

		err := m.WithUserLock(ctx, id, func(ctx context.Context, tx PlayerTx) error {
			p, _ := tx.GetPlayerState(ctx)
			p.Gold = 50
			return tx.CommitPlayerState(ctx, p, nil, &models.RollAttempt{UserID: id})
		})
		require.Error(t, err)
		p, _ := m.GetPlayerState(ctx, id)
		assert.Equal(t, 3, p.Gold)
		assert.Empty(t, m.RollAttempts(id))
	})

	t.Run("successful commit persists state and records", func(t *testing.T) {
		err := m.WithUserLock(ctx, id, func(ctx context.Context, tx PlayerTx) error {
			p, _ := tx.GetPlayerState(ctx)
			p.Gold = 7
			return tx.CommitPlayerState(ctx, p, &models.RewardEvent{UserID: id, Amount: 4}, &models.RollAttempt{UserID: id})
		})
		require.NoError(t, err)
		p, _ := m.GetPlayerState(ctx, id)
		assert.Equal(t, 7, p.Gold)
		assert.Len(t, m.RewardEvents(id), 1)
		assert.Len(t, m.RollAttempts(id), 1)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := m.WithUserLock(ctx, uuid.New(), func(context.Context, PlayerTx) error { return nil })
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
	})
}

func TestMemoryStoreReleasesUserLocks(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = addUser(m, fmt.Sprintf("u%d", i), 0, false)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := m.WithUserLock(ctx, id, func(ctx context.Context, tx PlayerTx) error {
					p, err := tx.GetPlayerState(ctx)
					if err != nil {
						return err
					}
					p.Gold++
					return tx.CommitPlayerState(ctx, p, nil, nil)
				})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	for _, id := range ids {
		p, err := m.GetPlayerState(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 8, p.Gold, "writes to one user are serialized")
	}
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	assert.Empty(t, m.userLocks)
}

func TestMemoryStoreLookups(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	id := addUser(m, "Zed", 0, false)

	err := m.WithUserLock(ctx, id, func(ctx context.Context, tx PlayerTx) error {
		st, err := tx.Station(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, models.SkillSpeed, st.RequiredSkill)

		_, err = tx.Station(ctx, 11)
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))

		_, err = tx.Assignment(ctx, uuid.New())
		assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
		return nil
	})
	require.NoError(t, err)

	u, err := m.GetUserByEmail(ctx, "  ZED@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
}

func TestMemoryStoreTopN(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	addUser(m, "admin", 5000, true)
	bea := addUser(m, "bea", 600, false)
	abe := addUser(m, "abe", 600, false)
	cal := addUser(m, "cal", 1200, false)
	addUser(m, "dee", 0, false)

	top, err := m.TopN(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, cal, top[0].UserID)
	assert.Equal(t, models.MedalGold, top[0].MedalTier)
	assert.Equal(t, 7, top[0].CurrentLevel)
	// ties break by username
	assert.Equal(t, abe, top[1].UserID)
	assert.Equal(t, bea, top[2].UserID)
	for i, e := range top {
		assert.Equal(t, i+1, e.Rank)
	}

	all, err := m.TopN(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4, "admins are excluded")
}

func TestConnConfigURL(t *testing.T) {
	c := ConnConfig{User: "u", Password: "p", Host: "db", Port: "5433", Database: "olympics"}
	assert.Equal(t, "postgres://u:p@db:5433/olympics", c.URL())
}
