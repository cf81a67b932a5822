package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/coordinator"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/reward"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPusher struct {
	mu     sync.Mutex
	pushed map[string][][]byte
	err    error
}

func (m *mockPusher) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "rpush", key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	if m.pushed == nil {
		m.pushed = make(map[string][][]byte)
	}
	for _, v := range values {
		m.pushed[key] = append(m.pushed[key], v.([]byte))
	}
	cmd.SetVal(int64(len(m.pushed[key])))
	return cmd
}

func (m *mockPusher) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pushed[key])
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleResult() *coordinator.Result {
	user := uuid.New()
	before := models.NewPlayerState(user)
	after := before.Clone()
	after.TotalXP = 40
	return &coordinator.Result{
		UserID:   user,
		Actor:    uuid.New(),
		Stimulus: reward.BonusAward{Amount: 40},
		Before:   before,
		After:    after,
		Event:    &models.RewardEvent{Amount: 40, Resource: models.ResourceXP},
		At:       time.Now(),
	}
}

func TestPublisherForwardsToRedis(t *testing.T) {
	pusher := &mockPusher{}
	p := NewActivityPublisher(pusher, "activity_test", 8, testLogger())
	res := sampleResult()
	require.NoError(t, p.AfterCommit(context.Background(), res))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool { return pusher.count("activity_test") == 1 }, time.Second, 5*time.Millisecond)

	var got models.Activity
	require.NoError(t, json.Unmarshal(pusher.pushed["activity_test"][0], &got))
	assert.Equal(t, res.UserID, got.UserID)
	assert.Equal(t, res.Actor, got.ActorID)
	assert.Equal(t, "award_bonus_xp", got.Action)

	var payload activityPayload
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, 40, payload.After.TotalXP)
	assert.Zero(t, payload.Before.TotalXP)
}

func TestPublisherDropsWhenBufferFull(t *testing.T) {
	p := NewActivityPublisher(&mockPusher{}, "", 1, testLogger())
	require.NoError(t, p.AfterCommit(context.Background(), sampleResult()))
	assert.Error(t, p.AfterCommit(context.Background(), sampleResult()))

	_, dropped := p.Stats()
	assert.EqualValues(t, 1, dropped)
}

func TestPublishError(t *testing.T) {
	p := NewActivityPublisher(&mockPusher{err: errors.New("connection refused")}, "q", 1, testLogger())
	err := p.Publish(context.Background(), models.Activity{ID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "q")
}
