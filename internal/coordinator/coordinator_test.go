package coordinator

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/database"
	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/reward"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type recordingHook struct {
	mu      sync.Mutex
	results []*Result
	err     error
}

func (h *recordingHook) AfterCommit(_ context.Context, res *Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, res)
	return h.err
}

func (h *recordingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

func setup(t *testing.T, roll int) (*Coordinator, *database.MemoryStore, *recordingHook) {
	t.Helper()
	store := database.NewMemoryStore()
	hook := &recordingHook{}
	c := New(store, reward.NewEngine(reward.FixedRoller(roll)), testLogger(), hook)
	return c, store, hook
}

func addStudent(store *database.MemoryStore, name string) uuid.UUID {
	id := uuid.New()
	store.AddUser(&models.User{ID: id, Email: name + "@example.com", Username: name})
	return id
}

func TestApplyPersistsAndNotifies(t *testing.T) {
	c, store, hook := setup(t, 1)
	student := addStudent(store, "ana")
	instructor := uuid.New()
	assignment := models.Assignment{ID: uuid.New(), Name: "Lab 1", UnitID: uuid.New(), MaxXP: 100}
	store.AddAssignment(assignment)

	start := models.NewPlayerState(student)
	start.TotalXP, start.CurrentXP = 180, 180
	store.SetPlayerState(start)

	res, err := c.Apply(context.Background(), student, instructor, reward.AssignmentAward{AssignmentID: assignment.ID, Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, 180, res.Before.TotalXP)
	assert.Equal(t, 230, res.After.TotalXP)
	assert.Equal(t, 2, res.After.Level())

	persisted, err := store.GetPlayerState(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, 230, persisted.TotalXP)
	require.Len(t, store.RewardEvents(student), 1)
	assert.Equal(t, instructor, store.RewardEvents(student)[0].AwardedBy)

	require.Equal(t, 1, hook.count())
	assert.Same(t, res, hook.results[0])
}

func TestValidationFailureWritesNothing(t *testing.T) {
	c, store, hook := setup(t, 1)
	student := addStudent(store, "ben")
	assignment := models.Assignment{ID: uuid.New(), Name: "Quiz", UnitID: uuid.New(), MaxXP: 100}
	store.AddAssignment(assignment)

	_, err := c.Apply(context.Background(), student, uuid.New(), reward.AssignmentAward{AssignmentID: assignment.ID, Amount: 150})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAwardValidation, apperr.CodeOf(err))

	_, err = c.Apply(context.Background(), student, uuid.New(), reward.AssignmentAward{AssignmentID: uuid.New(), Amount: 10})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = c.Apply(context.Background(), uuid.New(), uuid.New(), reward.BonusAward{Amount: 10})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	state, _ := store.GetPlayerState(context.Background(), student)
	assert.Zero(t, state.TotalXP)
	assert.Empty(t, store.RewardEvents(student))
	assert.Zero(t, hook.count())
}

func TestStorageFailureIsInternal(t *testing.T) {
	c, store, hook := setup(t, 1)
	student := addStudent(store, "cy")
	store.FailCommit = errors.New("disk full")

	_, err := c.Apply(context.Background(), student, uuid.New(), reward.BonusAward{Amount: 10})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	assert.Equal(t, "internal server error", apperr.PublicMessage(err))

	store.FailCommit = nil
	state, _ := store.GetPlayerState(context.Background(), student)
	assert.Zero(t, state.TotalXP)
	assert.Zero(t, hook.count())
}

func TestHookFailureDoesNotFailApply(t *testing.T) {
	c, store, hook := setup(t, 1)
	hook.err = errors.New("queue full")
	student := addStudent(store, "dee")

	res, err := c.Apply(context.Background(), student, uuid.New(), reward.GoldAward{Amount: 4})
	require.NoError(t, err)
	assert.Equal(t, 7, res.After.Gold)
}

func TestConcurrentAwardsSameUser(t *testing.T) {
	c, store, hook := setup(t, 1)
	student := addStudent(store, "eve")
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Apply(context.Background(), student, uuid.New(), reward.BonusAward{Amount: 10})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := store.GetPlayerState(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, 10*n, state.TotalXP)
	assert.Len(t, store.RewardEvents(student), n)
	assert.Equal(t, n, hook.count())
	assert.Zero(t, c.locks.size(), "idle users must not keep lock entries")

	// Hooks observe a player's results in commit order.
	for i, res := range hook.results {
		assert.Equal(t, 10*(i+1), res.After.TotalXP)
	}
}

func TestConcurrentRollsWithOneMove(t *testing.T) {
	c, store, _ := setup(t, 38)
	student := addStudent(store, "fay")
	start := models.NewPlayerState(student)
	start.GameboardMoves = 1
	start.Skills.Strength = 2
	store.SetPlayerState(start)

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Apply(context.Background(), student, student, reward.StationAttempt{StationID: 1})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, reward.ErrNoMoves):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 1, rejected.Load())
	state, _ := store.GetPlayerState(context.Background(), student)
	assert.Zero(t, state.GameboardMoves)
	assert.Equal(t, 2, state.GameboardPosition)
	assert.Len(t, store.RollAttempts(student), 1)
}

// Different users never wait on each other.
func TestDifferentUsersProceedInParallel(t *testing.T) {
	store := database.NewMemoryStore()
	a := addStudent(store, "gus")
	b := addStudent(store, "hal")

	blocked := make(chan struct{})
	release := make(chan struct{})
	c := New(store, reward.NewEngine(nil), testLogger(), HookFunc(func(_ context.Context, res *Result) error {
		if res.UserID == a {
			close(blocked)
			<-release
		}
		return nil
	}))

	go func() {
		_, _ = c.Apply(context.Background(), a, uuid.New(), reward.BonusAward{Amount: 1})
	}()
	<-blocked

	done := make(chan error, 1)
	go func() {
		_, err := c.Apply(context.Background(), b, uuid.New(), reward.BonusAward{Amount: 1})
		done <- err
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("user b waited on user a")
	}
	close(release)
}

func TestLockWaitHonoursContext(t *testing.T) {
	locks := newKeyedLocks()
	id := uuid.New()
	unlock, err := locks.lock(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.lock(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Zero(t, locks.size())
}

func TestResetZeroesState(t *testing.T) {
	c, store, hook := setup(t, 1)
	student := addStudent(store, "ivy")
	st := models.NewPlayerState(student)
	st.TotalXP, st.Gold, st.GameboardPosition = 800, 20, 5
	store.SetPlayerState(st)

	res, err := c.Reset(context.Background(), student, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, res.Event)
	assert.Equal(t, 800, res.Before.TotalXP)

	state, _ := store.GetPlayerState(context.Background(), student)
	assert.Zero(t, state.TotalXP)
	assert.Zero(t, state.Gold)
	assert.Equal(t, 1, state.GameboardPosition)
	assert.Equal(t, 1, hook.count())
}

func TestBulkApplyReportsPerItem(t *testing.T) {
	c, store, _ := setup(t, 1)
	a := addStudent(store, "jo")
	b := addStudent(store, "kim")

	out := c.BulkApply(context.Background(), uuid.New(), []BulkItem{
		{UserID: a, Stimulus: reward.BonusAward{Amount: 25}},
		{UserID: uuid.New(), Stimulus: reward.BonusAward{Amount: 25}},
		{UserID: b, Stimulus: reward.MovesAward{Amount: 0}},
		{UserID: b, Stimulus: reward.MovesAward{Amount: 3}},
	})
	require.Len(t, out, 4)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(out[1].Err))
	assert.ErrorIs(t, out[2].Err, reward.ErrNonPositive)
	assert.NoError(t, out[3].Err)
	assert.Equal(t, 3, out[3].Result.After.GameboardMoves)
}

func TestApplyNilStimulus(t *testing.T) {
	c, store, _ := setup(t, 1)
	_, err := c.Apply(context.Background(), addStudent(store, "lu"), uuid.New(), nil)
	assert.ErrorIs(t, err, reward.ErrUnknownStimulus)
}
