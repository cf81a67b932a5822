package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectJoinsDefaultRoom(t *testing.T) {
	r := NewRegistry(testLogger())
	user := uuid.New()
	c := r.Connect(newFakeSocket(), user)

	assert.Equal(t, StateConnected, c.State())
	assert.ElementsMatch(t, []string{DefaultRoom}, r.RoomsOf(c.ID))
	assert.Len(t, r.ConnectionsInRoom(DefaultRoom), 1)
	assert.Len(t, r.ConnectionsForUser(user), 1)

	got, ok := r.Get(c.ID)
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	r := NewRegistry(testLogger())
	sock := newFakeSocket()
	user := uuid.New()
	c := r.Connect(sock, user)
	r.JoinRoom(c.ID, "teams")

	assert.True(t, r.Disconnect(c.ID, "bye"))
	assert.False(t, r.Disconnect(c.ID, "bye again"))

	assert.Equal(t, 1, sock.Closes())
	assert.Equal(t, StateDisconnected, c.State())
	assert.Empty(t, r.ConnectionsForUser(user))
	assert.Empty(t, r.ConnectionsInRoom("teams"))
	assert.Empty(t, r.ConnectionsInRoom(DefaultRoom))

	stats := r.Stats()
	assert.Zero(t, stats.TotalConnections)
	assert.Zero(t, stats.UniqueUsers)
	assert.Empty(t, stats.Rooms)
}

func TestConcurrentDisconnectRunsCleanupOnce(t *testing.T) {
	var hooks int
	var mu sync.Mutex
	r := NewRegistry(testLogger(), WithDisconnectHook(func(*Connection) {
		mu.Lock()
		hooks++
		mu.Unlock()
	}))
	sock := newFakeSocket()
	c := r.Connect(sock, uuid.New())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Disconnect(c.ID, "race")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, sock.Closes())
	assert.Equal(t, 1, hooks)
}

func TestRoomJoinLeave(t *testing.T) {
	r := NewRegistry(testLogger())
	c := r.Connect(newFakeSocket(), uuid.New())

	require.True(t, r.JoinRoom(c.ID, "unit-3"))
	require.True(t, r.JoinRoom(c.ID, "unit-3"))
	assert.Len(t, r.ConnectionsInRoom("unit-3"), 1)
	assert.Equal(t, 1, r.Stats().Rooms["unit-3"])

	require.True(t, r.LeaveRoom(c.ID, "unit-3"))
	require.True(t, r.LeaveRoom(c.ID, "unit-3"))
	assert.Empty(t, r.ConnectionsInRoom("unit-3"))
	_, exists := r.Stats().Rooms["unit-3"]
	assert.False(t, exists, "empty rooms are removed")

	assert.False(t, r.JoinRoom(uuid.New(), "unit-3"))
}

func TestMultipleDevicesPerUser(t *testing.T) {
	r := NewRegistry(testLogger())
	user := uuid.New()
	a := r.Connect(newFakeSocket(), user)
	b := r.Connect(newFakeSocket(), user)
	r.Connect(newFakeSocket(), uuid.New())

	assert.ElementsMatch(t, []*Connection{a, b}, r.ConnectionsForUser(user))
	stats := r.Stats()
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, 2, stats.UniqueUsers)
	assert.Equal(t, 3, stats.Rooms[DefaultRoom])

	r.Disconnect(a.ID, "closed tab")
	assert.ElementsMatch(t, []*Connection{b}, r.ConnectionsForUser(user))
}

func TestStaleAndSweepIdle(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(testLogger(), WithClock(clock.Now))
	quiet := newFakeSocket()
	idle := r.Connect(quiet, uuid.New())
	active := r.Connect(newFakeSocket(), uuid.New())

	clock.Advance(90 * time.Second)
	r.Touch(active.ID)
	clock.Advance(40 * time.Second)

	assert.Equal(t, []uuid.UUID{idle.ID}, r.Stale(time.Minute))
	assert.Equal(t, 1, r.SweepIdle(time.Minute))
	assert.Equal(t, websocket.StatusPolicyViolation, quiet.code)
	_, ok := r.Get(idle.ID)
	assert.False(t, ok)
	_, ok = r.Get(active.ID)
	assert.True(t, ok)
}

func TestAnsweredPingsKeepConnectionAlive(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(testLogger(), WithClock(clock.Now))
	viewer := r.Connect(newFakeSocket(), uuid.New())
	quiet := r.Connect(newFakeSocket(), uuid.New())

	clock.Advance(90 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go viewer.WritePump(ctx, PumpConfig{PingInterval: 10 * time.Millisecond, WriteTimeout: time.Second}, func(error) {})

	// the viewer never sends a frame, only answers pings
	require.Eventually(t, func() bool {
		return viewer.LastActivity().Equal(clock.Now())
	}, time.Second, 5*time.Millisecond)
	cancel()

	clock.Advance(40 * time.Second)
	assert.Equal(t, 1, r.SweepIdle(time.Minute))
	_, ok := r.Get(viewer.ID)
	assert.True(t, ok, "pinged connection must survive the sweep")
	_, ok = r.Get(quiet.ID)
	assert.False(t, ok)
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(testLogger())
	socks := []*fakeSocket{newFakeSocket(), newFakeSocket(), newFakeSocket()}
	for _, s := range socks {
		r.Connect(s, uuid.New())
	}
	assert.Equal(t, 3, r.CloseAll("shutdown"))
	for _, s := range socks {
		assert.Equal(t, 1, s.Closes())
		assert.Equal(t, websocket.StatusGoingAway, s.code)
	}
	assert.Zero(t, r.Stats().TotalConnections)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(testLogger())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := r.Connect(newFakeSocket(), uuid.New())
			r.JoinRoom(c.ID, "shared")
			_ = r.ConnectionsInRoom("shared")
			_ = r.Stats()
			if i%2 == 0 {
				r.Disconnect(c.ID, "done")
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, r.Stats().TotalConnections)
	assert.Len(t, r.ConnectionsInRoom("shared"), 25)
}
