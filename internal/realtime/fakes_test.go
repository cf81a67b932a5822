package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// fakeSocket records frames instead of writing them to a network connection.
type fakeSocket struct {
	mu       sync.Mutex
	frames   [][]byte
	closes   int
	code     websocket.StatusCode
	failNext bool
	block    chan struct{}
	pings    int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{}
}

func (s *fakeSocket) Write(ctx context.Context, data []byte) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		return errors.New("broken pipe")
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSocket) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return nil
}

func (s *fakeSocket) Close(code websocket.StatusCode, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.code = code
	return nil
}

func (s *fakeSocket) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *fakeSocket) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// drain pulls every queued frame off a connection without a write loop.
func drain(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-c.out:
			out = append(out, f)
		default:
			return out
		}
	}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *manualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *manualClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
