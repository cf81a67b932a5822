package realtime

import (
	"context"

	"github.com/coder/websocket"
)

// Socket is the transport a Connection owns. The production implementation is
// a coder/websocket connection; tests use in-memory fakes.
type Socket interface {
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// WebSocket adapts a *websocket.Conn to Socket. Frames are always text.
type WebSocket struct {
	Conn *websocket.Conn
}

func (s WebSocket) Write(ctx context.Context, data []byte) error {
	return s.Conn.Write(ctx, websocket.MessageText, data)
}

func (s WebSocket) Ping(ctx context.Context) error {
	return s.Conn.Ping(ctx)
}

func (s WebSocket) Close(code websocket.StatusCode, reason string) error {
	return s.Conn.Close(code, reason)
}
