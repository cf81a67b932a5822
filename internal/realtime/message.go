package realtime

import (
	"encoding/json"
	"strings"
	"time"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
)

// EventType is the closed set of server-to-client message types.
type EventType string

const (
	EventConnectionEstablished   EventType = "connection_established"
	EventInitialData             EventType = "initial_data"
	EventPong                    EventType = "pong"
	EventLeaderboardUpdate       EventType = "leaderboard_update"
	EventProgressUpdate          EventType = "progress_update"
	EventAchievementNotification EventType = "achievement_notification"
	EventAwardNotification       EventType = "award_notification"
	EventRoomJoined              EventType = "room_joined"
	EventRoomLeft                EventType = "room_left"
	EventSystemAnnouncement      EventType = "system_announcement"
	EventError                   EventType = "error"
)

// ClientMessageType is the closed set of client-to-server message types.
type ClientMessageType string

const (
	ClientPing               ClientMessageType = "ping"
	ClientRequestLeaderboard ClientMessageType = "request_leaderboard"
	ClientRequestProfile     ClientMessageType = "request_profile"
	ClientJoinRoom           ClientMessageType = "join_room"
	ClientLeaveRoom          ClientMessageType = "leave_room"
	ClientRollDice           ClientMessageType = "roll_dice"
)

func (t ClientMessageType) valid() bool {
	switch t {
	case ClientPing, ClientRequestLeaderboard, ClientRequestProfile,
		ClientJoinRoom, ClientLeaveRoom, ClientRollDice:
		return true
	}
	return false
}

// MaxRoomNameLength bounds room names accepted from clients.
const MaxRoomNameLength = 64

// Envelope is the frame shape in both directions.
type Envelope struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// ClientMessage is a validated inbound frame. Data is kept raw and decoded by
// the accessor for the message's type.
type ClientMessage struct {
	Type      ClientMessageType `json:"type"`
	Data      json.RawMessage   `json:"data,omitempty"`
	Timestamp json.RawMessage   `json:"timestamp,omitempty"`
}

// ParseClientMessage decodes an inbound frame. Unknown types and undecodable
// frames are rejected with a MalformedMessage error before any handling.
func ParseClientMessage(raw []byte) (*ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeMalformedMessage, "invalid JSON format")
	}
	if m.Type == "" {
		return nil, apperr.New(apperr.CodeMalformedMessage, "missing message type")
	}
	if !m.Type.valid() {
		return nil, apperr.New(apperr.CodeMalformedMessage, "unknown message type: "+string(m.Type))
	}
	return &m, nil
}

// Room returns the room named by a join_room or leave_room message. The data
// may be a bare string or an object with a "room" field.
func (m *ClientMessage) Room() (string, error) {
	var room string
	if err := json.Unmarshal(m.Data, &room); err != nil {
		var obj struct {
			Room string `json:"room"`
		}
		if err := json.Unmarshal(m.Data, &obj); err != nil {
			return "", apperr.New(apperr.CodeMalformedMessage, "room name required")
		}
		room = obj.Room
	}
	room = strings.TrimSpace(room)
	if room == "" || len(room) > MaxRoomNameLength {
		return "", apperr.New(apperr.CodeMalformedMessage, "invalid room name")
	}
	return room, nil
}

// StationID returns the station of a roll_dice message, given either as a bare
// number or as {"station_id": n}.
func (m *ClientMessage) StationID() (int, error) {
	var id int
	if err := json.Unmarshal(m.Data, &id); err != nil {
		var obj struct {
			StationID *int `json:"station_id"`
		}
		if err := json.Unmarshal(m.Data, &obj); err != nil || obj.StationID == nil {
			return 0, apperr.New(apperr.CodeMalformedMessage, "station_id required")
		}
		id = *obj.StationID
	}
	if id <= 0 {
		return 0, apperr.New(apperr.CodeMalformedMessage, "invalid station_id")
	}
	return id, nil
}

// PongData echoes the client's timestamp back.
type PongData struct {
	ClientTimestamp json.RawMessage `json:"client_timestamp,omitempty"`
	ServerTime      time.Time       `json:"server_time"`
}
