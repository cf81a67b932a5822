package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/middleware"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/realtime"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/reward"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxClientFrame bounds a single inbound frame.
const maxClientFrame = 32 << 10

var errLeaveDefaultRoom = apperr.New(apperr.CodeForbidden, "cannot leave "+realtime.DefaultRoom)

type connectionEstablished struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	UserID       uuid.UUID `json:"user_id"`
	ServerTime   time.Time `json:"server_time"`
}

type initialData struct {
	UserProfile *models.Profile     `json:"user_profile"`
	Leaderboard *models.Leaderboard `json:"leaderboard"`
}

type roomData struct {
	Room string `json:"room"`
}

// RealtimeWSHandler upgrades GET /realtime. Authentication happens after the
// upgrade so a rejected client receives a specific close code.
func (s *Server) RealtimeWSHandler(w http.ResponseWriter, r *http.Request) {
	remoteAddr := r.RemoteAddr
	hs := realtime.NewHandshake()
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	c.SetReadLimit(maxClientFrame)
	_ = hs.Authenticate()

	user, code, err := s.authenticateSocket(r)
	if err != nil {
		_ = hs.Reject()
		s.Logger.WithFields(logrus.Fields{
			"remote": remoteAddr,
			"state":  hs.State(),
		}).WithError(err).Info("websocket rejected")
		c.Close(code, apperr.PublicMessage(err))
		return
	}

	conn, err := hs.Complete(s.Registry, realtime.WebSocket{Conn: c}, user.ID)
	if err != nil {
		s.Logger.WithField("state", hs.State()).WithError(err).Error("websocket handshake out of order")
		c.Close(websocket.StatusInternalError, "internal error")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	middleware.LogWebSocketConnect(s.Logger, remoteAddr, user.ID, conn.ID)

	go conn.WritePump(ctx, s.Pump, func(err error) {
		s.Logger.WithField("connection_id", conn.ID).WithError(err).Debug("write pump stopped")
		s.Registry.DisconnectWithStatus(conn.ID, websocket.StatusInternalError, "write failed")
	})

	s.sendOrLog(conn.ID, realtime.EventConnectionEstablished, connectionEstablished{
		ConnectionID: conn.ID,
		UserID:       user.ID,
		ServerTime:   time.Now().UTC(),
	})
	s.sendInitialData(ctx, conn.ID, user)

	err = s.readPump(ctx, c, conn, user)
	s.Registry.Disconnect(conn.ID, "client disconnected")
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
		err = nil
	}
	middleware.LogWebSocketDisconnect(s.Logger, remoteAddr, user.ID, conn.ID, err)
}

// authenticateSocket returns the close code to use when it fails.
func (s *Server) authenticateSocket(r *http.Request) (*models.User, websocket.StatusCode, error) {
	claims, err := s.Tokens.VerifyToken(middleware.ExtractToken(r))
	if err != nil {
		return nil, InvalidAuthTokenError, err
	}
	if claims.UserID == uuid.Nil {
		return nil, InvalidUserIDError, apperr.New(apperr.CodeAuthentication, "invalid user id")
	}
	u, err := s.Store.GetUserByID(r.Context(), claims.UserID)
	switch {
	case apperr.HasCode(err, apperr.CodeNotFound):
		return nil, UserNotFoundError, apperr.Wrap(err, apperr.CodeAuthentication, "user not found")
	case err != nil:
		return nil, AuthUnavailableError, apperr.Internal(err, "user lookup failed")
	}
	return u, 0, nil
}

func (s *Server) sendInitialData(ctx context.Context, connID uuid.UUID, u *models.User) {
	profile, err := s.profile(ctx, u)
	if err != nil {
		s.sendErrorOrLog(connID, err)
		return
	}
	lb, err := s.Emitter.Leaderboard(ctx)
	if err != nil {
		s.sendErrorOrLog(connID, err)
		return
	}
	s.sendOrLog(connID, realtime.EventInitialData, initialData{UserProfile: profile, Leaderboard: lb})
}

// readPump handles client frames until the socket fails or ctx ends. Every
// frame, valid or not, counts as activity for the idle sweeper.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *realtime.Connection, u *models.User) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		s.Registry.Touch(conn.ID)

		if typ != websocket.MessageText {
			s.sendErrorOrLog(conn.ID, apperr.New(apperr.CodeMalformedMessage, "binary frames are not supported"))
			continue
		}
		msg, err := realtime.ParseClientMessage(data)
		if err != nil {
			s.sendErrorOrLog(conn.ID, err)
			continue
		}
		if err := s.handleClientMessage(ctx, conn, u, msg); err != nil {
			s.sendErrorOrLog(conn.ID, err)
		}
	}
}

func (s *Server) handleClientMessage(ctx context.Context, conn *realtime.Connection, u *models.User, msg *realtime.ClientMessage) error {
	switch msg.Type {
	case realtime.ClientPing:
		return s.Dispatcher.SendToConnection(conn.ID, realtime.EventPong, realtime.PongData{
			ClientTimestamp: msg.Timestamp,
			ServerTime:      time.Now().UTC(),
		})

	case realtime.ClientRequestLeaderboard:
		if !s.Outbox.Enqueue(s.Emitter.LeaderboardNotification(realtime.ToConnection(conn.ID))) {
			return errOutboxFull
		}
		return nil

	case realtime.ClientRequestProfile:
		p, err := s.profile(ctx, u)
		if err != nil {
			return err
		}
		return s.Dispatcher.SendToConnection(conn.ID, realtime.EventProgressUpdate, p)

	case realtime.ClientJoinRoom:
		room, err := msg.Room()
		if err != nil {
			return err
		}
		s.Registry.JoinRoom(conn.ID, room)
		return s.Dispatcher.SendToConnection(conn.ID, realtime.EventRoomJoined, roomData{Room: room})

	case realtime.ClientLeaveRoom:
		room, err := msg.Room()
		if err != nil {
			return err
		}
		if room == realtime.DefaultRoom {
			return errLeaveDefaultRoom
		}
		s.Registry.LeaveRoom(conn.ID, room)
		return s.Dispatcher.SendToConnection(conn.ID, realtime.EventRoomLeft, roomData{Room: room})

	case realtime.ClientRollDice:
		station, err := msg.StationID()
		if err != nil {
			return err
		}
		// the outcome reaches every device of the user through progress_update
		_, err = s.Coordinator.Apply(ctx, u.ID, u.ID, reward.StationAttempt{StationID: station})
		return err
	}
	return apperr.New(apperr.CodeMalformedMessage, "unknown message type: "+string(msg.Type))
}

func (s *Server) sendOrLog(connID uuid.UUID, t realtime.EventType, data any) {
	if err := s.Dispatcher.SendToConnection(connID, t, data); err != nil && !errors.Is(err, realtime.ErrUnknownConn) {
		s.Logger.WithField("connection_id", connID).WithError(err).Debugf("failed to send %s", t)
	}
}

func (s *Server) sendErrorOrLog(connID uuid.UUID, err error) {
	if sendErr := s.Dispatcher.SendError(connID, err); sendErr != nil && !errors.Is(sendErr, realtime.ErrUnknownConn) {
		s.Logger.WithField("connection_id", connID).WithError(sendErr).Debug("failed to send error event")
	}
}
