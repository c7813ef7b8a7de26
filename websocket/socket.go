package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"whiteboard-server/domain"
	"whiteboard-server/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Socket is an accepted connection that has not joined a room yet.
type Socket struct {
	ws          *websocket.Conn
	connID      string
	log         *slog.Logger
	metrics     *metrics.Metrics
	joinTimeout time.Duration
}

// Upgrade accepts a websocket request. joinTimeout bounds the wait for the
// first frame; zero means no limit.
func Upgrade(w http.ResponseWriter, r *http.Request, log *slog.Logger, m *metrics.Metrics, joinTimeout time.Duration) (*Socket, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewSocket(ws, log, m, joinTimeout), nil
}

func NewSocket(ws *websocket.Conn, log *slog.Logger, m *metrics.Metrics, joinTimeout time.Duration) *Socket {
	connID := uuid.New().String()
	return &Socket{
		ws:          ws,
		connID:      connID,
		log:         log.With("connId", connID, "remote", ws.RemoteAddr().String()),
		metrics:     m,
		joinTimeout: joinTimeout,
	}
}

// NextText blocks for the next text frame, skipping binary ones.
func (s *Socket) NextText() ([]byte, error) {
	if s.joinTimeout > 0 {
		_ = s.ws.SetReadDeadline(time.Now().Add(s.joinTimeout))
	}
	for {
		typ, data, err := s.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage {
			return data, nil
		}
	}
}

// Bind builds the bridge for userID. The socket must not be used afterwards.
func (s *Socket) Bind(roomID, userID string) domain.Connection {
	_ = s.ws.SetReadDeadline(time.Time{})
	return NewConn(userID, s.ws, s.log.With("room", roomID, "userId", userID), s.metrics)
}

// Reject closes the socket with a close frame carrying reason.
func (s *Socket) Reject(reason domain.CloseReason) {
	code := websocket.ClosePolicyViolation
	if reason == domain.CloseUnavailable {
		code = websocket.CloseTryAgainLater
	}
	msg := websocket.FormatCloseMessage(code, reason.String())
	_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = s.ws.Close()
	s.log.Info("socket rejected", "reason", reason.String())
}
