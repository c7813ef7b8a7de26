package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"whiteboard-server/domain"
	"whiteboard-server/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Conn bridges one socket to one room mailbox. Inbound frames are decoded by
// the read loop started in Attach; outbound frames are written synchronously
// by Deliver, which the room calls directly. There is no writer goroutine for
// data frames.
type Conn struct {
	id      string
	ws      *websocket.Conn
	log     *slog.Logger
	metrics *metrics.Metrics

	mailbox domain.Mailbox
	done    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewConn(id string, ws *websocket.Conn, log *slog.Logger, m *metrics.Metrics) *Conn {
	return &Conn{
		id:      id,
		ws:      ws,
		log:     log,
		metrics: m,
		done:    make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Attach binds the connection to its room and starts reading.
func (c *Conn) Attach(mailbox domain.Mailbox) {
	c.mailbox = mailbox
	go c.readLoop()
	go c.keepAlive()
}

// Deliver encodes and writes one frame.
func (c *Conn) Deliver(msg domain.ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame and closes the socket. Safe to call more
// than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.done)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Warn("read error", "error", err)
			} else {
				c.log.Debug("socket closed", "error", err)
			}
			c.leave()
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		msg, err := domain.DecodeClientMessage(data)
		if err != nil {
			c.metrics.DecodeErrors.Inc()
			var decodeErr *domain.DecodeError
			if errors.As(err, &decodeErr) {
				c.log.Warn("invalid message", "error", decodeErr.Err, "frame", decodeErr.Frame)
			} else {
				c.log.Warn("invalid message", "error", err)
			}
			c.leave()
			return
		}

		if !c.forward(msg) {
			return
		}
	}
}

// forward turns a client message into a room event. It reports whether the
// read loop should keep going.
func (c *Conn) forward(msg domain.ClientMessage) bool {
	var event domain.RoomEvent

	switch msg.Type {
	case domain.ClientLeave:
		c.leave()
		return false
	case domain.ClientAddFigure:
		event = domain.AddFigure(msg.Figure)
	case domain.ClientRequestInfo:
		if !msg.Request.IsRoomInfo() {
			c.log.Debug("ignoring request", "request", msg.Request.Type)
			return true
		}
		event = domain.RequestInfo(c.id, msg.Request.Type)
	case domain.ClientNotifyMousePositionChanged:
		event = domain.NotifyMousePositionChanged(c.id, msg.X, msg.Y)
	default:
		c.log.Debug("ignoring message", "type", msg.Type)
		return true
	}

	if err := c.mailbox.Post(event); err != nil {
		c.log.Warn("room unavailable", "error", err)
		_ = c.Close()
		return false
	}
	return true
}

// leave tells the room this member is gone. The room closes the socket once
// it removes the member; if the room already stopped, close it here.
func (c *Conn) leave() {
	if err := c.mailbox.Post(domain.LeaveUser(c.id, c)); err != nil {
		_ = c.Close()
	}
}

// keepAlive pings the peer so the read deadline keeps moving. Control frames
// may be written concurrently with Deliver.
func (c *Conn) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
