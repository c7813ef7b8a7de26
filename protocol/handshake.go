package protocol

import (
	"errors"
	"fmt"
	"log/slog"

	"whiteboard-server/domain"
	"whiteboard-server/hub"
	"whiteboard-server/metrics"
)

// maxResolveAttempts bounds retries when a room vanishes between the
// existence check and the join.
const maxResolveAttempts = 3

var ErrProtocolViolation = errors.New("protocol violation")

// Socket is a freshly accepted connection that has not joined a room.
type Socket interface {
	// NextText blocks for the first text frame.
	NextText() ([]byte, error)
	// Bind builds the room member for the socket. After Bind the socket may
	// only be rejected.
	Bind(roomID, userID string) domain.Connection
	// Reject closes the socket without entering any room. It must be safe
	// to call after the peer went away.
	Reject(reason domain.CloseReason)
}

// Handshake moves a socket from "accepted" to "member of a room".
type Handshake struct {
	registry *hub.Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandshake(registry *hub.Registry, log *slog.Logger, m *metrics.Metrics) *Handshake {
	return &Handshake{registry: registry, log: log, metrics: m}
}

// Serve waits for a Join frame, then creates or joins the room. It returns
// once the member is attached to its room (the bridge owns the socket from
// then on) or the socket was turned away.
func (h *Handshake) Serve(sock Socket) error {
	data, err := sock.NextText()
	if err != nil {
		sock.Reject(domain.CloseJoinTimeout)
		h.count("disconnected")
		return fmt.Errorf("await join: %w", err)
	}

	msg, err := domain.DecodeClientMessage(data)
	if err == nil && msg.Type != domain.ClientJoin {
		err = fmt.Errorf("%w: expected Join, got %s", ErrProtocolViolation, msg.Type)
	}
	if err == nil && (msg.RoomID == "" || msg.UserID == "") {
		err = fmt.Errorf("%w: empty room or user id", ErrProtocolViolation)
	}
	if err != nil {
		h.log.Warn("handshake rejected", "error", err)
		sock.Reject(domain.CloseProtocolViolation)
		h.count("rejected")
		return err
	}

	log := h.log.With("room", msg.RoomID, "userId", msg.UserID)
	member := sock.Bind(msg.RoomID, msg.UserID)

	created, err := h.resolve(msg.RoomID, member, log)
	if err != nil {
		reason := domain.CloseUnavailable
		if errors.Is(err, hub.ErrUserAlreadyExist) {
			reason = domain.CloseDuplicateUser
		}
		log.Warn("join failed", "error", err)
		sock.Reject(reason)
		h.count("failed")
		return err
	}

	if created {
		h.count("created")
	} else {
		h.count("joined")
	}
	log.Info("client connected", "created", created)
	return nil
}

// resolve creates the room if it looks absent, falling back to a join when
// another socket won the creation race.
func (h *Handshake) resolve(roomID string, member domain.Connection, log *slog.Logger) (bool, error) {
	var err error
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		if !h.registry.Exists(roomID) {
			room, createErr := h.registry.Create(roomID)
			if createErr == nil {
				err = room.Join(member)
				if !errors.Is(err, hub.ErrRoomClosed) {
					return err == nil, err
				}
				continue
			}
			if !errors.Is(createErr, hub.ErrRoomAlreadyExist) {
				return false, createErr
			}
			log.Debug("lost room creation race, joining")
		}

		err = h.registry.Join(roomID, member)
		if !errors.Is(err, hub.ErrRoomDoesNotExist) {
			return false, err
		}
	}
	return false, err
}

func (h *Handshake) count(result string) {
	h.metrics.Handshakes.WithLabelValues(result).Inc()
}
