package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"whiteboard-server/domain"
	"whiteboard-server/metrics"
)

const defaultMailboxSize = 1000

// Registry maps room ids to live rooms. Presence in the map (of a room that
// has not stopped) is the only source of truth for "room exists".
//
// The registry lock and a room lock are never held at the same time.
type Registry struct {
	log         *slog.Logger
	metrics     *metrics.Metrics
	mailboxSize int

	mu    sync.RWMutex
	rooms map[string]*Room

	deletions chan *Room
	stopped   chan struct{}
}

type Option func(*Registry)

func WithLogger(log *slog.Logger) Option {
	return func(h *Registry) { h.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Registry) { h.metrics = m }
}

// WithMailboxSize sets the buffer of every room mailbox and of the deletion
// mailbox.
func WithMailboxSize(n int) Option {
	return func(h *Registry) {
		if n > 0 {
			h.mailboxSize = n
		}
	}
}

func New(opts ...Option) *Registry {
	h := &Registry{
		log:         slog.Default(),
		mailboxSize: defaultMailboxSize,
		rooms:       make(map[string]*Room),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	h.deletions = make(chan *Room, h.mailboxSize)
	return h
}

// Run drains the deletion mailbox until ctx is done.
func (h *Registry) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case room := <-h.deletions:
			h.remove(room)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Registry) Exists(roomID string) bool {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	return ok && !room.Closed()
}

// MemberExists reports whether userID is connected to roomID.
func (h *Registry) MemberExists(roomID, userID string) (bool, error) {
	room, err := h.lookup(roomID)
	if err != nil {
		return false, err
	}
	return room.HasMember(userID), nil
}

// Create registers a new empty room and starts its mailbox loop. A room that
// already stopped but is still awaiting deletion is replaced.
func (h *Registry) Create(roomID string) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	stale, ok := h.rooms[roomID]
	if ok && !stale.Closed() {
		return nil, &RoomAlreadyExistError{RoomID: roomID}
	}

	room := newRoom(roomID, h.mailboxSize, h.notifyDeleted, h.log, h.metrics)
	h.rooms[roomID] = room
	if !ok {
		h.metrics.Rooms.Inc()
	}
	go room.Run()

	h.log.Info("room created", "room", roomID)
	return room, nil
}

// Join adds member to an existing room.
func (h *Registry) Join(roomID string, member domain.Connection) error {
	room, err := h.lookup(roomID)
	if err != nil {
		return err
	}
	if err := room.Join(member); err != nil {
		if errors.Is(err, ErrRoomClosed) {
			return &RoomDoesNotExistError{RoomID: roomID}
		}
		return err
	}
	return nil
}

// Stats returns the number of live rooms and connected members.
func (h *Registry) Stats() (rooms, clients int) {
	h.mu.RLock()
	live := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		if !room.Closed() {
			live = append(live, room)
		}
	}
	h.mu.RUnlock()

	for _, room := range live {
		clients += room.Len()
	}
	return len(live), clients
}

func (h *Registry) lookup(roomID string) (*Room, error) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()

	if !ok || room.Closed() {
		return nil, &RoomDoesNotExistError{RoomID: roomID}
	}
	return room, nil
}

// notifyDeleted is handed to every room as its deletion notice. It may be
// called with the room lock held, so it only touches the channel.
func (h *Registry) notifyDeleted(room *Room) {
	select {
	case h.deletions <- room:
	case <-h.stopped:
	}
}

func (h *Registry) remove(room *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room.ID()] != room {
		return
	}
	delete(h.rooms, room.ID())
	h.metrics.Rooms.Dec()
	h.log.Info("room removed", "room", room.ID())
}
