package hub

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"whiteboard-server/domain"
	"whiteboard-server/metrics"
)

// Room owns one drawing session: its members and its figure log.
//
// State is mutated from two places, both under mu: Join, called directly by
// the handshake, and the mailbox loop in Run. Join is not sequenced through
// the mailbox, so a join may interleave with mailbox events. Within the
// mailbox, events are handled strictly in arrival order.
//
// Outbound delivery runs synchronously under mu, so one slow peer delays the
// whole room (bounded by the connection's write deadline).
type Room struct {
	id      string
	log     *slog.Logger
	metrics *metrics.Metrics
	mailbox chan domain.RoomEvent
	done    chan struct{}
	deleted func(*Room)

	// closed is written under mu but readable without it, so the registry
	// never has to take a room lock.
	closed atomic.Bool

	mu      sync.Mutex
	members map[string]domain.Connection
	figures []domain.Figure
}

func newRoom(id string, mailboxSize int, deleted func(*Room), log *slog.Logger, m *metrics.Metrics) *Room {
	return &Room{
		id:      id,
		log:     log.With("room", id),
		metrics: m,
		mailbox: make(chan domain.RoomEvent, mailboxSize),
		done:    make(chan struct{}),
		deleted: deleted,
		members: make(map[string]domain.Connection),
	}
}

func (r *Room) ID() string { return r.id }

// Closed reports whether the room emptied and stopped its mailbox loop.
func (r *Room) Closed() bool { return r.closed.Load() }

// Post queues an event on the room mailbox. It fails once the room stopped.
func (r *Room) Post(event domain.RoomEvent) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}

	select {
	case r.mailbox <- event:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// Join adds member and announces it to everyone, the newcomer included.
func (r *Room) Join(member domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return ErrRoomClosed
	}

	id := member.ID()
	if _, exists := r.members[id]; exists {
		return &UserAlreadyExistError{RoomID: r.id, UserID: id}
	}

	member.Attach(r)
	r.members[id] = member
	r.metrics.Members.Inc()
	r.log.Info("user joined", "userId", id, "members", len(r.members))

	r.broadcastLocked(domain.UserJoined(id), "")
	return nil
}

// HasMember reports whether userID is currently connected to the room.
func (r *Room) HasMember(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[userID]
	return ok
}

// Members returns the connected user ids in sorted order.
func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberIDsLocked("")
}

// Figures returns a copy of the figure log.
func (r *Room) Figures() []domain.Figure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.figures)
}

func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Run drains the mailbox until the room empties. Once the last member leaves
// the room notifies the registry and never handles another event.
func (r *Room) Run() {
	r.log.Debug("room mailbox started")
	defer r.log.Debug("room mailbox stopped")

	for {
		select {
		case event := <-r.mailbox:
			if !r.handle(event) {
				return
			}
		case <-r.done:
			return
		}
	}
}

// handle applies one mailbox event and reports whether the room is still live.
func (r *Room) handle(event domain.RoomEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return false
	}

	switch event.Type {
	case domain.EventLeaveUser:
		r.leaveLocked(event.UserID, event.Source)

	case domain.EventAddFigure:
		r.figures = append(r.figures, event.Figure)
		r.metrics.Figures.Inc()
		r.broadcastLocked(domain.FigureAdded(event.Figure), "")

	case domain.EventRequestInfo:
		r.requestInfoLocked(event.UserID, event.Request)

	case domain.EventNotifyMousePositionChanged:
		if _, ok := r.members[event.UserID]; !ok {
			break
		}
		r.metrics.MouseEvents.Inc()
		r.broadcastLocked(domain.UserMousePositionChanged(event.UserID, event.X, event.Y), event.UserID)

	default:
		r.log.Warn("unknown room event", "type", event.Type)
	}

	return !r.closed.Load()
}

func (r *Room) leaveLocked(userID string, source domain.Connection) {
	member, ok := r.members[userID]
	if !ok {
		r.log.Debug("leave for absent user", "userId", userID)
		return
	}
	if source != nil && member != source {
		r.log.Debug("leave from stale connection", "userId", userID)
		return
	}

	if r.removeLocked(userID) {
		r.broadcastLocked(domain.UserLeft(userID), "")
	}
}

func (r *Room) requestInfoLocked(userID string, request domain.RequestType) {
	if _, ok := r.members[userID]; !ok {
		return
	}

	switch request {
	case domain.RequestCurrentFigures:
		resp := domain.CurrentFiguresResponse(slices.Clone(r.figures))
		r.unicastLocked(userID, domain.ResponseInfo(resp))
	case domain.RequestCurrentSharedUsers:
		resp := domain.CurrentSharedUsersResponse(r.memberIDsLocked(userID))
		r.unicastLocked(userID, domain.ResponseInfo(resp))
	default:
		r.log.Warn("request not valid in a room", "userId", userID, "request", request)
	}
}

// removeLocked drops a member and closes its connection. It reports false when
// that left the room empty, in which case the room has stopped.
func (r *Room) removeLocked(userID string) bool {
	member := r.members[userID]
	delete(r.members, userID)
	r.metrics.Members.Dec()
	_ = member.Close()

	r.log.Info("user left", "userId", userID, "members", len(r.members))

	if len(r.members) == 0 {
		r.stopLocked()
		return false
	}
	return true
}

func (r *Room) stopLocked() {
	r.closed.Store(true)
	close(r.done)
	r.log.Info("room emptied")
	r.deleted(r)
}

func (r *Room) unicastLocked(userID string, msg domain.ServerMessage) {
	member, ok := r.members[userID]
	if !ok {
		return
	}
	if err := member.Deliver(msg); err != nil {
		r.log.Warn("delivery failed", "userId", userID, "error", err)
		r.dropLocked([]string{userID})
	}
}

func (r *Room) broadcastLocked(msg domain.ServerMessage, except string) {
	r.dropLocked(r.fanOutLocked(msg, except))
}

// fanOutLocked delivers msg to every member but except and returns the ids
// whose delivery failed. A failure never stops delivery to the others.
func (r *Room) fanOutLocked(msg domain.ServerMessage, except string) []string {
	var failed []string
	for id, member := range r.members {
		if id == except {
			continue
		}
		if err := member.Deliver(msg); err != nil {
			r.log.Warn("delivery failed", "userId", id, "error", err)
			failed = append(failed, id)
		}
	}
	return failed
}

// dropLocked removes members whose delivery failed, as if each had left.
// Announcing a departure can fail further deliveries, so it loops until
// nothing is pending or the room has emptied.
func (r *Room) dropLocked(failed []string) {
	for len(failed) > 0 {
		id := failed[0]
		failed = failed[1:]

		if _, ok := r.members[id]; !ok {
			continue
		}
		r.metrics.DeliveryFailures.Inc()
		if !r.removeLocked(id) {
			return
		}
		failed = append(failed, r.fanOutLocked(domain.UserLeft(id), "")...)
	}
}

func (r *Room) memberIDsLocked(except string) []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != except {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
