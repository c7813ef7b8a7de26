package domain

// Connection is one participant's link as seen by its room. Deliver is called
// synchronously by the room while it holds its lock.
type Connection interface {
	ID() string
	Attach(mailbox Mailbox)
	Deliver(msg ServerMessage) error
	Close() error
}

// Mailbox is the inbound queue of a room.
type Mailbox interface {
	Post(event RoomEvent) error
}

type RoomEventType int

const (
	EventLeaveUser RoomEventType = iota
	EventAddFigure
	EventRequestInfo
	EventNotifyMousePositionChanged
)

func (t RoomEventType) String() string {
	switch t {
	case EventLeaveUser:
		return "LeaveUser"
	case EventAddFigure:
		return "AddFigure"
	case EventRequestInfo:
		return "RequestInfo"
	case EventNotifyMousePositionChanged:
		return "NotifyMousePositionChanged"
	default:
		return "Unknown"
	}
}

// RoomEvent is a mailbox message. Source is the connection that produced it,
// used to ignore leaves from a connection that no longer holds UserID.
type RoomEvent struct {
	Type    RoomEventType
	UserID  string
	Source  Connection
	Figure  Figure
	Request RequestType
	X, Y    float64
}

func LeaveUser(userID string, source Connection) RoomEvent {
	return RoomEvent{Type: EventLeaveUser, UserID: userID, Source: source}
}

func AddFigure(figure Figure) RoomEvent {
	return RoomEvent{Type: EventAddFigure, Figure: figure}
}

func RequestInfo(userID string, request RequestType) RoomEvent {
	return RoomEvent{Type: EventRequestInfo, UserID: userID, Request: request}
}

func NotifyMousePositionChanged(userID string, x, y float64) RoomEvent {
	return RoomEvent{Type: EventNotifyMousePositionChanged, UserID: userID, X: x, Y: y}
}

// CloseReason tells a socket why it is turned away before joining a room.
type CloseReason int

const (
	CloseProtocolViolation CloseReason = iota
	CloseDuplicateUser
	CloseUnavailable
	CloseJoinTimeout
)

func (r CloseReason) String() string {
	switch r {
	case CloseProtocolViolation:
		return "protocol violation"
	case CloseDuplicateUser:
		return "user already in room"
	case CloseUnavailable:
		return "room unavailable"
	case CloseJoinTimeout:
		return "no join received"
	default:
		return "rejected"
	}
}
