package domain

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

type ClientMessageType string

const (
	ClientJoin                       ClientMessageType = "Join"
	ClientLeave                      ClientMessageType = "Leave"
	ClientAddFigure                  ClientMessageType = "AddFigure"
	ClientRequestInfo                ClientMessageType = "RequestInfo"
	ClientNotifyMousePositionChanged ClientMessageType = "NotifyMousePositionChanged"
)

// ClientMessage is a frame sent by a participant over the socket.
type ClientMessage struct {
	Type    ClientMessageType
	RoomID  string
	UserID  string
	Figure  Figure
	Request Request
	X, Y    float64
}

func (m ClientMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case ClientJoin:
		return encodeTuple(string(m.Type), m.RoomID, m.UserID)
	case ClientLeave:
		return encodeUnit(string(m.Type))
	case ClientAddFigure:
		return encodeTagged(string(m.Type), m.Figure)
	case ClientRequestInfo:
		return encodeTagged(string(m.Type), m.Request)
	case ClientNotifyMousePositionChanged:
		return encodeTuple(string(m.Type), m.X, m.Y)
	default:
		return nil, fmt.Errorf("unknown client message %q", m.Type)
	}
}

func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	tag, payload, err := decodeTagged(data)
	if err != nil {
		return err
	}
	msg := ClientMessage{Type: ClientMessageType(tag)}
	switch msg.Type {
	case ClientJoin:
		err = decodeTuple(tag, payload, &msg.RoomID, &msg.UserID)
	case ClientLeave:
		err = requireUnit(tag, payload)
	case ClientAddFigure:
		err = decodePayload(tag, payload, &msg.Figure)
	case ClientRequestInfo:
		err = decodePayload(tag, payload, &msg.Request)
	case ClientNotifyMousePositionChanged:
		err = decodeTuple(tag, payload, &msg.X, &msg.Y)
	default:
		err = fmt.Errorf("unknown client message %q", tag)
	}
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

// DecodeError marks an inbound frame that could not be decoded. It is a
// per-connection fault.
type DecodeError struct {
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode client message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

const maxFrameExcerpt = 256

// truncateFrame cuts data to at most n bytes without splitting a rune.
func truncateFrame(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	for n > 0 && !utf8.RuneStart(data[n]) {
		n--
	}
	return string(data[:n])
}

// DecodeClientMessage parses one text frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, &DecodeError{Frame: truncateFrame(data, maxFrameExcerpt), Err: err}
	}
	return msg, nil
}

type ServerMessageType string

const (
	ServerUserJoined                     ServerMessageType = "UserJoined"
	ServerUserLeft                       ServerMessageType = "UserLeft"
	ServerFigureAdded                    ServerMessageType = "FigureAdded"
	ServerResponseInfo                   ServerMessageType = "ResponseInfo"
	ServerNotifyUserMousePositionChanged ServerMessageType = "NotifyUserMousePositionChanged"
)

// ServerMessage is a frame delivered to a participant.
type ServerMessage struct {
	Type     ServerMessageType
	UserID   string
	Figure   Figure
	Response Response
	X, Y     float64
}

func UserJoined(userID string) ServerMessage {
	return ServerMessage{Type: ServerUserJoined, UserID: userID}
}

func UserLeft(userID string) ServerMessage {
	return ServerMessage{Type: ServerUserLeft, UserID: userID}
}

func FigureAdded(figure Figure) ServerMessage {
	return ServerMessage{Type: ServerFigureAdded, Figure: figure}
}

func ResponseInfo(resp Response) ServerMessage {
	return ServerMessage{Type: ServerResponseInfo, Response: resp}
}

func UserMousePositionChanged(userID string, x, y float64) ServerMessage {
	return ServerMessage{Type: ServerNotifyUserMousePositionChanged, UserID: userID, X: x, Y: y}
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case ServerUserJoined, ServerUserLeft:
		return encodeTagged(string(m.Type), m.UserID)
	case ServerFigureAdded:
		return encodeTagged(string(m.Type), m.Figure)
	case ServerResponseInfo:
		return encodeTagged(string(m.Type), m.Response)
	case ServerNotifyUserMousePositionChanged:
		return encodeTuple(string(m.Type), m.UserID, m.X, m.Y)
	default:
		return nil, fmt.Errorf("unknown server message %q", m.Type)
	}
}

func (m *ServerMessage) UnmarshalJSON(data []byte) error {
	tag, payload, err := decodeTagged(data)
	if err != nil {
		return err
	}
	msg := ServerMessage{Type: ServerMessageType(tag)}
	switch msg.Type {
	case ServerUserJoined, ServerUserLeft:
		err = decodePayload(tag, payload, &msg.UserID)
	case ServerFigureAdded:
		err = decodePayload(tag, payload, &msg.Figure)
	case ServerResponseInfo:
		err = decodePayload(tag, payload, &msg.Response)
	case ServerNotifyUserMousePositionChanged:
		err = decodeTuple(tag, payload, &msg.UserID, &msg.X, &msg.Y)
	default:
		err = fmt.Errorf("unknown server message %q", tag)
	}
	if err != nil {
		return err
	}
	*m = msg
	return nil
}
