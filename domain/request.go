package domain

import (
	"encoding/json"
	"fmt"
)

type RequestType string

const (
	RequestCurrentFigures     RequestType = "CurrentFigures"
	RequestCurrentSharedUsers RequestType = "CurrentSharedUsers"

	// Pre-flight requests, only valid on the HTTP endpoints.
	RequestCheckRoomExist RequestType = "CheckRoomExist"
	RequestCheckUserExist RequestType = "CheckUserExist"
)

// Request is what a client asks for, either over the socket (RequestInfo) or
// through the HTTP pre-flight endpoints.
type Request struct {
	Type   RequestType
	RoomID string
	UserID string
}

// IsRoomInfo reports whether the request may travel over the socket.
func (r Request) IsRoomInfo() bool {
	return r.Type == RequestCurrentFigures || r.Type == RequestCurrentSharedUsers
}

func (r Request) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case RequestCurrentFigures, RequestCurrentSharedUsers:
		return encodeUnit(string(r.Type))
	case RequestCheckRoomExist:
		return encodeTagged(string(r.Type), r.RoomID)
	case RequestCheckUserExist:
		return encodeTuple(string(r.Type), r.RoomID, r.UserID)
	default:
		return nil, fmt.Errorf("unknown request type %q", r.Type)
	}
}

func (r *Request) UnmarshalJSON(data []byte) error {
	tag, payload, err := decodeTagged(data)
	if err != nil {
		return err
	}
	req := Request{Type: RequestType(tag)}
	switch req.Type {
	case RequestCurrentFigures, RequestCurrentSharedUsers:
		err = requireUnit(tag, payload)
	case RequestCheckRoomExist:
		err = decodePayload(tag, payload, &req.RoomID)
	case RequestCheckUserExist:
		err = decodeTuple(tag, payload, &req.RoomID, &req.UserID)
	default:
		err = fmt.Errorf("unknown request type %q", tag)
	}
	if err != nil {
		return err
	}
	*r = req
	return nil
}

type ResponseType string

const (
	ResponseCurrentFigures     ResponseType = "CurrentFigures"
	ResponseCurrentSharedUsers ResponseType = "CurrentSharedUsers"
	ResponseRoomExist          ResponseType = "ResponseRoomExist"
	ResponseUserExist          ResponseType = "ResponseUserExist"
	ResponseInvalidRequest     ResponseType = "InvalidRequest"
)

// Response answers a Request. UserExists is nil when the room being asked
// about does not exist.
type Response struct {
	Type       ResponseType
	Figures    []Figure
	Users      []string
	RoomExists bool
	UserExists *bool
	Invalid    *Request
}

func CurrentFiguresResponse(figures []Figure) Response {
	return Response{Type: ResponseCurrentFigures, Figures: figures}
}

func CurrentSharedUsersResponse(users []string) Response {
	return Response{Type: ResponseCurrentSharedUsers, Users: users}
}

func (r Response) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case ResponseCurrentFigures:
		figures := r.Figures
		if figures == nil {
			figures = []Figure{}
		}
		return encodeTagged(string(r.Type), figures)
	case ResponseCurrentSharedUsers:
		users := r.Users
		if users == nil {
			users = []string{}
		}
		return encodeTagged(string(r.Type), users)
	case ResponseRoomExist:
		return encodeTagged(string(r.Type), r.RoomExists)
	case ResponseUserExist:
		return encodeTagged(string(r.Type), r.UserExists)
	case ResponseInvalidRequest:
		if r.Invalid == nil {
			return nil, fmt.Errorf("invalid request response without request")
		}
		return encodeTagged(string(r.Type), r.Invalid)
	default:
		return nil, fmt.Errorf("unknown response type %q", r.Type)
	}
}

func (r *Response) UnmarshalJSON(data []byte) error {
	tag, payload, err := decodeTagged(data)
	if err != nil {
		return err
	}
	resp := Response{Type: ResponseType(tag)}
	switch resp.Type {
	case ResponseCurrentFigures:
		err = decodePayload(tag, payload, &resp.Figures)
	case ResponseCurrentSharedUsers:
		err = decodePayload(tag, payload, &resp.Users)
	case ResponseRoomExist:
		err = decodePayload(tag, payload, &resp.RoomExists)
	case ResponseUserExist:
		if payload != nil {
			var exists bool
			if err = json.Unmarshal(payload, &exists); err == nil {
				resp.UserExists = &exists
			}
		}
	case ResponseInvalidRequest:
		var req Request
		if err = decodePayload(tag, payload, &req); err == nil {
			resp.Invalid = &req
		}
	default:
		err = fmt.Errorf("unknown response type %q", tag)
	}
	if err != nil {
		return err
	}
	*r = resp
	return nil
}
