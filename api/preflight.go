package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"whiteboard-server/domain"
)

const maxBodySize = 4096

// handleCheckRoomExist answers whether a room exists. A bare JSON string body
// gets a bare boolean; a tagged {"CheckRoomExist": id} body gets a tagged
// response.
func (s *Server) handleCheckRoomExist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	var roomID string
	if json.Unmarshal(body, &roomID) == nil {
		writeJSON(w, s.registry.Exists(roomID))
		return
	}

	var req domain.Request
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if req.Type != domain.RequestCheckRoomExist {
		writeJSON(w, domain.Response{Type: domain.ResponseInvalidRequest, Invalid: &req})
		return
	}
	writeJSON(w, domain.Response{Type: domain.ResponseRoomExist, RoomExists: s.registry.Exists(req.RoomID)})
}

// handleCheckUserExist answers whether a user is in a room, or null when the
// room does not exist. Accepts ["room", "user"] or {"CheckUserExist": [...]}.
func (s *Server) handleCheckUserExist(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	var pair []string
	if json.Unmarshal(body, &pair) == nil {
		if len(pair) != 2 {
			http.Error(w, "expected [room id, user id]", http.StatusBadRequest)
			return
		}
		writeJSON(w, s.userExists(pair[0], pair[1]))
		return
	}

	var req domain.Request
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if req.Type != domain.RequestCheckUserExist {
		writeJSON(w, domain.Response{Type: domain.ResponseInvalidRequest, Invalid: &req})
		return
	}
	writeJSON(w, domain.Response{Type: domain.ResponseUserExist, UserExists: s.userExists(req.RoomID, req.UserID)})
}

func (s *Server) userExists(roomID, userID string) *bool {
	exists, err := s.registry.MemberExists(roomID, userID)
	if err != nil {
		return nil
	}
	return &exists
}
