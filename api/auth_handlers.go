package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"whiteboard-server/auth"
	"whiteboard-server/domain"
)

const tokenTTL = 24 * time.Hour

// The auth endpoints are stubs: nothing is persisted and every well-formed
// request succeeds.

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := decodeUser(w, r); !ok {
		return
	}

	if c, err := r.Cookie(auth.CookieName); err == nil {
		if uid, err := s.jwt.Verify(c.Value); err == nil {
			s.log.Info("register with session cookie", "userId", uid)
		} else {
			s.log.Info("register with invalid cookie", "error", err)
		}
	} else {
		s.log.Info("register without cookie")
	}
	writeJSON(w, domain.UserRegistered)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, ok := decodeUser(w, r)
	if !ok {
		return
	}

	tok, err := s.jwt.Sign(user.ID, tokenTTL)
	if err != nil {
		s.log.Info("login failed", "error", err)
		writeJSON(w, domain.UserLoginFailed)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    tok,
		Path:     "/",
		Expires:  time.Now().Add(tokenTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, domain.UserLoggedIn)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, ok := decodeUser(w, r); !ok {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, domain.UserLoggedOut)
}

func decodeUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	var user domain.User
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&user); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return domain.User{}, false
	}
	return user, true
}
