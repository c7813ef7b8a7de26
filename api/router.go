package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"whiteboard-server/auth"
	"whiteboard-server/config"
	"whiteboard-server/hub"
	"whiteboard-server/metrics"
	"whiteboard-server/protocol"
	"whiteboard-server/websocket"
)

type Server struct {
	cfg       config.Config
	log       *slog.Logger
	registry  *hub.Registry
	handshake *protocol.Handshake
	metrics   *metrics.Metrics
	jwt       *auth.JWT
}

// NewRouter wires up all HTTP routes and middleware.
func NewRouter(cfg config.Config, log *slog.Logger, registry *hub.Registry, m *metrics.Metrics) http.Handler {
	s := &Server{
		cfg:       cfg,
		log:       log,
		registry:  registry,
		handshake: protocol.NewHandshake(registry, log, m),
		metrics:   m,
		jwt:       auth.New(cfg.JWTSecret),
	}

	router := httprouter.New()

	router.GET("/websocket", s.handleWebSocket)
	router.GET("/ws", s.handleWebSocket)

	// Pre-flight checks, under both the documented and the legacy client paths.
	router.POST("/check-room-exist", s.handleCheckRoomExist)
	router.POST("/check-user-exist", s.handleCheckUserExist)
	router.POST("/api/check_room_exist", s.handleCheckRoomExist)
	router.POST("/api/check_user_exist", s.handleCheckUserExist)

	router.POST("/api/auth/register", s.handleRegister)
	router.POST("/api/auth/login", s.handleLogin)
	router.POST("/api/auth/logout", s.handleLogout)

	router.GET("/health", s.handleHealth)
	router.GET("/stats", s.handleStats)
	router.Handler(http.MethodGet, "/metrics", m.Handler())

	if cfg.StaticDir != "" {
		router.NotFound = staticHandler(cfg.StaticDir)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllow,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sock, err := websocket.Upgrade(w, r, s.log, s.metrics, s.cfg.JoinTimeout)
	if err != nil {
		s.log.Error("upgrade error", "error", err)
		return
	}
	if err := s.handshake.Serve(sock); err != nil {
		s.log.Debug("handshake ended", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	rooms, clients := s.registry.Stats()
	writeJSON(w, map[string]int{"rooms": rooms, "clients": clients})
}

// send JSON with proper headers
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
