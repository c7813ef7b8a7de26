package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard-server/auth"
	"whiteboard-server/config"
	"whiteboard-server/hub"
	"whiteboard-server/metrics"
)

type testServer struct {
	*httptest.Server
	registry *hub.Registry
	metrics  *metrics.Metrics
	cfg      config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>board</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := config.Config{
		StaticDir:   static,
		CORSAllow:   []string{"*"},
		JWTSecret:   "test-secret",
		MailboxSize: 16,
		JoinTimeout: time.Second,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	registry := hub.New(hub.WithLogger(log), hub.WithMetrics(m), hub.WithMailboxSize(cfg.MailboxSize))

	ctx, cancel := context.WithCancel(context.Background())
	go registry.Run(ctx)

	srv := httptest.NewServer(NewRouter(cfg, log, registry, m))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testServer{Server: srv, registry: registry, metrics: m, cfg: cfg}
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (s *testServer) post(t *testing.T, path, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(s.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(data))
}

func send(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// expect reads the next text frame and compares it to want as JSON.
func expect(t *testing.T, c *websocket.Conn, want string) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, want, string(data))
}

const redLine = `{"Line":{"start_x":0,"start_y":0,"end_x":10,"end_y":10,"color":{"r":1,"g":0,"b":0,"a":1}}}`

func TestRouter_SharedBoardSession(t *testing.T) {
	s := newTestServer(t)

	// A creates the room, B joins it.
	a := s.dial(t, "/websocket")
	send(t, a, `{"Join":["r1","alice"]}`)
	expect(t, a, `{"UserJoined":"alice"}`)

	b := s.dial(t, "/ws")
	send(t, b, `{"Join":["r1","bob"]}`)
	expect(t, a, `{"UserJoined":"bob"}`)
	expect(t, b, `{"UserJoined":"bob"}`)

	send(t, b, `{"RequestInfo":"CurrentFigures"}`)
	expect(t, b, `{"ResponseInfo":{"CurrentFigures":[]}}`)

	// A draws a line, both see it and B can replay it.
	send(t, a, `{"AddFigure":`+redLine+`}`)
	expect(t, a, `{"FigureAdded":`+redLine+`}`)
	expect(t, b, `{"FigureAdded":`+redLine+`}`)

	send(t, b, `{"RequestInfo":"CurrentFigures"}`)
	expect(t, b, `{"ResponseInfo":{"CurrentFigures":[`+redLine+`]}}`)

	send(t, b, `{"RequestInfo":"CurrentSharedUsers"}`)
	expect(t, b, `{"ResponseInfo":{"CurrentSharedUsers":["alice"]}}`)

	// A leaves; the room lives on with B.
	send(t, a, `"Leave"`)
	expect(t, b, `{"UserLeft":"alice"}`)
	assert.True(t, s.registry.Exists("r1"))

	_, body := s.post(t, "/check-user-exist", `["r1","alice"]`)
	assert.Equal(t, "false", body)
	_, body = s.post(t, "/check-user-exist", `["r1","bob"]`)
	assert.Equal(t, "true", body)

	// B leaves; the room is deleted.
	send(t, b, `"Leave"`)
	require.Eventually(t, func() bool { return !s.registry.Exists("r1") }, 2*time.Second, 10*time.Millisecond)

	_, body = s.post(t, "/check-room-exist", `"r1"`)
	assert.Equal(t, "false", body)
	_, body = s.post(t, "/check-user-exist", `["r1","bob"]`)
	assert.Equal(t, "null", body)
}

func TestRouter_CreationRace(t *testing.T) {
	s := newTestServer(t)

	const racers = 2
	conns := make([]*websocket.Conn, racers)
	for i := range conns {
		conns[i] = s.dial(t, "/ws")
	}

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(i int, c *websocket.Conn) {
			defer wg.Done()
			_ = c.WriteMessage(websocket.TextMessage, []byte(`{"Join":["r2","user`+string(rune('a'+i))+`"]}`))
		}(i, c)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		rooms, clients := s.registry.Stats()
		return rooms == 1 && clients == racers
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Handshakes.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Handshakes.WithLabelValues("joined")))

	for _, user := range []string{"usera", "userb"} {
		ok, err := s.registry.MemberExists("r2", user)
		require.NoError(t, err)
		assert.True(t, ok, user)
	}
}

func TestRouter_DuplicateUserRejected(t *testing.T) {
	s := newTestServer(t)

	a := s.dial(t, "/ws")
	send(t, a, `{"Join":["r1","alice"]}`)
	expect(t, a, `{"UserJoined":"alice"}`)

	dup := s.dial(t, "/ws")
	send(t, dup, `{"Join":["r1","alice"]}`)
	require.NoError(t, dup.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := dup.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)

	_, body := s.post(t, "/check-user-exist", `["r1","alice"]`)
	assert.Equal(t, "true", body)
}

func TestRouter_IdleSocketClosedAfterJoinTimeout(t *testing.T) {
	s := newTestServer(t)

	c := s.dial(t, "/websocket")
	start := time.Now()
	require.NoError(t, c.SetReadDeadline(start.Add(4*s.cfg.JoinTimeout)))

	_, _, err := c.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.Less(t, time.Since(start), 3*s.cfg.JoinTimeout)

	rooms, clients := s.registry.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, clients)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metrics.Handshakes.WithLabelValues("disconnected")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRouter_CheckRoomExist(t *testing.T) {
	s := newTestServer(t)
	_, err := s.registry.Create("r1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantBody string
	}{
		{"plain present", "/check-room-exist", `"r1"`, http.StatusOK, `true`},
		{"plain absent", "/api/check_room_exist", `"nope"`, http.StatusOK, `false`},
		{"tagged", "/check-room-exist", `{"CheckRoomExist":"r1"}`, http.StatusOK, `{"ResponseRoomExist":true}`},
		{"wrong request", "/check-room-exist", `"CurrentFigures"`, http.StatusOK, `false`},
		{"invalid tagged", "/check-room-exist", `{"CheckUserExist":["r1","bob"]}`, http.StatusOK, `{"InvalidRequest":{"CheckUserExist":["r1","bob"]}}`},
		{"garbage", "/check-room-exist", `{`, http.StatusBadRequest, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.post(t, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, body)
			}
		})
	}
}

func TestRouter_CheckUserExist(t *testing.T) {
	s := newTestServer(t)

	a := s.dial(t, "/ws")
	send(t, a, `{"Join":["r1","alice"]}`)
	expect(t, a, `{"UserJoined":"alice"}`)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantBody string
	}{
		{"present", "/check-user-exist", `["r1","alice"]`, http.StatusOK, `true`},
		{"absent user", "/api/check_user_exist", `["r1","bob"]`, http.StatusOK, `false`},
		{"absent room", "/check-user-exist", `["r9","alice"]`, http.StatusOK, `null`},
		{"tagged", "/check-user-exist", `{"CheckUserExist":["r1","alice"]}`, http.StatusOK, `{"ResponseUserExist":true}`},
		{"tagged absent room", "/check-user-exist", `{"CheckUserExist":["r9","alice"]}`, http.StatusOK, `{"ResponseUserExist":null}`},
		{"wrong arity", "/check-user-exist", `["r1"]`, http.StatusBadRequest, ``},
		{"garbage", "/check-user-exist", `nope`, http.StatusBadRequest, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.post(t, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, body)
			}
		})
	}
}

func TestRouter_Auth(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Post(s.URL+"/api/auth/login", "application/json", strings.NewReader(`{"id":"alice"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `"LogedIn"`, string(body))

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)
	uid, err := auth.New(s.cfg.JWTSecret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", uid)

	_, out := s.post(t, "/api/auth/register", `{"id":"alice"}`)
	assert.JSONEq(t, `"Registered"`, out)

	_, out = s.post(t, "/api/auth/login", `{"id":""}`)
	assert.JSONEq(t, `"LoginFailed"`, out)

	_, out = s.post(t, "/api/auth/logout", `{"id":"alice"}`)
	assert.JSONEq(t, `"LogedOut"`, out)

	code, _ := s.post(t, "/api/auth/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouter_HealthStatsMetrics(t *testing.T) {
	s := newTestServer(t)

	a := s.dial(t, "/ws")
	send(t, a, `{"Join":["r1","alice"]}`)
	expect(t, a, `{"UserJoined":"alice"}`)

	get := func(path string) (int, string) {
		resp, err := http.Get(s.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(data)
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	_, body = get("/stats")
	assert.JSONEq(t, `{"rooms":1,"clients":1}`, body)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "whiteboard_rooms 1")
}

func TestRouter_StaticFallback(t *testing.T) {
	s := newTestServer(t)

	get := func(path string) string {
		resp, err := http.Get(s.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		data, _ := io.ReadAll(resp.Body)
		return string(data)
	}

	assert.Equal(t, "console.log(1)", get("/app.js"))
	assert.Equal(t, "<html>board</html>", get("/"))
	assert.Equal(t, "<html>board</html>", get("/board/r1"))
}
