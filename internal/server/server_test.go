package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/cipherrooms/internal/server"
	"github.com/Tyrowin/cipherrooms/internal/testhelpers"
)

const readTimeout = 2 * time.Second

// startRelay runs a hub behind an httptest server whose origin is allowed.
func startRelay(t *testing.T, opts ...server.HubOption) (*server.Hub, *httptest.Server) {
	t.Helper()

	srv := httptest.NewUnstartedServer(nil)
	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{"http://" + srv.Listener.Addr().String()}
	server.SetConfig(cfg)

	opts = append([]server.HubOption{
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	hub := server.NewHub(opts...)
	go hub.Run()

	srv.Config.Handler = server.SetupRoutes(hub)
	srv.Start()

	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(2 * time.Second)
		server.SetConfig(nil)
	})
	return hub, srv
}

// dial connects and consumes the initial roomList frame.
func dial(t *testing.T, srv *httptest.Server) (*websocket.Conn, testhelpers.Frame) {
	t.Helper()
	conn := testhelpers.ConnectWebSocket(t, testhelpers.WebSocketURL(srv), srv.URL)
	first := testhelpers.ReadFrame(t, conn, readTimeout)
	require.Equal(t, server.TypeRoomList, first.Type())
	return conn, first
}

func join(t *testing.T, conn *websocket.Conn, room, user, password string) {
	t.Helper()
	testhelpers.SendJSON(t, conn, map[string]any{
		"type":              server.TypeJoin,
		"room":              room,
		"encryptedUsername": user,
		"hashedPassword":    password,
		"joinMessage":       user + " joined",
	})
}

// TestRelayEndToEnd walks two clients through create, join, chat, file and
// leave over real WebSocket connections.
func TestRelayEndToEnd(t *testing.T) {
	_, srv := startRelay(t)

	alice, first := dial(t, srv)
	rooms := first["rooms"].([]any)
	require.Len(t, rooms, 1)
	assert.Equal(t, "general", rooms[0].(map[string]any)["name"])

	bob, _ := dial(t, srv)

	testhelpers.SendJSON(t, alice, map[string]any{
		"type":           server.TypeCreateRoom,
		"roomName":       "vip",
		"isPrivate":      true,
		"hashedPassword": "h1",
	})
	for _, conn := range []*websocket.Conn{alice, bob} {
		list := testhelpers.ReadUntil(t, conn, server.TypeRoomList, readTimeout)
		assert.Equal(t, "vip", list["newRoom"])
	}

	join(t, bob, "vip", "bob", "wrong")
	errFrame := testhelpers.ReadUntil(t, bob, server.TypeError, readTimeout)
	assert.Equal(t, server.ErrUnauthorized.Error(), errFrame["message"])

	join(t, alice, "vip", "alice", "h1")
	auth := testhelpers.ReadUntil(t, alice, server.TypeAuthenticated, readTimeout)
	assert.Equal(t, "vip", auth["room"])
	count := testhelpers.ReadUntil(t, alice, server.TypeUserCount, readTimeout)
	assert.EqualValues(t, 1, count["count"])

	join(t, bob, "vip", "bob", "h1")
	testhelpers.ReadUntil(t, bob, server.TypeAuthenticated, readTimeout)
	count = testhelpers.ReadUntil(t, alice, server.TypeUserCount, readTimeout)
	assert.EqualValues(t, 2, count["count"])
	announce := testhelpers.ReadUntil(t, alice, server.TypeSystem, readTimeout)
	assert.Equal(t, "bob joined", announce["encryptedMessage"])

	testhelpers.SendJSON(t, bob, map[string]any{"type": server.TypeMessage, "encryptedMessage": "c1"})
	msg := testhelpers.ReadUntil(t, alice, server.TypeMessage, readTimeout)
	assert.Equal(t, "c1", msg["encryptedMessage"])
	assert.Equal(t, "bob", msg["encryptedUsername"])
	assert.NotEmpty(t, msg["timestamp"])

	testhelpers.SendJSON(t, alice, map[string]any{
		"type":          server.TypeFile,
		"encryptedFile": "ZGF0YQ==",
		"fileName":      "a.txt",
		"fileType":      "text/plain",
		"fileSize":      4,
	})
	file := testhelpers.ReadUntil(t, bob, server.TypeFile, readTimeout)
	assert.Equal(t, "ZGF0YQ==", file["encryptedFile"])
	assert.Equal(t, "alice", file["encryptedUsername"])
	assert.EqualValues(t, 4, file["fileSize"])

	require.NoError(t, testhelpers.CloseWebSocket(bob))
	left := testhelpers.ReadUntil(t, alice, server.TypeUserLeft, readTimeout)
	assert.Equal(t, "bob", left["encryptedUsername"])
}

// TestNonJSONFrameIsIgnored verifies that garbage input gets no reply and
// does not close the connection.
func TestNonJSONFrameIsIgnored(t *testing.T) {
	_, srv := startRelay(t)
	conn, _ := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	testhelpers.SendJSON(t, conn, map[string]any{"type": server.TypeLeave})

	// The next frame answers the leave; the garbage produced nothing.
	frame := testhelpers.ReadFrame(t, conn, readTimeout)
	assert.Equal(t, server.TypeError, frame.Type())
	assert.Equal(t, server.ErrNotAuthenticated.Error(), frame["message"])
}

// TestRoomEvictionOverWebSocket uses a short eviction delay and watches the
// room disappear from the broadcast room list.
func TestRoomEvictionOverWebSocket(t *testing.T) {
	hub, srv := startRelay(t, server.WithEvictionDelay(100*time.Millisecond))
	conn, _ := dial(t, srv)

	testhelpers.SendJSON(t, conn, map[string]any{"type": server.TypeCreateRoom, "roomName": "temp"})
	created := testhelpers.ReadUntil(t, conn, server.TypeRoomList, readTimeout)
	assert.Equal(t, "temp", created["newRoom"])

	evicted := testhelpers.ReadUntil(t, conn, server.TypeRoomList, readTimeout)
	assert.NotContains(t, evicted, "newRoom")
	assert.Len(t, evicted["rooms"], 1)
	assert.Len(t, hub.ListRooms(), 1)
}

// TestHTTPRoutes covers the plain HTTP endpoints.
func TestHTTPRoutes(t *testing.T) {
	hub, srv := startRelay(t)
	require.NoError(t, hub.CreateRoom("secret", true, "verifier-value"))

	t.Run("health", func(t *testing.T) {
		for _, path := range []string{"/", "/healthz"} {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
			assert.Equal(t, "cipherrooms relay is running!", string(body))
		}
	})

	t.Run("rooms", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/rooms")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var payload struct {
			Rooms []server.RoomSummary `json:"rooms"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, []server.RoomSummary{
			{Name: "general"},
			{Name: "secret", IsPrivate: true},
		}, payload.Rooms)
		assert.NotContains(t, string(body), "verifier-value")
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "cipherrooms_rooms")
	})

	t.Run("cors", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/rooms", http.NoBody)
		require.NoError(t, err)
		req.Header.Set("Origin", srv.URL)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, srv.URL, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("ws rejects POST", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/ws", "text/plain", strings.NewReader("x"))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("ws rejects plain GET", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/ws")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("ws rejects foreign origin", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Origin", "http://evil.example")
		_, resp, err := websocket.DefaultDialer.Dial(testhelpers.WebSocketURL(srv), headers)
		require.Error(t, err)
		if resp != nil {
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		}
	})
}

func TestCreateServer(t *testing.T) {
	handler := http.NewServeMux()
	srv := server.CreateServer(":8080", handler)

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.Equal(t, 15*time.Second, srv.WriteTimeout)
	assert.Equal(t, 60*time.Second, srv.IdleTimeout)
}
