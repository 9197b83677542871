package transport_test

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/color-duel/internal/game"
	"github.com/koopa0/system-design/color-duel/internal/transport"
)

// 創建測試用的 logger
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// testEnv 一組完整串接的 Registry / Hub / HTTP 服務
type testEnv struct {
	server   *httptest.Server
	registry *game.Registry
	hub      *transport.Hub
}

func newTestEnv(t *testing.T, gameOpts game.Options, hubOpts transport.HubOptions) *testEnv {
	t.Helper()

	if gameOpts.TickInterval == 0 {
		gameOpts.TickInterval = time.Hour
	}

	logger := testLogger()
	outbox := transport.NewOutbox(logger)
	registry := game.NewRegistry(logger, outbox, game.RegistryOptions{Session: gameOpts})
	hub := transport.NewHub(registry, outbox, logger, hubOpts)
	handler := transport.NewHandler(registry, hub, logger)

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(func() {
		hub.Stop()
		registry.Stop()
		server.Close()
	})

	return &testEnv{server: server, registry: registry, hub: hub}
}

// wireEvent 客戶端收到的事件
type wireEvent struct {
	Event  string          `json:"event"`
	RoomID string          `json:"room_id"`
	Data   json.RawMessage `json:"data"`
}

func (e wireEvent) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.Data, v))
}

type errorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type taskData struct {
	PlayerID string `json:"player_id"`
	Task     struct {
		Label      string `json:"label"`
		Background string `json:"background"`
	} `json:"task"`
}

type scoreData struct {
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	PlayerID     string `json:"player_id"`
	Match        *bool  `json:"match"`
}

type gameOverData struct {
	Player1Score int    `json:"player1_score"`
	Player2Score int    `json:"player2_score"`
	Winner       string `json:"winner"`
	Reason       string `json:"reason"`
}

// client 測試用 WebSocket 客戶端
type client struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

// dial 連線並讀取 connected 事件
func (env *testEnv) dial(t *testing.T) *client {
	t.Helper()

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn}
	e := c.expect("connected")

	var data struct {
		PlayerID string `json:"player_id"`
	}
	e.decode(t, &data)
	require.NotEmpty(t, data.PlayerID)
	c.id = data.PlayerID

	return c
}

func (c *client) send(msg map[string]any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *client) sendRaw(raw string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

// read 讀下一則事件
func (c *client) read() wireEvent {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var e wireEvent
	require.NoError(c.t, c.conn.ReadJSON(&e))
	return e
}

// expect 讀到指定事件為止，略過其他事件
func (c *client) expect(event string) wireEvent {
	c.t.Helper()

	for {
		e := c.read()
		if e.Event == event {
			return e
		}
	}
}

// expectError 讀到指定錯誤事件並回傳錯誤碼
func (c *client) expectError(event string) errorData {
	c.t.Helper()

	var data errorData
	c.expect(event).decode(c.t, &data)
	return data
}

// createRoom 建立房間並回傳房間 ID
func (c *client) createRoom() string {
	c.t.Helper()

	c.send(map[string]any{"type": "create-game"})
	e := c.expect("game-created")
	require.NotEmpty(c.t, e.RoomID)
	return e.RoomID
}

// startedRoom 建立房間、加入、開始，回傳房間 ID 與兩人的第一題
func startedRoom(t *testing.T, env *testEnv) (roomID string, p1, p2 *client, t1, t2 taskData) {
	t.Helper()

	p1 = env.dial(t)
	p2 = env.dial(t)

	roomID = p1.createRoom()
	p2.send(map[string]any{"type": "join-game", "room_id": roomID})
	p2.expect("game-joined")
	p1.expect("player-joined")

	p1.send(map[string]any{"type": "start-game", "room_id": roomID})
	p1.expect("new-task").decode(t, &t1)
	p2.expect("new-task").decode(t, &t2)

	return roomID, p1, p2, t1, t2
}
