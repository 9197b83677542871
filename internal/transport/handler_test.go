package transport_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/color-duel/internal/game"
	"github.com/koopa0/system-design/color-duel/internal/transport"
)

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

// TestHandler_Health 測試健康檢查
func TestHandler_Health(t *testing.T) {
	env := newTestEnv(t, game.Options{}, transport.HubOptions{})

	status, body := getJSON(t, env.server.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

// TestHandler_GetRoomDetail 測試房間快照
func TestHandler_GetRoomDetail(t *testing.T) {
	env := newTestEnv(t, game.Options{}, transport.HubOptions{})

	p1 := env.dial(t)
	roomID := p1.createRoom()

	tests := []struct {
		name           string
		roomID         string
		expectedStatus int
		validate       func(t *testing.T, body map[string]any)
	}{
		{
			name:           "existing room",
			roomID:         roomID,
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, body map[string]any) {
				assert.Equal(t, roomID, body["room_id"])
				assert.Equal(t, string(game.PhaseAwaitingPlayers), body["phase"])

				player1, ok := body["player1"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, p1.id, player1["player_id"])
			},
		},
		{
			name:           "room not found",
			roomID:         "no-such-room",
			expectedStatus: http.StatusNotFound,
			validate: func(t *testing.T, body map[string]any) {
				assert.Contains(t, body["error"], "房間不存在")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := getJSON(t, env.server.URL+"/api/v1/rooms/"+tt.roomID)
			assert.Equal(t, tt.expectedStatus, status)
			tt.validate(t, body)
		})
	}
}

// TestHandler_Stats 測試統計資訊
func TestHandler_Stats(t *testing.T) {
	env := newTestEnv(t, game.Options{}, transport.HubOptions{})

	startedRoom(t, env)
	env.dial(t).createRoom()

	status, body := getJSON(t, env.server.URL+"/stats")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["total_rooms"])
	assert.Equal(t, float64(3), body["total_players"])
	assert.Equal(t, float64(3), body["connections"])

	byPhase, ok := body["by_phase"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), byPhase[string(game.PhaseActive)])
	assert.Equal(t, float64(1), byPhase[string(game.PhaseAwaitingPlayers)])
}

// TestHandler_WebSocketAfterStop 測試關閉後拒絕新連線
func TestHandler_WebSocketAfterStop(t *testing.T) {
	env := newTestEnv(t, game.Options{}, transport.HubOptions{})
	env.hub.Stop()

	resp, err := http.Get(env.server.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
