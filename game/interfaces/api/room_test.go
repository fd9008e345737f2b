package api

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/http"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/memory"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPeer struct{ id string }

func (p testPeer) ID() string             { return p.id }
func (p testPeer) Send(share.Event) error { return nil }
func (p testPeer) Close()                 {}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) (nethttp.Handler, *game.RoomManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recovery := game.NewRecoveryManager(memory.NewMatchSnapshotRepository(), time.Second)
	rooms := game.NewRoomManager(recovery, memory.NewLivenessRepository(), nil,
		game.RoomOptions{GraceWindow: time.Minute, QueueSize: 16},
		game.RoomDefaults{MapWidth: 20, MapHeight: 20, MaxPlayers: 4})
	t.Cleanup(func() { rooms.CloseAll(context.Background()) })

	server := http.NewHttpServer(http.WithMode(gin.TestMode))
	ws := nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusTeapot)
	})
	RegisterRoutes(server, NewRoomHandler(rooms, game.NewMonitor(rooms, nil, time.Minute), func() int { return 7 }), ws)
	return server.Handler(), rooms
}

func do(t *testing.T, router nethttp.Handler, method, path string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Code != nethttp.StatusTeapot {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestCreateRoom(t *testing.T) {
	router, rooms := setupRouter(t)

	w, resp := do(t, router, nethttp.MethodPost, "/api/rooms", map[string]any{
		"matchId": "m-1", "mapWidth": 300, "maxPlayers": 2,
		"blocked": []map[string]int{{"x": 3, "y": 3}},
	})
	assert.Equal(t, nethttp.StatusCreated, w.Code)
	assert.Equal(t, http.CodeSuccess, resp.Code)

	var info struct {
		MatchID    string `json:"matchId"`
		MapWidth   int    `json:"mapWidth"`
		MaxPlayers int    `json:"maxPlayers"`
		Restored   bool   `json:"restored"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, "m-1", info.MatchID)
	assert.Equal(t, 128, info.MapWidth, "尺寸被钳制")
	assert.Equal(t, 2, info.MaxPlayers)
	assert.False(t, info.Restored)

	_, ok := rooms.GetRoom("m-1")
	assert.True(t, ok)

	w, resp = do(t, router, nethttp.MethodPost, "/api/rooms", map[string]any{"matchId": "m-1"})
	assert.Equal(t, nethttp.StatusConflict, w.Code)
	assert.Equal(t, http.CodeConflict, resp.Code)
}

func TestCreateRoom_EmptyBodyUsesDefaults(t *testing.T) {
	router, _ := setupRouter(t)
	w, resp := do(t, router, nethttp.MethodPost, "/api/rooms", nil)
	require.Equal(t, nethttp.StatusCreated, w.Code)

	var info game.RoomInfo
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.NotEmpty(t, info.MatchID)
	assert.Equal(t, 4, info.MaxPlayers)
}

func TestCreateRoom_BadRequest(t *testing.T) {
	router, _ := setupRouter(t)
	w, resp := do(t, router, nethttp.MethodPost, "/api/rooms", map[string]any{"mapWidth": -1})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
	assert.Equal(t, http.CodeInvalidParam, resp.Code)
}

func TestGetRoomAndList(t *testing.T) {
	router, rooms := setupRouter(t)
	room, _, err := rooms.CreateRoom(context.Background(), game.CreateParams{MatchID: "m-1"})
	require.NoError(t, err)
	require.NoError(t, room.Join(context.Background(), share.NewUserInfo("a", "Alice", "c-1"), testPeer{id: "c-1"}))

	w, resp := do(t, router, nethttp.MethodGet, "/api/rooms/m-1", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var view struct {
		MatchID string `json:"matchId"`
		Status  string `json:"status"`
		Players []struct {
			ID string `json:"id"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "waiting", view.Status)
	require.Len(t, view.Players, 1)
	assert.Equal(t, "a", view.Players[0].ID)

	w, resp = do(t, router, nethttp.MethodGet, "/api/rooms", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Equal(t, 1, list.Total)

	w, _ = do(t, router, nethttp.MethodGet, "/api/rooms/nope", nil)
	assert.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestKickAndDelete(t *testing.T) {
	router, rooms := setupRouter(t)
	room, _, err := rooms.CreateRoom(context.Background(), game.CreateParams{MatchID: "m-1"})
	require.NoError(t, err)
	require.NoError(t, room.Join(context.Background(), share.NewUserInfo("a", "Alice", "c-1"), testPeer{id: "c-1"}))
	require.NoError(t, room.Join(context.Background(), share.NewUserInfo("b", "Bob", "c-2"), testPeer{id: "c-2"}))

	w, _ := do(t, router, nethttp.MethodDelete, "/api/rooms/m-1/players/a", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Equal(t, 1, room.Info().Seats)

	w, _ = do(t, router, nethttp.MethodDelete, "/api/rooms/m-1/players/ghost", nil)
	assert.Equal(t, nethttp.StatusNotFound, w.Code)

	w, _ = do(t, router, nethttp.MethodDelete, "/api/rooms/m-1", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.True(t, room.Closed())

	w, _ = do(t, router, nethttp.MethodDelete, "/api/rooms/m-1", nil)
	assert.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	router, rooms := setupRouter(t)
	_, _, err := rooms.CreateRoom(context.Background(), game.CreateParams{MatchID: "m-1"})
	require.NoError(t, err)

	w, resp := do(t, router, nethttp.MethodGet, "/api/stats", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.EqualValues(t, 1, stats["rooms"])
	assert.EqualValues(t, 7, stats["sockets"])
	assert.Contains(t, stats, "load")
}

func TestWebsocketRouteMounted(t *testing.T) {
	router, _ := setupRouter(t)
	w, _ := do(t, router, nethttp.MethodGet, "/ws/m-1", nil)
	assert.Equal(t, nethttp.StatusTeapot, w.Code)
}
