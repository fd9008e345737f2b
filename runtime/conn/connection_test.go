package conn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/memory"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// websocketPair 返回同一条 websocket 的服务端和客户端
func websocketPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(server.Close)

	client, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { client.Close() })

	select {
	case ws := <-accepted:
		t.Cleanup(func() { ws.Close() })
		return ws, client
	case <-time.After(2 * time.Second):
		t.Fatal("服务端没有收到连接")
		return nil, nil
	}
}

func TestLongConnection_SlowConsumerClosed(t *testing.T) {
	ctx := context.Background()
	recovery := game.NewRecoveryManager(memory.NewMatchSnapshotRepository(), time.Second)
	// 完整状态推迟很久，入座时只会产生一条 player_joined
	rooms := game.NewRoomManager(recovery, memory.NewLivenessRepository(), nil,
		game.RoomOptions{GraceWindow: time.Minute, SettleDelay: time.Hour, QueueSize: 64},
		game.RoomDefaults{MapWidth: 20, MapHeight: 20, MaxPlayers: 4})
	t.Cleanup(func() { rooms.CloseAll(context.Background()) })
	room, _, err := rooms.CreateRoom(ctx, game.CreateParams{MatchID: "m-slow"})
	require.NoError(t, err)

	worker := NewWorker(rooms, WithWriteBufferSize(1))
	t.Cleanup(worker.Close)

	serverSide, clientSide := websocketPair(t)
	con := newLongConnection("conn-slow", serverSide, share.JSONCodec{}, room, worker)
	con.UserID = "slow"
	require.NoError(t, room.Join(ctx, share.NewUserInfo("slow", "slow", con.ConnID), con))
	require.Equal(t, 1, room.Info().Seats)

	// 写协程不启动，player_joined 占满写队列
	require.Len(t, con.WriteChan, 1)
	go con.readMessage()

	err = con.Send(share.ChatMessageEvent{PlayerID: "slow", Username: "slow", Text: "hi"})
	require.ErrorIs(t, err, dto.ErrSendChanFull)
	select {
	case <-con.closeChan:
	default:
		t.Fatal("写队列满后连接应当关闭")
	}
	assert.ErrorIs(t, con.Send(share.ChatMessageEvent{Text: "again"}), dto.ErrConnectionClosed)

	require.NoError(t, clientSide.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = clientSide.ReadMessage()
	require.Error(t, err)

	// 读协程退出后房间收到断线，大厅座位被移除
	require.Eventually(t, func() bool {
		info := room.Info()
		return info.Seats == 0 && info.Connected == 0
	}, 2*time.Second, 10*time.Millisecond)
}
