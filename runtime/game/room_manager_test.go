package game

import (
	"context"
	"testing"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/entity"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/memory"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/engines/tactics"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	kinds chan string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{kinds: make(chan string, 256)}
}

func (p *recordingPublisher) Publish(_ string, kind string, _ any) {
	select {
	case p.kinds <- kind:
	default:
	}
}

func (p *recordingPublisher) seen() map[string]bool {
	out := make(map[string]bool)
	for {
		select {
		case k := <-p.kinds:
			out[k] = true
		default:
			return out
		}
	}
}

func newTestManager(repo repository.MatchSnapshotRepository, publisher Publisher) *RoomManager {
	return NewRoomManager(NewRecoveryManager(repo, time.Second), memory.NewLivenessRepository(), publisher,
		testOptions(), RoomDefaults{MapWidth: 16, MapHeight: 12, MaxPlayers: 4})
}

func joinRoom(t *testing.T, room *Room, userID string) *fakePeer {
	t.Helper()
	peer := newFakePeer()
	require.NoError(t, room.Join(context.Background(), share.NewUserInfo(userID, userID, peer.ID()), peer))
	return peer
}

func TestRoomManager_CreateUsesDefaultsAndRejectsDuplicate(t *testing.T) {
	rm := newTestManager(memory.NewMatchSnapshotRepository(), nil)
	t.Cleanup(func() { rm.CloseAll(context.Background()) })

	room, restored, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "m-1", MaxPlayers: 2})
	require.NoError(t, err)
	assert.False(t, restored)
	info := room.Info()
	assert.Equal(t, 16, info.MapWidth)
	assert.Equal(t, 12, info.MapHeight)
	assert.Equal(t, 2, info.MaxPlayers)

	_, _, err = rm.CreateRoom(context.Background(), CreateParams{MatchID: "m-1"})
	assert.ErrorIs(t, err, dto.ErrRoomExists)

	generated, _, err := rm.CreateRoom(context.Background(), CreateParams{})
	require.NoError(t, err)
	assert.NotEmpty(t, generated.ID)
	assert.Len(t, rm.ListRooms(), 2)
}

// slowLoadRepo Load 卡住直到测试放行，模拟慢存储
type slowLoadRepo struct {
	*memory.MatchSnapshotRepository
	entered chan struct{}
	release chan struct{}
}

func (r *slowLoadRepo) Load(ctx context.Context, matchID string) (*entity.MatchSnapshot, error) {
	r.entered <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.MatchSnapshotRepository.Load(ctx, matchID)
}

func TestRoomManager_CreateDoesNotBlockLookups(t *testing.T) {
	repo := &slowLoadRepo{
		MatchSnapshotRepository: memory.NewMatchSnapshotRepository(),
		entered:                 make(chan struct{}, 1),
		release:                 make(chan struct{}),
	}
	rm := newTestManager(repo, nil)
	t.Cleanup(func() { rm.CloseAll(context.Background()) })

	type created struct {
		room *Room
		err  error
	}
	result := make(chan created, 1)
	go func() {
		room, _, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "slow"})
		result <- created{room: room, err: err}
	}()
	select {
	case <-repo.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("CreateRoom 没有读取快照")
	}

	// 读快照期间查询不被阻塞，同 ID 的创建直接拒绝
	looked := make(chan bool, 1)
	go func() {
		_, ok := rm.GetRoom("slow")
		looked <- ok
	}()
	select {
	case ok := <-looked:
		assert.False(t, ok)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("GetRoom 被 CreateRoom 阻塞")
	}
	_, _, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "slow"})
	assert.ErrorIs(t, err, dto.ErrRoomExists)

	close(repo.release)
	res := <-result
	require.NoError(t, res.err)
	room, ok := rm.GetRoom("slow")
	require.True(t, ok)
	assert.Same(t, res.room, room)
}

func TestRoomManager_BlockedCells(t *testing.T) {
	rm := newTestManager(memory.NewMatchSnapshotRepository(), nil)
	t.Cleanup(func() { rm.CloseAll(context.Background()) })

	room, _, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "m-1", Blocked: []BlockCell{{X: 5, Y: 5}}})
	require.NoError(t, err)

	var walkable bool
	require.NoError(t, room.call(context.Background(), func() {
		walkable = room.match.Tiles.At(tactics.Position{X: 5, Y: 5}).Walkable
	}))
	assert.False(t, walkable)
}

func TestRoomManager_RestoreActiveMatch(t *testing.T) {
	repo := memory.NewMatchSnapshotRepository()
	publisher := newRecordingPublisher()
	rm := newTestManager(repo, publisher)

	room, _, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "m-1"})
	require.NoError(t, err)
	a := joinRoom(t, room, "a")
	b := joinRoom(t, room, "b")
	require.True(t, room.NotifyIntent("a", a.ID(), share.ReadyIntent{}))
	require.True(t, room.NotifyIntent("b", b.ID(), share.ReadyIntent{}))
	waitEvent[share.GameStartedEvent](t, a, nil)
	require.True(t, room.NotifyIntent("a", a.ID(), share.EndTurnIntent{}))
	waitEvent[share.TurnChangedEvent](t, a, nil)
	before, err := room.View(context.Background())
	require.NoError(t, err)

	rm.CloseAll(context.Background())
	assert.True(t, a.closed.Load())
	seen := publisher.seen()
	for _, kind := range []string{KindCreated, KindJoined, KindStarted, KindTurn, KindClosed} {
		assert.True(t, seen[kind], kind)
	}

	// 模拟节点重启
	restarted := newTestManager(repo, nil)
	t.Cleanup(func() { restarted.CloseAll(context.Background()) })
	count, err := restarted.RestoreAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	restoredRoom, ok := restarted.GetRoom("m-1")
	require.True(t, ok)
	after, err := restoredRoom.View(context.Background())
	require.NoError(t, err)

	assert.Equal(t, tactics.StatusActive, after.Status)
	assert.Equal(t, before.TurnNumber, after.TurnNumber)
	assert.Equal(t, before.TurnSequence, after.TurnSequence)
	assert.Equal(t, before.CurrentPlayerID, after.CurrentPlayerID)
	assert.Equal(t, len(before.Units), len(after.Units))
	for _, p := range after.Players {
		assert.False(t, p.IsActive, "恢复后所有座位都等待重连")
	}

	// 重连回到原座位
	again := joinRoom(t, restoredRoom, "b")
	state := waitEvent[share.GameStateEvent](t, again, nil)
	assert.Equal(t, "b", state.GameState.CurrentPlayerID)
}

func TestRoomManager_CorruptSnapshotStartsFresh(t *testing.T) {
	repo := memory.NewMatchSnapshotRepository()
	repo.PutRaw("broken", entity.MatchStatusActive, []byte("{not json"))
	rm := newTestManager(repo, nil)
	t.Cleanup(func() { rm.CloseAll(context.Background()) })

	room, restored, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "broken"})
	require.NoError(t, err)
	assert.False(t, restored)
	assert.Equal(t, tactics.StatusWaiting, room.Info().Status)

	_, err = repo.Load(context.Background(), "broken")
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
}

func TestRoomManager_InvalidSnapshotStartsFresh(t *testing.T) {
	repo := memory.NewMatchSnapshotRepository()
	// 回合序列引用了不存在的玩家
	require.NoError(t, repo.Save(context.Background(), &entity.MatchSnapshot{
		MatchID:      "bad",
		Status:       entity.MatchStatusActive,
		MapWidth:     20,
		MapHeight:    20,
		MaxPlayers:   4,
		TurnSequence: []string{"ghost"},
		Version:      1,
	}))
	rm := newTestManager(repo, nil)
	t.Cleanup(func() { rm.CloseAll(context.Background()) })

	count, err := rm.RestoreAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	room, ok := rm.GetRoom("bad")
	require.True(t, ok)
	assert.Equal(t, tactics.StatusWaiting, room.Info().Status)
}

func TestRoomManager_DeleteEmptyLobbyDiscardsSnapshot(t *testing.T) {
	repo := memory.NewMatchSnapshotRepository()
	rm := newTestManager(repo, nil)

	room, _, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "m-1"})
	require.NoError(t, err)
	require.NoError(t, rm.DeleteRoom(context.Background(), "m-1"))
	assert.True(t, room.Closed())

	_, err = repo.Load(context.Background(), "m-1")
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	assert.ErrorIs(t, rm.DeleteRoom(context.Background(), "m-1"), dto.ErrRoomNotFound)
}

func TestRoomManager_Stats(t *testing.T) {
	rm := newTestManager(memory.NewMatchSnapshotRepository(), nil)
	t.Cleanup(func() { rm.CloseAll(context.Background()) })

	r1, _, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "m-1"})
	require.NoError(t, err)
	_, _, err = rm.CreateRoom(context.Background(), CreateParams{MatchID: "m-2"})
	require.NoError(t, err)
	joinRoom(t, r1, "a")
	b := joinRoom(t, r1, "b")
	// Info 在 actor 处理完事件后刷新
	_, err = r1.View(context.Background())
	require.NoError(t, err)

	games, players, connected := rm.GetStats()
	assert.Equal(t, 2, games)
	assert.Equal(t, 2, players)
	assert.Equal(t, 2, connected)

	r1.Disconnect("b", b.ID())
	require.Eventually(t, func() bool {
		_, players, _ := rm.GetStats()
		return players == 1
	}, time.Second, 10*time.Millisecond)

	load := NewMonitor(rm, nil, time.Minute).Collect()
	assert.Equal(t, 2, load.GameCount)
	assert.Equal(t, 1, load.PlayerCount)
}

func TestWorker_DestroysEmptyRoom(t *testing.T) {
	rm := newTestManager(memory.NewMatchSnapshotRepository(), nil)
	worker := NewWorker("node-1", rm)
	t.Cleanup(func() { worker.Close(context.Background()) })

	room, _, err := rm.CreateRoom(context.Background(), CreateParams{MatchID: "m-1"})
	require.NoError(t, err)
	a := joinRoom(t, room, "a")
	require.True(t, room.NotifyIntent("a", a.ID(), share.LeaveIntent{}))

	require.Eventually(t, func() bool {
		_, ok := rm.GetRoom("m-1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, room.Closed())
}
