package game

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/engines/tactics"

	"github.com/google/uuid"
)

// CreateParams 建房参数，零值使用默认配置
type CreateParams struct {
	MatchID    string      `json:"matchId,omitempty"`
	MapWidth   int         `json:"mapWidth,omitempty"`
	MapHeight  int         `json:"mapHeight,omitempty"`
	MaxPlayers int         `json:"maxPlayers,omitempty"`
	Blocked    []BlockCell `json:"blocked,omitempty"`
}

type BlockCell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// RoomDefaults 未指定参数时的默认值
type RoomDefaults struct {
	MapWidth   int
	MapHeight  int
	MaxPlayers int
}

// RoomManager 房间管理器，管理本节点所有房间
type RoomManager struct {
	rooms     map[string]*Room    // matchID -> Room
	creating  map[string]struct{} // 正在读取快照的 matchID
	mu        sync.RWMutex
	recovery  *RecoveryManager
	liveness  repository.LivenessRepository
	publisher Publisher
	opts      RoomOptions
	defaults  RoomDefaults
	onEmpty   func(roomID string)
}

func NewRoomManager(recovery *RecoveryManager, liveness repository.LivenessRepository, publisher Publisher,
	opts RoomOptions, defaults RoomDefaults) *RoomManager {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &RoomManager{
		rooms:     make(map[string]*Room),
		creating:  make(map[string]struct{}),
		recovery:  recovery,
		liveness:  liveness,
		publisher: publisher,
		opts:      opts,
		defaults:  defaults,
	}
}

// SetOnEmpty 由 Worker 注入销毁回调
func (rm *RoomManager) SetOnEmpty(fn func(roomID string)) {
	rm.onEmpty = fn
}

// CreateRoom 创建房间，存在同 ID 快照时按快照恢复（忽略其余参数）
func (rm *RoomManager) CreateRoom(ctx context.Context, params CreateParams) (*Room, bool, error) {
	matchID := params.MatchID
	if matchID == "" {
		matchID = uuid.NewString()
	}

	// 先占住 ID，读快照不持锁，避免阻塞 GetRoom
	rm.mu.Lock()
	_, exists := rm.rooms[matchID]
	_, pending := rm.creating[matchID]
	if exists || pending {
		rm.mu.Unlock()
		return nil, false, fmt.Errorf("%w: %s", dto.ErrRoomExists, matchID)
	}
	rm.creating[matchID] = struct{}{}
	rm.mu.Unlock()

	match, version, restored := rm.recovery.Restore(ctx, matchID)
	if !restored {
		match = tactics.NewMatch(matchID,
			orDefault(params.MapWidth, rm.defaults.MapWidth),
			orDefault(params.MapHeight, rm.defaults.MapHeight),
			orDefault(params.MaxPlayers, rm.defaults.MaxPlayers))
		for _, c := range params.Blocked {
			match.Tiles.Block(c.X, c.Y)
		}
	}

	room := NewRoom(match, rm.opts, RoomDeps{
		Checkpointer: rm.recovery.NewCheckpointer(matchID, version),
		Liveness:     rm.liveness,
		Publisher:    rm.publisher,
		OnEmpty:      rm.onEmpty,
	})
	rm.mu.Lock()
	delete(rm.creating, matchID)
	rm.rooms[matchID] = room
	rm.mu.Unlock()
	if !restored {
		rm.publisher.Publish(matchID, KindCreated, map[string]any{"mapWidth": match.MapWidth, "mapHeight": match.MapHeight})
	}
	log.Info("RoomManager 创建房间 %s, restored=%v, status=%s", matchID, restored, match.Status)
	return room, restored, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// RestoreAll 节点启动时恢复所有未结束的对局
func (rm *RoomManager) RestoreAll(ctx context.Context) (int, error) {
	ids, err := rm.recovery.ListUnfinished(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		if _, restored, err := rm.CreateRoom(ctx, CreateParams{MatchID: id}); err != nil {
			log.Warn("RoomManager 恢复房间 %s 失败: %v", id, err)
		} else if restored {
			count++
		}
	}
	return count, nil
}

func (rm *RoomManager) GetRoom(roomID string) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, exists := rm.rooms[roomID]
	return room, exists
}

// DeleteRoom 写最终检查点并关闭房间
func (rm *RoomManager) DeleteRoom(ctx context.Context, roomID string) error {
	rm.mu.Lock()
	room, exists := rm.rooms[roomID]
	if exists {
		delete(rm.rooms, roomID)
	}
	rm.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", dto.ErrRoomNotFound, roomID)
	}

	err := room.Shutdown(ctx)
	info := room.Info()
	// 没有座位的等待房间没有恢复价值
	if info.Seats == 0 && info.Status == tactics.StatusWaiting {
		if discardErr := rm.recovery.Discard(ctx, roomID); discardErr != nil {
			log.Warn("RoomManager 删除房间 %s 快照失败: %v", roomID, discardErr)
		}
	}
	log.Info("RoomManager 删除房间 %s", roomID)
	return err
}

// GetStats 房间数、座位数、在线连接数，供 Monitor 使用
func (rm *RoomManager) GetStats() (gameCount, playerCount, connected int) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	gameCount = len(rm.rooms)
	for _, room := range rm.rooms {
		info := room.Info()
		playerCount += info.Seats
		connected += info.Connected
	}
	return gameCount, playerCount, connected
}

// ListRooms 按创建时间排序
func (rm *RoomManager) ListRooms() []RoomInfo {
	rm.mu.RLock()
	infos := make([]RoomInfo, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		infos = append(infos, room.Info())
	}
	rm.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].MatchID < infos[j].MatchID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// CloseAll 进程退出时给每个房间写最终检查点
func (rm *RoomManager) CloseAll(ctx context.Context) {
	rm.mu.Lock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for id, room := range rm.rooms {
		rooms = append(rooms, room)
		delete(rm.rooms, id)
	}
	rm.mu.Unlock()

	var wg sync.WaitGroup
	for _, room := range rooms {
		wg.Add(1)
		go func(room *Room) {
			defer wg.Done()
			if err := room.Shutdown(ctx); err != nil {
				log.Warn("Room[%s] 关闭时写快照失败: %v", room.ID, err)
			}
		}(room)
	}
	wg.Wait()
}
