package api

import (
	"errors"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/http"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game"
)

// RoomHandler 房间管理接口
type RoomHandler struct {
	rooms       *game.RoomManager
	monitor     *game.Monitor
	connections func() int
}

// NewRoomHandler connections 返回当前 websocket 连接数，可以为 nil
func NewRoomHandler(rooms *game.RoomManager, monitor *game.Monitor, connections func() int) *RoomHandler {
	return &RoomHandler{rooms: rooms, monitor: monitor, connections: connections}
}

type createRoomResponse struct {
	game.RoomInfo
	Restored bool `json:"restored"`
}

// CreateRoom POST /api/rooms
func (h *RoomHandler) CreateRoom(c *http.Context) error {
	var params game.CreateParams
	if err := c.BindJSON(&params); err != nil {
		c.BadRequest("请求参数错误")
		return nil
	}
	if params.MapWidth < 0 || params.MapHeight < 0 || params.MaxPlayers < 0 {
		c.BadRequest("地图尺寸和人数不能为负数")
		return nil
	}

	room, restored, err := h.rooms.CreateRoom(c.Ctx(), params)
	if err != nil {
		if errors.Is(err, dto.ErrRoomExists) {
			c.Conflict(err.Error())
			return nil
		}
		return err
	}
	c.Created(createRoomResponse{RoomInfo: room.Info(), Restored: restored})
	return nil
}

// ListRooms GET /api/rooms
func (h *RoomHandler) ListRooms(c *http.Context) error {
	rooms := h.rooms.ListRooms()
	c.Success(map[string]any{
		"rooms": rooms,
		"total": len(rooms),
	})
	return nil
}

// GetRoom GET /api/rooms/:id 返回完整对局状态
func (h *RoomHandler) GetRoom(c *http.Context) error {
	room, ok := h.rooms.GetRoom(c.GetParam("id"))
	if !ok {
		c.NotFound("房间不存在")
		return nil
	}
	view, err := room.View(c.Ctx())
	if err != nil {
		if errors.Is(err, dto.ErrRoomClosed) {
			c.NotFound("房间已关闭")
			return nil
		}
		return err
	}
	c.Success(view)
	return nil
}

// DeleteRoom DELETE /api/rooms/:id 写最终检查点后关闭
func (h *RoomHandler) DeleteRoom(c *http.Context) error {
	id := c.GetParam("id")
	if err := h.rooms.DeleteRoom(c.Ctx(), id); err != nil {
		if errors.Is(err, dto.ErrRoomNotFound) {
			c.NotFound("房间不存在")
			return nil
		}
		log.Warn("删除房间 %s: %v", id, err)
	}
	c.Success(map[string]any{"matchId": id})
	return nil
}

// KickPlayer DELETE /api/rooms/:id/players/:userId 等同玩家主动离开
func (h *RoomHandler) KickPlayer(c *http.Context) error {
	room, ok := h.rooms.GetRoom(c.GetParam("id"))
	if !ok {
		c.NotFound("房间不存在")
		return nil
	}
	userID := c.GetParam("userId")
	if err := room.Kick(c.Ctx(), userID); err != nil {
		if errors.Is(err, dto.ErrSeatNotFound) || errors.Is(err, dto.ErrRoomClosed) {
			c.NotFound(err.Error())
			return nil
		}
		return err
	}
	c.Success(map[string]any{"matchId": room.ID, "userId": userID})
	return nil
}

// Stats GET /api/stats
func (h *RoomHandler) Stats(c *http.Context) error {
	games, players, connected := h.rooms.GetStats()
	stats := map[string]any{
		"rooms":     games,
		"seats":     players,
		"connected": connected,
	}
	if h.connections != nil {
		stats["sockets"] = h.connections()
	}
	if h.monitor != nil {
		load := h.monitor.Latest()
		stats["load"] = load.CalculateLoad()
		stats["cpu"] = load.CPUUsage
		stats["mem"] = load.MemUsage
	}
	c.Success(stats)
	return nil
}
