package api

import (
	nethttp "net/http"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/http"
)

// RegisterRoutes 注册管理接口和 websocket 入口
func RegisterRoutes(server *http.HttpServer, handler *RoomHandler, ws nethttp.Handler) {
	server.Use(http.RequestIDMiddleware(), http.LoggerMiddleware())
	server.GET("/ping", PingHandler)
	server.Handle(nethttp.MethodGet, "/ws/*path", ws)

	group := server.Group("/api")
	{
		group.POST("/rooms", handler.CreateRoom)
		group.GET("/rooms", handler.ListRooms)
		group.GET("/rooms/:id", handler.GetRoom)
		group.DELETE("/rooms/:id", handler.DeleteRoom)
		group.DELETE("/rooms/:id/players/:userId", handler.KickPlayer)
		group.GET("/stats", handler.Stats)
	}
}
