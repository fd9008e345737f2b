package game

import (
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"
)

// Peer 房间眼中的一条客户端连接
// Send 不能阻塞，写不进去由连接自己断开
type Peer interface {
	ID() string
	Send(event share.Event) error
	Close()
}

// Publisher 对局生命周期事件的外部出口
type Publisher interface {
	Publish(matchID, kind string, payload any)
}

type NopPublisher struct{}

func (NopPublisher) Publish(string, string, any) {}

// 生命周期事件类型
const (
	KindCreated  = "created"
	KindJoined   = "joined"
	KindStarted  = "started"
	KindTurn     = "turn"
	KindLeft     = "left"
	KindFinished = "finished"
	KindClosed   = "closed"
)
