package game

import (
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"
)

// roomEvent 只在房间 actor 协程里处理
type roomEvent interface {
	roomEvent()
}

type joinEvent struct {
	user  *share.UserInfo
	peer  Peer
	reply chan error
}

type disconnectEvent struct {
	userID string
	connID string
}

type intentEvent struct {
	userID string
	connID string
	intent share.Intent
}

type graceExpiredEvent struct {
	userID string
	gen    uint64
}

type settleEvent struct {
	userID string
	connID string
}

// callEvent 在 actor 内执行任意函数，管理接口查询和踢人用
type callEvent struct {
	fn   func()
	done chan struct{}
}

func (joinEvent) roomEvent()         {}
func (disconnectEvent) roomEvent()   {}
func (intentEvent) roomEvent()       {}
func (graceExpiredEvent) roomEvent() {}
func (settleEvent) roomEvent()       {}
func (callEvent) roomEvent()         {}

// livenessOp 一次在线记录写入或清理
type livenessOp struct {
	userID string
	connID string
	clear  bool
}
