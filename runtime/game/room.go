package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/engines/tactics"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"
)

// RoomOptions 房间运行参数
type RoomOptions struct {
	GraceWindow    time.Duration // 断线后保留座位的时长
	SettleDelay    time.Duration // 入座后推送完整状态的延迟
	IdleCheckpoint time.Duration // 0 表示不做空闲检查点
	LivenessTTL    time.Duration
	QueueSize      int
}

func OptionsFromConfig(c config.RoomConf) RoomOptions {
	return RoomOptions{
		GraceWindow:    c.GraceWindow(),
		SettleDelay:    c.SettleDelay(),
		IdleCheckpoint: c.IdleCheckpoint(),
		LivenessTTL:    c.LivenessTTL(),
		QueueSize:      c.EventQueueSize,
	}
}

// RoomDeps 房间的外部协作者
type RoomDeps struct {
	Checkpointer *Checkpointer
	Liveness     repository.LivenessRepository
	Publisher    Publisher
	// OnEmpty 没有座位（或已结束且没有连接）时请求销毁房间
	OnEmpty func(roomID string)
}

// RoomInfo 房间概况，列表和负载统计用，不经过 actor
type RoomInfo struct {
	MatchID    string         `json:"matchId"`
	Status     tactics.Status `json:"status"`
	Seats      int            `json:"seats"`
	Connected  int            `json:"connected"`
	MaxPlayers int            `json:"maxPlayers"`
	TurnNumber int            `json:"turnNumber"`
	MapWidth   int            `json:"mapWidth"`
	MapHeight  int            `json:"mapHeight"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Room 一局对局的唯一权威
// match、peers 和各类计时器只在 actorLoop 协程里读写，不加锁
type Room struct {
	ID        string
	CreatedAt time.Time

	match       *tactics.Match
	peers       map[string]Peer // userID -> 当前连接
	graceTimers map[string]*time.Timer
	graceGen    map[string]uint64
	genSeq      uint64
	dirty       bool // 上次检查点之后状态有变化

	opts         RoomOptions
	checkpointer *Checkpointer
	liveness     repository.LivenessRepository
	publisher    Publisher
	onEmpty      func(roomID string)
	livenessOps  chan livenessOp

	info atomic.Pointer[RoomInfo]

	events    chan roomEvent
	done      chan struct{}
	actorExit chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	emptyOnce sync.Once
}

// NewRoom 启动房间 actor。恢复出来的对战中对局，每个座位都开始宽限计时
func NewRoom(match *tactics.Match, opts RoomOptions, deps RoomDeps) *Room {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if deps.Publisher == nil {
		deps.Publisher = NopPublisher{}
	}
	r := &Room{
		ID:           match.ID,
		CreatedAt:    time.Now(),
		match:        match,
		peers:        make(map[string]Peer),
		graceTimers:  make(map[string]*time.Timer),
		graceGen:     make(map[string]uint64),
		opts:         opts,
		checkpointer: deps.Checkpointer,
		liveness:     deps.Liveness,
		publisher:    deps.Publisher,
		onEmpty:      deps.OnEmpty,
		events:       make(chan roomEvent, opts.QueueSize),
		done:         make(chan struct{}),
		actorExit:    make(chan struct{}),
	}
	if r.liveness != nil {
		r.livenessOps = make(chan livenessOp, opts.QueueSize)
		go r.livenessLoop()
	}
	if match.Status == tactics.StatusActive {
		for _, id := range match.Sequence.Seats() {
			r.startGrace(id)
		}
	}
	r.updateInfo()
	go r.actorLoop()
	return r
}

func (r *Room) actorLoop() {
	defer close(r.actorExit)

	var idle <-chan time.Time
	if r.opts.IdleCheckpoint > 0 {
		ticker := time.NewTicker(r.opts.IdleCheckpoint)
		defer ticker.Stop()
		idle = ticker.C
	}
	for {
		select {
		case <-r.done:
			return
		case <-idle:
			if r.dirty || (r.checkpointer != nil && r.checkpointer.NeedsRetry()) {
				r.checkpoint()
			}
		case event := <-r.events:
			r.processEvent(event)
			r.updateInfo()
		}
	}
}

func (r *Room) processEvent(event roomEvent) {
	switch ev := event.(type) {
	case joinEvent:
		ev.reply <- r.handleJoin(ev.user, ev.peer)
	case disconnectEvent:
		r.handleDisconnect(ev.userID, ev.connID)
	case intentEvent:
		r.handleIntent(ev.userID, ev.connID, ev.intent)
	case graceExpiredEvent:
		r.handleGraceExpired(ev.userID, ev.gen)
	case settleEvent:
		r.handleSettle(ev.userID, ev.connID)
	case callEvent:
		ev.fn()
		close(ev.done)
	}
}

// post 生命周期事件不能丢，队列满时等待
func (r *Room) post(event roomEvent) bool {
	if r.closed.Load() {
		return false
	}
	select {
	case <-r.done:
		return false
	case r.events <- event:
		return true
	}
}

// Join 鉴权通过的连接请求入座，返回 nil 表示已绑定座位
// 入队后调用方超时放弃时，排在 joinEvent 之后补一个断线事件，撤销可能已完成的绑定
func (r *Room) Join(ctx context.Context, user *share.UserInfo, peer Peer) error {
	reply := make(chan error, 1)
	select {
	case <-r.done:
		return dto.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.events <- joinEvent{user: user, peer: peer, reply: reply}:
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return dto.ErrRoomClosed
	case <-ctx.Done():
		log.Warn("Room[%s] 用户 %s 入座超时，撤销连接 %s", r.ID, user.UserID, peer.ID())
		go r.Disconnect(user.UserID, peer.ID())
		return ctx.Err()
	}
}

// Disconnect 连接断开（非主动离开）
func (r *Room) Disconnect(userID, connID string) {
	r.post(disconnectEvent{userID: userID, connID: connID})
}

// NotifyIntent 客户端意图入队，队列满时丢弃
func (r *Room) NotifyIntent(userID, connID string, intent share.Intent) bool {
	if intent == nil || r.closed.Load() {
		return false
	}
	select {
	case <-r.done:
		return false
	case r.events <- intentEvent{userID: userID, connID: connID, intent: intent}:
		return true
	default:
		log.Warn("Room[%s] 事件队列已满, intent=%s", r.ID, intent.IntentType())
		return false
	}
}

// call 在 actor 内同步执行
func (r *Room) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case <-r.done:
		return dto.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.events <- callEvent{fn: fn, done: done}:
	}
	select {
	case <-done:
		return nil
	case <-r.done:
		return dto.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View 当前完整状态
func (r *Room) View(ctx context.Context) (*tactics.StateView, error) {
	var view *tactics.StateView
	if err := r.call(ctx, func() { view = r.match.View() }); err != nil {
		return nil, err
	}
	return view, nil
}

// Kick 管理员移除座位，等同主动离开
func (r *Room) Kick(ctx context.Context, userID string) error {
	var kickErr error
	err := r.call(ctx, func() {
		if _, ok := r.match.Players[userID]; !ok {
			kickErr = dto.ErrSeatNotFound
			return
		}
		r.handleLeave(userID)
		r.updateInfo()
	})
	if err != nil {
		return err
	}
	return kickErr
}

func (r *Room) Info() RoomInfo {
	return *r.info.Load()
}

func (r *Room) updateInfo() {
	r.info.Store(&RoomInfo{
		MatchID:    r.match.ID,
		Status:     r.match.Status,
		Seats:      len(r.match.Players),
		Connected:  len(r.peers),
		MaxPlayers: r.match.MaxPlayers,
		TurnNumber: r.match.TurnNumber,
		MapWidth:   r.match.MapWidth,
		MapHeight:  r.match.MapHeight,
		CreatedAt:  r.CreatedAt,
	})
}

// Shutdown 写最终检查点后关闭房间，等待快照落盘
func (r *Room) Shutdown(ctx context.Context) error {
	if err := r.call(ctx, r.checkpoint); err != nil && err != dto.ErrRoomClosed {
		log.Warn("Room[%s] 最终检查点失败: %v", r.ID, err)
	}
	r.Close()
	if r.checkpointer == nil {
		return nil
	}
	return r.checkpointer.Flush(ctx)
}

// Close 停止 actor，关闭所有连接
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		<-r.actorExit

		for userID, timer := range r.graceTimers {
			timer.Stop()
			delete(r.graceTimers, userID)
		}
		for userID, peer := range r.peers {
			peer.Close()
			delete(r.peers, userID)
		}
		r.publisher.Publish(r.ID, KindClosed, nil)
		log.Info("Room[%s] 已关闭", r.ID)
	})
}

func (r *Room) Closed() bool {
	return r.closed.Load()
}
