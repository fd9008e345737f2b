package game

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/engines/tactics"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"
)

const maxChatRunes = 256

func (r *Room) handleJoin(user *share.UserInfo, peer Peer) error {
	m := r.match
	player, seated := m.Players[user.UserID]
	if seated {
		reconnected := !player.IsActive
		if old, ok := r.peers[user.UserID]; ok && old.ID() != peer.ID() {
			// 同一用户的第二条连接顶掉旧连接
			log.Info("Room[%s] 用户 %s 新连接 %s 替换旧连接 %s", r.ID, user.UserID, peer.ID(), old.ID())
			old.Close()
		}
		r.stopGrace(user.UserID)
		r.bind(user, peer)
		log.Info("Room[%s] 玩家 %s 重新接入, reconnected=%v", r.ID, user.UserID, reconnected)
		r.broadcast(share.PlayerJoinedEvent{
			PlayerID:    player.ID,
			DisplayName: player.DisplayName,
			ColorTag:    player.ColorTag,
			Reconnected: true,
		})
		r.scheduleSettle(user.UserID, peer.ID())
		return nil
	}

	player, err := m.AddPlayer(user.UserID, user.DisplayName)
	if err != nil {
		return err
	}
	r.bind(user, peer)
	log.Info("Room[%s] 玩家 %s 入座, seat=%d, color=%s", r.ID, player.ID, player.SeatIndex, player.ColorTag)
	r.broadcast(share.PlayerJoinedEvent{
		PlayerID:    player.ID,
		DisplayName: player.DisplayName,
		ColorTag:    player.ColorTag,
	})
	r.publisher.Publish(r.ID, KindJoined, map[string]any{"playerId": player.ID})
	r.scheduleSettle(user.UserID, peer.ID())
	return nil
}

// bind 座位绑定到新连接，并异步刷新在线记录
func (r *Room) bind(user *share.UserInfo, peer Peer) {
	r.peers[user.UserID] = peer
	r.match.SetActive(user.UserID, true)
	r.match.Sessions[user.UserID] = peer.ID()
	r.dirty = true
	r.recordLiveness(user.UserID, peer.ID())
}

func (r *Room) handleDisconnect(userID, connID string) {
	peer, ok := r.peers[userID]
	if !ok || peer.ID() != connID {
		// 已被新连接替换或已离开
		return
	}
	delete(r.peers, userID)
	player, seated := r.match.Players[userID]
	if !seated {
		return
	}

	switch r.match.Status {
	case tactics.StatusWaiting:
		log.Info("Room[%s] 大厅玩家 %s 断线，移除座位", r.ID, userID)
		r.removeSeat(userID)
	case tactics.StatusActive:
		r.match.SetActive(userID, false)
		r.dirty = true
		log.Info("Room[%s] 玩家 %s 断线，保留座位 %v", r.ID, userID, r.opts.GraceWindow)
		r.broadcast(share.PlayerLeftEvent{PlayerID: userID, DisplayName: player.DisplayName, Temporary: true})
		r.startGrace(userID)
		if change, moved := r.match.ForceAdvance(userID); moved {
			r.onTurnChanged(change)
		}
	case tactics.StatusFinished:
		r.match.SetActive(userID, false)
		r.checkEmpty()
	}
}

func (r *Room) handleGraceExpired(userID string, gen uint64) {
	if r.graceGen[userID] != gen {
		return
	}
	delete(r.graceTimers, userID)
	delete(r.graceGen, userID)
	if _, ok := r.peers[userID]; ok {
		return
	}
	if _, seated := r.match.Players[userID]; !seated {
		return
	}
	log.Info("Room[%s] 玩家 %s 宽限期结束，移除座位", r.ID, userID)
	r.removeSeat(userID)
}

// handleLeave 主动离开：不给宽限期
func (r *Room) handleLeave(userID string) {
	peer, connected := r.peers[userID]
	delete(r.peers, userID)
	log.Info("Room[%s] 玩家 %s 主动离开", r.ID, userID)
	r.removeSeat(userID)
	if connected {
		peer.Close()
	}
}

// removeSeat 永久移除座位、回合序列位置和单位
func (r *Room) removeSeat(userID string) {
	player, seated := r.match.Players[userID]
	if !seated {
		return
	}
	r.stopGrace(userID)
	removal, err := r.match.RemovePlayer(userID)
	if err != nil {
		log.Warn("Room[%s] 移除座位 %s 失败: %v", r.ID, userID, err)
		return
	}
	r.dirty = true
	r.clearLiveness(userID)
	r.broadcast(share.PlayerLeftEvent{PlayerID: userID, DisplayName: player.DisplayName, Temporary: false})
	r.publisher.Publish(r.ID, KindLeft, map[string]any{"playerId": userID, "units": removal.Units})

	switch r.match.Status {
	case tactics.StatusWaiting:
		r.broadcastState()
		r.tryStart()
	case tactics.StatusActive:
		switch {
		case r.checkGameOver():
		case removal.TurnChanged != nil:
			r.onTurnChanged(removal.TurnChanged)
		default:
			r.checkpoint()
		}
	}
	r.checkEmpty()
}

func (r *Room) handleSettle(userID, connID string) {
	peer, ok := r.peers[userID]
	if !ok || peer.ID() != connID {
		return
	}
	r.send(peer, share.GameStateEvent{GameState: r.match.View()})
}

func (r *Room) handleIntent(userID, connID string, intent share.Intent) {
	peer, ok := r.peers[userID]
	if !ok || peer.ID() != connID {
		return
	}

	switch in := intent.(type) {
	case share.ReadyIntent:
		if err := r.match.SetReady(userID, in.IsReady()); err != nil {
			r.send(peer, share.NewErrorEvent(err))
			return
		}
		if r.match.Status != tactics.StatusWaiting {
			return
		}
		r.dirty = true
		r.broadcastState()
		r.tryStart()

	case share.UnitActionIntent:
		res, err := r.match.ApplyAction(userID, in.Action())
		if err != nil {
			r.send(peer, share.NewErrorEvent(err))
			return
		}
		if res.Success {
			r.dirty = true
		}
		r.broadcast(share.UnitActionResultEvent{
			Type:         string(res.Type),
			UnitID:       res.UnitID,
			Success:      res.Success,
			TargetUnitID: res.TargetUnitID,
			Damage:       res.Damage,
			Killed:       res.Killed,
			GameState:    r.match.View(),
		})
		if res.Killed {
			r.checkGameOver()
		}

	case share.EndTurnIntent:
		change, err := r.match.EndTurn(userID)
		if err != nil {
			r.send(peer, share.NewErrorEvent(err))
			return
		}
		r.onTurnChanged(change)

	case share.ChatIntent:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return
		}
		if utf8.RuneCountInString(text) > maxChatRunes {
			text = string([]rune(text)[:maxChatRunes])
		}
		player := r.match.Players[userID]
		r.broadcast(share.ChatMessageEvent{
			PlayerID:  userID,
			Username:  player.DisplayName,
			Text:      text,
			Timestamp: time.Now().UnixMilli(),
		})

	case share.LeaveIntent:
		r.handleLeave(userID)
	}
}

func (r *Room) tryStart() {
	if !r.match.CanStart() {
		return
	}
	if err := r.match.Start(); err != nil {
		log.Warn("Room[%s] 开局失败: %v", r.ID, err)
		return
	}
	log.Info("Room[%s] 对局开始, seats=%d", r.ID, r.match.Sequence.Len())
	r.broadcast(share.GameStartedEvent{GameState: r.match.View()})
	r.publisher.Publish(r.ID, KindStarted, map[string]any{"seats": r.match.Sequence.Seats()})
	r.checkpoint()
}

// onTurnChanged 回合切换：广播并写检查点
// 轮到离线座位时不跳过，等它重连或宽限期结束移除座位时再让出回合
func (r *Room) onTurnChanged(change *tactics.TurnChange) {
	r.broadcast(share.TurnChangedEvent{
		CurrentPlayerIndex: change.Index,
		CurrentPlayerID:    change.To,
		TurnNumber:         change.TurnNumber,
		GameState:          r.match.View(),
	})
	r.publisher.Publish(r.ID, KindTurn, map[string]any{"turnNumber": change.TurnNumber, "currentPlayerId": change.To})
	r.checkpoint()
}

// checkGameOver 对局结束时广播并写最终检查点
func (r *Room) checkGameOver() bool {
	winnerID, finished := r.match.CheckWinner()
	if !finished {
		return false
	}
	log.Info("Room[%s] 对局结束, winner=%s", r.ID, winnerID)
	for userID := range r.graceTimers {
		r.stopGrace(userID)
	}
	r.broadcast(share.GameOverEvent{WinnerID: winnerID, GameState: r.match.View()})
	r.publisher.Publish(r.ID, KindFinished, map[string]any{"winnerId": winnerID})
	r.checkpoint()
	r.checkEmpty()
	return true
}

// checkEmpty 没有座位，或已结束且无人在线时请求销毁
func (r *Room) checkEmpty() {
	empty := len(r.match.Players) == 0 ||
		(r.match.Status == tactics.StatusFinished && len(r.peers) == 0)
	if !empty || r.onEmpty == nil {
		return
	}
	r.emptyOnce.Do(func() {
		go r.onEmpty(r.ID)
	})
}

func (r *Room) checkpoint() {
	r.dirty = false
	if r.checkpointer == nil {
		return
	}
	r.checkpointer.Checkpoint(r.match.ToSnapshot())
}

func (r *Room) startGrace(userID string) {
	r.stopGrace(userID)
	r.genSeq++
	gen := r.genSeq
	r.graceGen[userID] = gen
	r.graceTimers[userID] = time.AfterFunc(r.opts.GraceWindow, func() {
		r.post(graceExpiredEvent{userID: userID, gen: gen})
	})
}

func (r *Room) stopGrace(userID string) {
	if timer, ok := r.graceTimers[userID]; ok {
		timer.Stop()
		delete(r.graceTimers, userID)
	}
	delete(r.graceGen, userID)
}

func (r *Room) scheduleSettle(userID, connID string) {
	if r.opts.SettleDelay <= 0 {
		r.handleSettle(userID, connID)
		return
	}
	time.AfterFunc(r.opts.SettleDelay, func() {
		r.post(settleEvent{userID: userID, connID: connID})
	})
}

func (r *Room) send(peer Peer, event share.Event) {
	if err := peer.Send(event); err != nil {
		log.Debug("Room[%s] 推送 %s 到连接 %s 失败: %v", r.ID, event.EventType(), peer.ID(), err)
	}
}

// broadcast 按回合序列顺序推送给所有在线座位
func (r *Room) broadcast(event share.Event) {
	for _, userID := range r.match.Sequence.Seats() {
		if peer, ok := r.peers[userID]; ok {
			r.send(peer, event)
		}
	}
}

func (r *Room) broadcastState() {
	r.broadcast(share.GameStateEvent{GameState: r.match.View()})
}

func (r *Room) recordLiveness(userID, connID string) {
	r.enqueueLiveness(livenessOp{userID: userID, connID: connID})
}

func (r *Room) clearLiveness(userID string) {
	r.enqueueLiveness(livenessOp{userID: userID, clear: true})
}

// enqueueLiveness 在线记录按发生顺序写入，不阻塞 actor
func (r *Room) enqueueLiveness(op livenessOp) {
	if r.livenessOps == nil {
		return
	}
	select {
	case r.livenessOps <- op:
	default:
		log.Warn("Room[%s] 在线记录队列已满, user=%s", r.ID, op.userID)
	}
}

// livenessLoop 单协程写在线记录，保证同一用户的写入和清理不会乱序
func (r *Room) livenessLoop() {
	for {
		select {
		case <-r.done:
			return
		case op := <-r.livenessOps:
			r.applyLiveness(op)
		}
	}
}

func (r *Room) applyLiveness(op livenessOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var err error
	if op.clear {
		err = r.liveness.ClearLiveness(ctx, op.userID, r.ID)
	} else {
		err = r.liveness.RecordLiveness(ctx, op.userID, r.ID, op.connID, r.opts.LivenessTTL)
	}
	if err != nil {
		log.Warn("Room[%s] 在线记录写入失败 user=%s clear=%v: %v", r.ID, op.userID, op.clear, err)
	}
}
