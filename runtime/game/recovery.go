package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/entity"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/engines/tactics"
)

// RecoveryManager 对局快照的读写入口
type RecoveryManager struct {
	repo    repository.MatchSnapshotRepository
	timeout time.Duration
}

func NewRecoveryManager(repo repository.MatchSnapshotRepository, timeout time.Duration) *RecoveryManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RecoveryManager{repo: repo, timeout: timeout}
}

// Restore 读取并重建对局，restored 为 false 时调用方新建对局
// 快照损坏不是致命错误：删掉坏记录，记日志，按新对局处理
func (rm *RecoveryManager) Restore(ctx context.Context, matchID string) (match *tactics.Match, version int64, restored bool) {
	ctx, cancel := context.WithTimeout(ctx, rm.timeout)
	defer cancel()

	snap, err := rm.repo.Load(ctx, matchID)
	switch {
	case err == nil:
		match, err = tactics.FromSnapshot(snap)
		if err == nil {
			log.Info("Room[%s] 从快照恢复, status=%s, turn=%d, version=%d", matchID, match.Status, match.TurnNumber, snap.Version)
			return match, snap.Version, true
		}
	case errors.Is(err, repository.ErrSnapshotNotFound):
		return nil, 0, false
	case errors.Is(err, repository.ErrSnapshotCorrupt):
		err = errors.Join(dto.ErrDeserializationFailure, err)
	default:
		log.Error("Room[%s] 读取快照失败，按新对局处理: %v", matchID, err)
		return nil, 0, false
	}

	log.Warn("Room[%s] 快照不可用，按新对局处理: %v", matchID, err)
	if delErr := rm.repo.Delete(ctx, matchID); delErr != nil {
		log.Warn("Room[%s] 删除损坏快照失败: %v", matchID, delErr)
	}
	return nil, 0, false
}

func (rm *RecoveryManager) ListUnfinished(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, rm.timeout)
	defer cancel()
	return rm.repo.ListUnfinished(ctx)
}

// Discard 空房间销毁时删除快照，避免重启后恢复出空对局
func (rm *RecoveryManager) Discard(ctx context.Context, matchID string) error {
	ctx, cancel := context.WithTimeout(ctx, rm.timeout)
	defer cancel()
	return rm.repo.Delete(ctx, matchID)
}

// NewCheckpointer 每个房间一个，version 从已恢复的快照版本继续
func (rm *RecoveryManager) NewCheckpointer(matchID string, version int64) *Checkpointer {
	return &Checkpointer{
		matchID: matchID,
		repo:    rm.repo,
		timeout: rm.timeout,
		version: version,
	}
}

// Checkpointer 异步写快照，同一房间的写入串行
// 写入期间来的新快照只保留最新一份，旧版本不会覆盖新版本
type Checkpointer struct {
	matchID string
	repo    repository.MatchSnapshotRepository
	timeout time.Duration

	mu      sync.Mutex
	version int64
	pending *entity.MatchSnapshot
	writing bool
	wg      sync.WaitGroup

	failed atomic.Bool // 最近一次写入失败，等下次检查点重试
}

// Checkpoint 不阻塞调用方
func (c *Checkpointer) Checkpoint(snap *entity.MatchSnapshot) {
	c.mu.Lock()
	c.version++
	snap.Version = c.version
	snap.UpdatedAt = time.Now()
	c.pending = snap
	if c.writing {
		c.mu.Unlock()
		return
	}
	c.writing = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.flushLoop()
}

func (c *Checkpointer) flushLoop() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		snap := c.pending
		c.pending = nil
		if snap == nil {
			c.writing = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.save(snap)
	}
}

func (c *Checkpointer) save(snap *entity.MatchSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	err := c.repo.Save(ctx, snap)
	switch {
	case err == nil:
		c.failed.Store(false)
	case errors.Is(err, repository.ErrStaleSnapshot):
		log.Debug("Room[%s] 跳过过期快照 version=%d", c.matchID, snap.Version)
	default:
		c.failed.Store(true)
		log.Error("Room[%s] %v: version=%d: %v", c.matchID, dto.ErrPersistenceFailure, snap.Version, err)
	}
}

// NeedsRetry 上一次写入失败
func (c *Checkpointer) NeedsRetry() bool {
	return c.failed.Load()
}

func (c *Checkpointer) Version() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Flush 等待正在进行的写入完成
func (c *Checkpointer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
