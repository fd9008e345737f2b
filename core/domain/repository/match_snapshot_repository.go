package repository

import (
	"context"

	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/entity"
)

// MatchSnapshotRepository 对局快照仓储
type MatchSnapshotRepository interface {
	// Save 按 MatchID 覆盖写；snap.Version 小于已存版本时返回 ErrStaleSnapshot
	Save(ctx context.Context, snap *entity.MatchSnapshot) error

	// Load 不存在返回 ErrSnapshotNotFound，无法解码返回 ErrSnapshotCorrupt
	Load(ctx context.Context, matchID string) (*entity.MatchSnapshot, error)

	Delete(ctx context.Context, matchID string) error

	// ListUnfinished 返回所有未结束对局的 ID，节点启动时恢复用
	ListUnfinished(ctx context.Context) ([]string, error)
}
