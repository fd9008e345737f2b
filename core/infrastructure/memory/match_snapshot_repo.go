package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/entity"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"
)

type storedSnapshot struct {
	status  string
	version int64
	raw     []byte
}

// MatchSnapshotRepository 进程内快照存储，memory 驱动和单元测试使用
// 同样按 JSON 文档保存，读出的是副本
type MatchSnapshotRepository struct {
	mu    sync.RWMutex
	store map[string]storedSnapshot
	saves int
}

func NewMatchSnapshotRepository() *MatchSnapshotRepository {
	return &MatchSnapshotRepository{store: make(map[string]storedSnapshot)}
}

var _ repository.MatchSnapshotRepository = (*MatchSnapshotRepository)(nil)

func (r *MatchSnapshotRepository) Save(ctx context.Context, snap *entity.MatchSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.MatchID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.store[snap.MatchID]; ok && prev.version > snap.Version {
		return repository.ErrStaleSnapshot
	}
	r.store[snap.MatchID] = storedSnapshot{status: snap.Status, version: snap.Version, raw: raw}
	r.saves++
	return nil
}

func (r *MatchSnapshotRepository) Load(ctx context.Context, matchID string) (*entity.MatchSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	stored, ok := r.store[matchID]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	var snap entity.MatchSnapshot
	if err := json.Unmarshal(stored.raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

func (r *MatchSnapshotRepository) Delete(_ context.Context, matchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, matchID)
	return nil
}

func (r *MatchSnapshotRepository) ListUnfinished(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.store))
	for id, stored := range r.store {
		if stored.status != entity.MatchStatusFinished {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// PutRaw 直接写入原始文档，测试损坏快照用
func (r *MatchSnapshotRepository) PutRaw(matchID, status string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[matchID] = storedSnapshot{status: status, raw: raw}
}

// Saves 成功写入次数
func (r *MatchSnapshotRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}
