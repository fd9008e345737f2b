package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"
)

type Liveness struct {
	ConnID    string
	ExpiresAt time.Time
}

type LivenessRepository struct {
	mu      sync.RWMutex
	records map[string]Liveness
}

func NewLivenessRepository() *LivenessRepository {
	return &LivenessRepository{records: make(map[string]Liveness)}
}

var _ repository.LivenessRepository = (*LivenessRepository)(nil)

func livenessKey(userID, matchID string) string {
	return matchID + ":" + userID
}

func (r *LivenessRepository) RecordLiveness(_ context.Context, userID, matchID, connID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[livenessKey(userID, matchID)] = Liveness{ConnID: connID, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

func (r *LivenessRepository) ClearLiveness(_ context.Context, userID, matchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, livenessKey(userID, matchID))
	return nil
}

// Get 过期记录视为不存在
func (r *LivenessRepository) Get(userID, matchID string) (Liveness, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[livenessKey(userID, matchID)]
	if !ok || time.Now().After(rec.ExpiresAt) {
		return Liveness{}, false
	}
	return rec, true
}
