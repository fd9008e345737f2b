package realtime

import (
	"context"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/database"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"
)

const livenessKey = "match:liveness" // match:liveness:<matchID>:<userID>

// RedisLivenessRepository (用户, 对局) -> 当前连接，hash 带过期时间
type RedisLivenessRepository struct {
	redis  *database.RedisManager
	nodeID string
}

func NewRedisLivenessRepository(redis *database.RedisManager, nodeID string) repository.LivenessRepository {
	return &RedisLivenessRepository{
		redis:  redis,
		nodeID: nodeID,
	}
}

func (r *RedisLivenessRepository) key(userID, matchID string) string {
	return livenessKey + ":" + matchID + ":" + userID
}

func (r *RedisLivenessRepository) RecordLiveness(ctx context.Context, userID, matchID, connID string, ttl time.Duration) error {
	return r.redis.HSetWithTTL(ctx, r.key(userID, matchID), ttl, map[string]any{
		"conn_id":    connID,
		"node_id":    r.nodeID,
		"updated_at": time.Now().UnixMilli(),
	})
}

func (r *RedisLivenessRepository) ClearLiveness(ctx context.Context, userID, matchID string) error {
	return r.redis.Del(ctx, r.key(userID, matchID))
}
