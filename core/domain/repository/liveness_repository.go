package repository

import (
	"context"
	"time"
)

// LivenessRepository 记录 (用户, 对局) 的在线连接
type LivenessRepository interface {
	RecordLiveness(ctx context.Context, userID, matchID, connID string, ttl time.Duration) error
	ClearLiveness(ctx context.Context, userID, matchID string) error
}
