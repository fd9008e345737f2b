package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/utils"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/domain/repository"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/cache"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/memory"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/message"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/persistence"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/realtime"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/conn"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game"
)

// RoomContainer 对战节点容器
// 继承 BaseContainer 的数据库连接，组装房间、连接入口和外部出口
type RoomContainer struct {
	*BaseContainer
	SnapshotRepository repository.MatchSnapshotRepository
	LivenessRepository repository.LivenessRepository
	IdentityCache      *cache.IdentityCache
	Publisher          *message.NatsPublisher // 未配置 nats 时为 nil
	GameWorker         *game.Worker
	ConnWorker         *conn.Worker
	closed             bool
	mu                 sync.Mutex
}

// NewRoomContainer 按配置创建对战节点依赖
func NewRoomContainer(conf *config.RoomServerConfiguration) (*RoomContainer, error) {
	base, err := NewBase(conf.DatabaseConf)
	if err != nil {
		return nil, err
	}
	c := &RoomContainer{BaseContainer: base}

	// 步骤 1：快照存储和在线记录
	if c.SnapshotRepository, err = newSnapshotRepository(base); err != nil {
		_ = c.Close(context.Background())
		return nil, err
	}
	if base.GetRedis() != nil {
		c.LivenessRepository = realtime.NewRedisLivenessRepository(base.GetRedis(), conf.ID)
	} else {
		c.LivenessRepository = memory.NewLivenessRepository()
	}

	// 步骤 2：对局事件出口
	var publisher game.Publisher = game.NopPublisher{}
	if conf.NatsConfig.URL != "" {
		if c.Publisher, err = message.NewNatsPublisher(conf.NatsConfig.URL, conf.NatsConfig.SubjectPrefix, conf.ID); err != nil {
			_ = c.Close(context.Background())
			return nil, fmt.Errorf("nats 初始化失败: %w", err)
		}
		publisher = c.Publisher
	}

	// 步骤 3：房间
	recovery := game.NewRecoveryManager(c.SnapshotRepository, conf.RoomConf.CheckpointTimeoutDuration())
	roomManager := game.NewRoomManager(recovery, c.LivenessRepository, publisher,
		game.OptionsFromConfig(conf.RoomConf),
		game.RoomDefaults{MapWidth: conf.MapWidth, MapHeight: conf.MapHeight, MaxPlayers: conf.MaxPlayers})
	c.GameWorker = game.NewWorker(conf.ID, roomManager)

	// 步骤 4：连接入口
	if conf.JwtConf.CacheSeconds > 0 {
		if c.IdentityCache, err = cache.NewIdentityCache(time.Duration(conf.JwtConf.CacheSeconds) * time.Second); err != nil {
			_ = c.Close(context.Background())
			return nil, err
		}
	}
	c.ConnWorker = conn.NewWorker(roomManager, connOptions(conf, c.IdentityCache)...)

	log.Info("RoomContainer 初始化完成 driver=%s, nats=%v", base.Driver(), c.Publisher != nil)
	return c, nil
}

func newSnapshotRepository(base *BaseContainer) (repository.MatchSnapshotRepository, error) {
	switch base.Driver() {
	case "mongo":
		return persistence.NewMongoMatchSnapshotRepository(base.GetMongo()), nil
	case "postgres":
		repo := persistence.NewPgMatchSnapshotRepository(base.GetPostgres())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("postgres 建表失败: %w", err)
		}
		return repo, nil
	default:
		log.Warn("使用内存快照存储，重启后对局无法恢复")
		return memory.NewMatchSnapshotRepository(), nil
	}
}

func connOptions(conf *config.RoomServerConfiguration, identityCache *cache.IdentityCache) []conn.WorkerOption {
	idle := time.Duration(conf.LimiterConf.IdleEvictSecs) * time.Second
	opts := []conn.WorkerOption{
		conn.WithVerifier(conn.NewJwtVerifier(conf.JwtConf.Secret, identityCache)),
		conn.WithAllowTestPath(conf.JwtConf.AllowTestPath),
		conn.WithMaxConnections(conf.ServerConf.MaxConnections),
		conn.WithWriteBufferSize(conf.ServerConf.WriteBufferSize),
	}
	if conf.LimiterConf.ConnectRate > 0 {
		limiter := utils.NewKeyedLimiter(conf.LimiterConf.ConnectRate, conf.LimiterConf.ConnectBurst, idle)
		go limiter.RunSweeper(time.Minute)
		opts = append(opts, conn.WithConnectLimiter(limiter))
	}
	if conf.LimiterConf.MessageRate > 0 {
		limiter := utils.NewKeyedLimiter(conf.LimiterConf.MessageRate, conf.LimiterConf.MessageBurst, idle)
		go limiter.RunSweeper(time.Minute)
		opts = append(opts, conn.WithMessageLimiter(limiter))
	}
	return opts
}

// RoomManager 便于接口层直接使用
func (c *RoomContainer) RoomManager() *game.RoomManager {
	return c.GameWorker.RoomManager
}

// Close 关闭容器资源（幂等操作，可以安全地多次调用）
// 关闭顺序：1. 房间（写最终检查点）2. 连接入口 3. 事件出口 4. 数据库连接
func (c *RoomContainer) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	// 先关房间：最终检查点保留大厅座位，随后的断线事件被已关闭的房间忽略
	if c.GameWorker != nil {
		c.GameWorker.Close(ctx)
	}
	if c.ConnWorker != nil {
		c.ConnWorker.Close()
	}
	if c.Publisher != nil {
		c.Publisher.Close()
	}
	if c.IdentityCache != nil {
		c.IdentityCache.Close()
	}

	var err error
	if c.BaseContainer != nil {
		if err = c.BaseContainer.Close(); err != nil {
			log.Error("BaseContainer 关闭失败: %v", err)
		}
	}
	log.Info("RoomContainer 已关闭")
	return err
}
