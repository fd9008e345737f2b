package container

import (
	"errors"
	"fmt"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/database"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
)

// BaseContainer 基础容器，按配置打开数据库连接
// driver 决定快照存储（mongo / postgres），配置了 redis 地址时打开 redis 存在线记录
type BaseContainer struct {
	driver   string
	mongo    *database.MongoManager
	postgres *database.PostgresManager
	redis    *database.RedisManager
}

func redisConfigured(conf config.RedisConf) bool {
	return conf.Addr != "" || conf.Host != "" || len(conf.ClusterAddrs) > 0
}

// NewBase 打开配置需要的连接，任一失败时关闭已打开的连接
func NewBase(conf config.DatabaseConf) (*BaseContainer, error) {
	c := &BaseContainer{driver: conf.Driver}
	var err error

	switch conf.Driver {
	case "mongo":
		c.mongo, err = database.NewMongo(conf.MongoConf)
	case "postgres":
		c.postgres, err = database.NewPostgres(conf.PostgresConf)
	case "memory":
	default:
		err = fmt.Errorf("unknown database driver: %q", conf.Driver)
	}
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%s 初始化失败: %w", conf.Driver, err)
	}

	if redisConfigured(conf.RedisConf) {
		if c.redis, err = database.NewRedis(conf.RedisConf); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("redis 初始化失败: %w", err)
		}
	}

	log.Info("数据库服务启动成功 driver=%s, redis=%v", conf.Driver, c.redis != nil)
	return c, nil
}

func (c *BaseContainer) Driver() string {
	return c.driver
}

func (c *BaseContainer) GetMongo() *database.MongoManager {
	return c.mongo
}

func (c *BaseContainer) GetPostgres() *database.PostgresManager {
	return c.postgres
}

// GetRedis 未配置时为 nil
func (c *BaseContainer) GetRedis() *database.RedisManager {
	return c.redis
}

// Close 关闭所有资源
func (c *BaseContainer) Close() error {
	var errs []error
	if c.mongo != nil {
		if err := c.mongo.Close(); err != nil {
			log.Error("mongo 关闭失败: %v", err)
			errs = append(errs, err)
		}
	}
	if c.postgres != nil {
		if err := c.postgres.Close(); err != nil {
			log.Error("postgres 关闭失败: %v", err)
			errs = append(errs, err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Error("redis 关闭失败: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
