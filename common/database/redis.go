package database

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"

	"github.com/redis/go-redis/v9"
)

// RedisManager 单机和集群二选一
type RedisManager struct {
	Cli        *redis.Client
	ClusterCli *redis.ClusterClient
}

func NewRedis(redisConf config.RedisConf) (*RedisManager, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var addr string
	if redisConf.Addr != "" {
		addr = redisConf.Addr
	} else if redisConf.Host != "" && redisConf.Port > 0 {
		addr = fmt.Sprintf("%s:%d", redisConf.Host, redisConf.Port)
	} else if len(redisConf.ClusterAddrs) == 0 {
		return nil, fmt.Errorf("redis 配置出错: 缺少 addr")
	}

	m := &RedisManager{}
	if len(redisConf.ClusterAddrs) == 0 {
		m.Cli = redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     redisConf.Password, // 没有密码时为空字符串
			PoolSize:     redisConf.PoolSize,
			MinIdleConns: redisConf.MinIdleConns,
		})
	} else {
		m.ClusterCli = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        redisConf.ClusterAddrs,
			Password:     redisConf.Password,
			PoolSize:     redisConf.PoolSize,
			MinIdleConns: redisConf.MinIdleConns,
		})
	}

	cli, _ := m.GetClient()
	if err := cli.Ping(ctx).Err(); err != nil {
		log.Error("redis 连接错误: %v", err)
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func (r *RedisManager) GetClient() (redis.Cmdable, error) {
	if r.Cli != nil {
		return r.Cli, nil
	}
	if r.ClusterCli != nil {
		return r.ClusterCli, nil
	}
	return nil, fmt.Errorf("redis 客户端未初始化")
}

func (r *RedisManager) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.Set(ctx, key, value, expiration).Err()
}

func (r *RedisManager) Get(ctx context.Context, key string) (string, error) {
	cli, err := r.GetClient()
	if err != nil {
		return "", err
	}
	return cli.Get(ctx, key).Result()
}

func (r *RedisManager) Del(ctx context.Context, keys ...string) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.Del(ctx, keys...).Err()
}

// HSetWithTTL 写 hash 并刷新整个 key 的过期时间
func (r *RedisManager) HSetWithTTL(ctx context.Context, key string, ttl time.Duration, values map[string]any) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	_, err = cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, values)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

func (r *RedisManager) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cli, err := r.GetClient()
	if err != nil {
		return nil, err
	}
	return cli.HGetAll(ctx, key).Result()
}

func (r *RedisManager) Ping(ctx context.Context) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.Ping(ctx).Err()
}

func (r *RedisManager) Close() error {
	if r.Cli != nil {
		if err := r.Cli.Close(); err != nil {
			log.Error("redis 关闭出错: %v", err)
			return err
		}
	}
	if r.ClusterCli != nil {
		if err := r.ClusterCli.Close(); err != nil {
			log.Error("redisCluster 关闭出错: %v", err)
			return err
		}
	}
	return nil
}
