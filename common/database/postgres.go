package database

import (
	"context"
	"fmt"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresManager 快照存储的 postgres 驱动
type PostgresManager struct {
	Pool *pgxpool.Pool
}

func NewPostgres(pgConf config.PostgresConf) (*PostgresManager, error) {
	if pgConf.DSN == "" {
		return nil, fmt.Errorf("postgres 配置出错: 缺少 dsn")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(pgConf.DSN)
	if err != nil {
		return nil, err
	}
	if pgConf.MaxConns > 0 {
		poolConfig.MaxConns = int32(pgConf.MaxConns)
	}
	if pgConf.MinConns > 0 {
		poolConfig.MinConns = int32(pgConf.MinConns)
	}
	if pgConf.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(pgConf.ConnMaxLifetime) * time.Second
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		log.Error("postgres Ping 错误: %v", err)
		pool.Close()
		return nil, err
	}
	return &PostgresManager{Pool: pool}, nil
}

func (p *PostgresManager) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

func (p *PostgresManager) Close() error {
	if p == nil || p.Pool == nil {
		return nil
	}
	p.Pool.Close()
	return nil
}
