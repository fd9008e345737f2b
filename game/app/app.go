package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/http"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/container"
	"github.com/MarcinPlaza1/tbs-game-sub000/game/interfaces/api"
	provider "github.com/MarcinPlaza1/tbs-game-sub000/game/interfaces/grpc"

	"github.com/spf13/viper"
)

// Run 组装容器 -> 恢复对局 -> 启动 http / websocket / grpc -> 等待信号
func Run(ctx context.Context, v *viper.Viper) error {
	conf := &config.Conf
	roomContainer, err := container.NewRoomContainer(conf)
	if err != nil {
		return fmt.Errorf("room 容器初始化失败: %w", err)
	}

	config.Watch(v, func(level string) {
		log.SetLevel(level)
		log.Info("日志级别调整为 %s", level)
	})

	if err := roomContainer.GameWorker.Start(ctx, conf.EtcdConf, conf.RestoreOnBoot); err != nil {
		_ = roomContainer.Close(context.Background())
		return fmt.Errorf("worker 启动失败: %w", err)
	}

	httpServer := http.NewHttpServer(http.WithAddr(conf.ServerConf.HttpAddr), http.WithMode(conf.ServerConf.Mode))
	handler := api.NewRoomHandler(roomContainer.RoomManager(), roomContainer.GameWorker.Monitor, roomContainer.ConnWorker.ConnectionCount)
	api.RegisterRoutes(httpServer, handler, roomContainer.ConnWorker)

	errCh := make(chan error, 2)
	go func() {
		log.Info("http 监听地址 %s", conf.ServerConf.HttpAddr)
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http 服务异常: %w", err)
		}
	}()

	health := provider.NewHealthProvider()
	if conf.ServerConf.GrpcAddr != "" {
		lis, err := net.Listen("tcp", conf.ServerConf.GrpcAddr)
		if err != nil {
			_ = httpServer.Shutdown(context.Background())
			_ = roomContainer.Close(context.Background())
			return fmt.Errorf("gRPC 监听失败: %w", err)
		}
		go func() {
			if err := health.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC 服务异常: %w", err)
			}
		}()
	}

	stop := func() {
		log.Info("正在关闭 room 服务...")
		health.SetNotServing()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done := make(chan struct{})
		go func() {
			// 先停止接收新连接，再写最终检查点
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("关闭 http 服务失败: %v", err)
			}
			if err := roomContainer.Close(shutdownCtx); err != nil {
				log.Warn("关闭 room 容器失败: %v", err)
			}
			health.Shutdown()
			close(done)
		}()

		select {
		case <-done:
			log.Info("room 服务已关闭")
		case <-shutdownCtx.Done():
			log.Warn("关闭 room 服务超时（5秒）")
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case err := <-errCh:
			stop()
			return err
		case s := <-c:
			switch s {
			case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT:
				stop()
				log.Info("中断信号，服务停止")
				return nil
			case syscall.SIGHUP:
				stop()
				log.Info("挂起信号，服务停止")
				return nil
			default:
				return nil
			}
		}
	}
}
