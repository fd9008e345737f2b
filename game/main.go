package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/metrics"
	"github.com/MarcinPlaza1/tbs-game-sub000/game/app"

	"github.com/spf13/cobra"
)

// 加载配置 -> 启动监控 -> 恢复对局 -> 启动 http / websocket / grpc 服务

var (
	configFile string
	logLevel   string
	identifier string
)

var rootCmd = &cobra.Command{
	Use:   "room",
	Short: "room 对战房间服务",
	Long:  `room 回合制策略对战房间服务：房间权威、状态同步、断线恢复`,
	Run: func(cmd *cobra.Command, args []string) {
		if identifier != "" {
			// NODE_ID 优先于文件里的 id
			_ = os.Setenv("NODE_ID", identifier)
		}
		v, err := config.Load(configFile)
		if err != nil {
			log.Fatal("文件配置发生错误：%v", err)
		}
		if logLevel != "" {
			config.Conf.Level = logLevel
		}
		log.InitLog(config.Conf.ID, config.Conf.Level)
		log.Info("配置文件: %s, 节点: %s, 存储: %s", configFile, config.Conf.ID, config.Conf.Driver)

		if config.Conf.MetricPort > 0 {
			go func() {
				log.Info("启动监控..., URL: http://localhost:%d/debug/statsviz/", config.Conf.MetricPort)
				if err := metrics.Serve(fmt.Sprintf("0.0.0.0:%d", config.Conf.MetricPort)); err != nil {
					log.Error("监控服务异常: %v", err)
				}
			}()
		}

		if err := app.Run(context.Background(), v); err != nil {
			log.Error("发生异常: %v", err)
			os.Exit(-1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "resource", "", "配置文件路径")
	rootCmd.Flags().StringVar(&logLevel, "logLevel", "", "日志级别，覆盖配置文件")
	rootCmd.Flags().StringVar(&identifier, "identifier", "", "节点 ID，覆盖配置文件")
	_ = rootCmd.MarkFlagRequired("resource")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("error happen: %v", err)
		os.Exit(1)
	}
}
