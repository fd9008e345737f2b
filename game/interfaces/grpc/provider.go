package grpc

import (
	"net"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName 健康检查里的服务名
const ServiceName = "tbs.room"

// HealthProvider 对战节点的 gRPC 健康检查，负载均衡器据此摘除正在关闭的节点
type HealthProvider struct {
	server *grpc.Server
	health *health.Server
}

func NewHealthProvider() *HealthProvider {
	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthProvider{server: server, health: healthServer}
}

// Serve 阻塞直到 Stop
func (p *HealthProvider) Serve(lis net.Listener) error {
	log.Info("gRPC 健康检查监听 %s", lis.Addr())
	return p.server.Serve(lis)
}

// Shutdown 先标记 NOT_SERVING，再等待进行中的调用结束
func (p *HealthProvider) Shutdown() {
	p.health.Shutdown()
	p.server.GracefulStop()
}

// SetNotServing 关闭流程开始时调用
func (p *HealthProvider) SetNotServing() {
	p.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	p.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
}
