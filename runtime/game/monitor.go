package game

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// LoadReporter 负载上报目标，etcd 注册器实现
type LoadReporter interface {
	UpdateLoad(load float64, rooms, players int) error
}

// Monitor 定期采集负载；配置了上报目标时写入注册中心
type Monitor struct {
	roomManager    *RoomManager
	reporter       LoadReporter
	updateInterval time.Duration
	stopCh         chan struct{}
	latest         atomic.Pointer[LoadInfo]
}

func NewMonitor(roomManager *RoomManager, reporter LoadReporter, updateInterval time.Duration) *Monitor {
	return &Monitor{
		roomManager:    roomManager,
		reporter:       reporter,
		updateInterval: updateInterval,
		stopCh:         make(chan struct{}),
	}
}

// Start 阻塞运行，直到 ctx 取消或 Stop
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.updateInterval)
	defer ticker.Stop()

	m.reportLoad()
	for {
		select {
		case <-ctx.Done():
			log.Info("Monitor 收到停止信号，退出监控")
			return
		case <-m.stopCh:
			log.Info("Monitor 收到停止信号，退出监控")
			return
		case <-ticker.C:
			m.reportLoad()
		}
	}
}

func (m *Monitor) Stop() {
	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
}

// Latest 最近一次采集结果，没有采集过时现场采集
func (m *Monitor) Latest() LoadInfo {
	if info := m.latest.Load(); info != nil {
		return *info
	}
	return m.Collect()
}

func (m *Monitor) reportLoad() {
	info := m.Collect()
	m.latest.Store(&info)
	if m.reporter == nil {
		return
	}
	load := info.CalculateLoad()
	if err := m.reporter.UpdateLoad(load, info.GameCount, info.PlayerCount); err != nil {
		log.Error("Monitor 上报负载信息失败: %v", err)
		return
	}
	log.Debug("Monitor 上报负载: Load=%.2f, Games=%d, Players=%d, CPU=%.2f%%, Mem=%.2f%%",
		load, info.GameCount, info.PlayerCount, info.CPUUsage, info.MemUsage)
}

// Collect 采集一次负载信息
func (m *Monitor) Collect() LoadInfo {
	gameCount, playerCount, connected := m.roomManager.GetStats()
	return LoadInfo{
		GameCount:   gameCount,
		PlayerCount: playerCount,
		Connected:   connected,
		CPUUsage:    cpuUsage(),
		MemUsage:    memoryUsage(),
	}
}

// cpuUsage 距上次调用以来的整机 CPU 使用率，第一次调用返回 0
func cpuUsage() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0]
}

func memoryUsage() float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.UsedPercent
}
