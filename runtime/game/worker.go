package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/discovery"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
)

/*
	1.管理本节点所有房间，空房间通过销毁队列异步删除
	2.配置了 etcd 时注册节点，Monitor 定期上报负载
	3.启动时恢复未结束的对局
*/

type Worker struct {
	RoomManager *RoomManager
	Monitor     *Monitor
	Registry    *discovery.Registry // 未配置 etcd 时为 nil
	NodeID      string

	destroyRoomCh  chan string
	destroyMu      sync.Mutex
	destroyClosed  bool
	destroyDone    chan struct{}
	destroyTimeout time.Duration
}

func NewWorker(nodeID string, roomManager *RoomManager) *Worker {
	worker := &Worker{
		RoomManager:    roomManager,
		NodeID:         nodeID,
		destroyRoomCh:  make(chan string, 128),
		destroyDone:    make(chan struct{}),
		destroyTimeout: 10 * time.Second,
	}
	roomManager.SetOnEmpty(worker.RequestDestroyRoom)
	worker.Monitor = NewMonitor(roomManager, nil, 5*time.Second)

	go worker.destroyRoomLoop()
	return worker
}

func (w *Worker) destroyRoomLoop() {
	defer close(w.destroyDone)
	for roomID := range w.destroyRoomCh {
		if roomID == "" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), w.destroyTimeout)
		err := w.RoomManager.DeleteRoom(ctx, roomID)
		cancel()
		if err != nil {
			log.Warn("Worker destroyRoomLoop 删除房间失败: %v", err)
		}
	}
}

// RequestDestroyRoom 房间请求销毁自身，异步处理
func (w *Worker) RequestDestroyRoom(roomID string) {
	if roomID == "" {
		return
	}

	w.destroyMu.Lock()
	defer w.destroyMu.Unlock()
	if w.destroyClosed {
		return
	}
	select {
	case w.destroyRoomCh <- roomID:
	default:
		log.Warn("Worker RequestDestroyRoom 队列已满, roomID=%s", roomID)
	}
}

// Start 恢复对局；配置了 etcd 地址时注册节点并上报负载
func (w *Worker) Start(ctx context.Context, etcdConf config.EtcdConf, restore bool) error {
	if restore {
		count, err := w.RoomManager.RestoreAll(ctx)
		if err != nil {
			log.Error("Worker[%s] 恢复对局失败: %v", w.NodeID, err)
		} else {
			log.Info("Worker[%s] 恢复对局 %d 个", w.NodeID, count)
		}
	}

	if len(etcdConf.Addrs) > 0 {
		w.Registry = discovery.NewRegistry()
		if err := w.Registry.Register(etcdConf, w.NodeID); err != nil {
			return fmt.Errorf("注册到 etcd 失败: %v", err)
		}
		w.Monitor.reporter = w.Registry
		log.Info("Worker[%s] 注册到 etcd 成功", w.NodeID)
	}

	go w.Monitor.Start(ctx)
	log.Info("Worker[%s] 启动成功", w.NodeID)
	return nil
}

// Close 停止销毁队列，给所有房间写最终检查点
func (w *Worker) Close(ctx context.Context) {
	w.destroyMu.Lock()
	if !w.destroyClosed {
		close(w.destroyRoomCh)
		w.destroyClosed = true
	}
	w.destroyMu.Unlock()
	<-w.destroyDone

	w.Monitor.Stop()
	w.RoomManager.CloseAll(ctx)
	if w.Registry != nil {
		w.Registry.Close()
	}
	log.Info("Worker[%s] 已关闭", w.NodeID)
}
