package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/config"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"

	clientv3 "go.etcd.io/etcd/client/v3"
)

/*
etcd 注册器
	1.房间节点注册到 etcd，大厅/网关据此知道有哪些对战节点以及各自负载
	2.租约到期自动下线，keepAlive 断开后重新注册
*/

// Server 节点在 etcd 中的注册信息（value 为 json）
type Server struct {
	Domain  string  `json:"domain"`
	NodeID  string  `json:"nodeID"`
	Addr    string  `json:"addr"`
	Weight  int     `json:"weight"`
	Version string  `json:"version"`
	Ttl     int     `json:"ttl"`
	Load    float64 `json:"load"`
	Rooms   int     `json:"rooms"`
	Players int     `json:"players"`
}

func (s Server) buildKey() string {
	if s.Version == "" {
		return fmt.Sprintf("/%s/%s", s.Domain, s.NodeID)
	}
	return fmt.Sprintf("/%s/%s/%s", s.Domain, s.Version, s.NodeID)
}

func ParseValue(v []byte) (Server, error) {
	var server Server
	if err := json.Unmarshal(v, &server); err != nil {
		return server, err
	}
	return server, nil
}

type Registry struct {
	etcdCli     *clientv3.Client
	leaseID     clientv3.LeaseID
	DialTimeout int
	keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse
	mu          sync.Mutex // 保护 info，Monitor 和 watch 协程都会写
	info        Server
	closeCh     chan struct{}
	closeOnce   sync.Once
}

func NewRegistry() *Registry {
	return &Registry{
		DialTimeout: 3,
	}
}

func (r *Registry) Register(conf config.EtcdConf, nodeID string) error {
	if nodeID == "" {
		return fmt.Errorf("nodeID 不能为空")
	}
	if conf.DialTimeout > 0 {
		r.DialTimeout = conf.DialTimeout
	}
	ttl := conf.Register.Ttl
	if ttl <= 0 {
		ttl = 10
	}

	r.info = Server{
		Domain:  conf.Register.Domain,
		Addr:    conf.Register.Addr,
		Weight:  conf.Register.Weight,
		Version: conf.Register.Version,
		Ttl:     ttl,
		NodeID:  nodeID,
	}

	var err error
	r.etcdCli, err = clientv3.New(clientv3.Config{
		Endpoints:   conf.Addrs,
		DialTimeout: time.Duration(r.DialTimeout) * time.Second,
	})
	if err != nil {
		return err
	}

	if err = r.doRegister(); err != nil {
		_ = r.etcdCli.Close()
		return err
	}

	r.closeCh = make(chan struct{})
	go r.watch()
	return nil
}

func (r *Registry) doRegister() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()

	lease, err := r.etcdCli.Grant(ctx, int64(r.info.Ttl))
	if err != nil {
		return err
	}
	r.leaseID = lease.ID

	if err = r.put(ctx); err != nil {
		log.Error("租约绑定失败: %v", err)
		return err
	}
	log.Info("etcd 注册信息: %s", r.info.buildKey())

	// keepAlive 需要长期运行
	r.keepAliveCh, err = r.etcdCli.KeepAlive(context.Background(), r.leaseID)
	if err != nil {
		log.Error("租约续期失败: %v", err)
		return err
	}
	return nil
}

func (r *Registry) put(ctx context.Context) error {
	r.mu.Lock()
	info := r.info
	r.mu.Unlock()

	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	_, err = r.etcdCli.Put(ctx, info.buildKey(), string(data), clientv3.WithLease(r.leaseID))
	return err
}

func (r *Registry) watch() {
	// 定时器间隔为 TTL 的一半，兜底检查
	ticker := time.NewTicker(time.Duration(r.info.Ttl) * time.Second / 2)
	defer ticker.Stop()

	for {
		select {
		case res, ok := <-r.keepAliveCh:
			if !ok || res == nil {
				log.Warn("keepAlive 连接断开，重新注册服务")
				r.keepAliveCh = nil
				if err := r.doRegister(); err != nil {
					log.Error("重新注册失败: %v", err)
				} else {
					log.Info("重新注册成功")
				}
			}
		case <-ticker.C:
			if r.keepAliveCh == nil {
				log.Warn("定时器检测到 keepAlive 连接断开，重新注册服务")
				if err := r.doRegister(); err != nil {
					log.Error("定时器重新注册失败: %v", err)
				}
			}
		case <-r.closeCh:
			r.unregister()
			log.Info("关闭租约续期")
			return
		}
	}
}

func (r *Registry) unregister() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()

	if _, err := r.etcdCli.Delete(ctx, r.info.buildKey()); err != nil {
		log.Error("注销服务失败: %v", err)
	}
	if _, err := r.etcdCli.Revoke(ctx, r.leaseID); err != nil {
		log.Error("撤销租约失败: %v", err)
	}
	if err := r.etcdCli.Close(); err != nil {
		log.Error("关闭 etcd 客户端失败: %v", err)
	}
}

// UpdateLoad 使用现有租约更新负载信息
func (r *Registry) UpdateLoad(load float64, rooms, players int) error {
	if r.etcdCli == nil {
		return fmt.Errorf("registry 未注册")
	}
	r.mu.Lock()
	r.info.Load = load
	r.info.Rooms = rooms
	r.info.Players = players
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()
	if err := r.put(ctx); err != nil {
		log.Error("更新负载信息失败: %v", err)
		return err
	}
	return nil
}

func (r *Registry) Close() {
	if r.closeCh == nil {
		return
	}
	r.closeOnce.Do(func() {
		close(r.closeCh)
	})
}
