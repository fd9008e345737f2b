package conn

import (
	"context"
	"errors"
	"hash/fnv"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"
	"github.com/MarcinPlaza1/tbs-game-sub000/common/utils"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/cache"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/game/share"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

/*
长连接入口职责：
 1. 鉴权：升级前验证 barrier token（或测试白名单路径），失败不升级
 2. 限流：按 IP 限制建连速率，按连接限制消息速率
 3. 入座：连接交给房间，房间决定新座位、重连还是拒绝
 4. 连接生命周期：读写协程、心跳、慢连接断开
*/

// RoomLocator 按 matchID 找到本节点上的房间
type RoomLocator interface {
	GetRoom(matchID string) (*game.Room, bool)
}

type ClientBucket struct {
	sync.RWMutex
	clients map[string]*LongConnection
}

func NewClientBucket() *ClientBucket {
	return &ClientBucket{
		clients: make(map[string]*LongConnection),
	}
}

type WorkerOption func(worker *Worker)

func WithVerifier(verifier Verifier) WorkerOption {
	return func(w *Worker) { w.verifier = verifier }
}

// WithConnectLimiter 按客户端 IP 限制建连
func WithConnectLimiter(limiter utils.Limiter) WorkerOption {
	return func(w *Worker) { w.connectLimiter = limiter }
}

// WithMessageLimiter 按连接限制消息速率
func WithMessageLimiter(limiter *utils.KeyedLimiter) WorkerOption {
	return func(w *Worker) { w.messageLimiter = limiter }
}

func WithAllowTestPath(allow bool) WorkerOption {
	return func(w *Worker) { w.allowTestPath = allow }
}

func WithMaxConnections(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxConnectionCount = n
		}
	}
}

func WithWriteBufferSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.writeBufferSize = n
		}
	}
}

func WithJoinTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.joinTimeout = d
		}
	}
}

type Worker struct {
	rooms            RoomLocator
	verifier         Verifier
	connectLimiter   utils.Limiter
	messageLimiter   *utils.KeyedLimiter
	websocketUpgrade *websocket.Upgrader
	allowTestPath    bool

	clientBuckets      []*ClientBucket
	bucketMask         uint32
	maxConnectionCount int
	writeBufferSize    int
	joinTimeout        time.Duration

	stats struct {
		currentConnections int32
		accepted           int64
		rejected           int64
	}
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewWorker(rooms RoomLocator, opts ...WorkerOption) *Worker {
	bucketCount := 32
	w := &Worker{
		rooms:              rooms,
		bucketMask:         uint32(bucketCount - 1),
		maxConnectionCount: 100000,
		writeBufferSize:    256,
		joinTimeout:        5 * time.Second,
		stopCh:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.clientBuckets = make([]*ClientBucket, bucketCount)
	for i := range bucketCount {
		w.clientBuckets[i] = NewClientBucket()
	}
	w.websocketUpgrade = &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		EnableCompression: true,
	}

	go w.monitorPerformance()
	return w
}

// ServeHTTP 处理 /ws/{matchId}?barrier=&codec= 和 /ws/{matchId}/test={userID}
func (w *Worker) ServeHTTP(writer http.ResponseWriter, r *http.Request) {
	matchID, testUserID := parseWSPath(r.URL.Path)
	if matchID == "" {
		http.Error(writer, "match id required", http.StatusNotFound)
		return
	}

	ip := clientIP(r)
	if w.connectLimiter != nil && !w.connectLimiter.Allow(ip) {
		atomic.AddInt64(&w.stats.rejected, 1)
		http.Error(writer, dto.Code(dto.ErrRateLimited), http.StatusTooManyRequests)
		log.Warn("连接速率限流 ip=%s", ip)
		return
	}
	if atomic.LoadInt32(&w.stats.currentConnections) >= int32(w.maxConnectionCount) {
		http.Error(writer, "server is at capacity", http.StatusServiceUnavailable)
		log.Warn("连接达到阈值 %s", r.RemoteAddr)
		return
	}

	identity, authMethod, err := w.identifyUser(r, testUserID)
	if err != nil {
		atomic.AddInt64(&w.stats.rejected, 1)
		http.Error(writer, dto.Code(dto.ErrAuthenticationRequired), http.StatusUnauthorized)
		log.Warn("连接鉴权失败 remote=%s err=%v", r.RemoteAddr, err)
		return
	}

	room, ok := w.rooms.GetRoom(matchID)
	if !ok || room.Closed() {
		http.Error(writer, dto.Code(dto.ErrRoomNotFound), http.StatusNotFound)
		return
	}

	codec := share.CodecByName(r.URL.Query().Get("codec"))
	writer.Header().Add("Server", "tbs-room")
	ws, err := w.websocketUpgrade.Upgrade(writer, r, nil)
	if err != nil {
		log.Warn("websocket 升级失败, err:%v", err)
		return
	}

	client := newLongConnection(uuid.NewString(), ws, codec, room, w)
	client.UserID = identity.UserID

	ctx, cancel := context.WithTimeout(r.Context(), w.joinTimeout)
	defer cancel()
	user := share.NewUserInfo(identity.UserID, identity.DisplayName, client.ConnID)
	if err := room.Join(ctx, user, client); err != nil {
		atomic.AddInt64(&w.stats.rejected, 1)
		log.Info("房间 %s 拒绝用户 %s: %v", matchID, identity.UserID, err)
		client.reject(err)
		return
	}

	w.addClient(client)
	client.Run()
	atomic.AddInt64(&w.stats.accepted, 1)
	log.Info("WebSocket 建立连接: userID=%s, method=%s, connID=%s, match=%s, codec=%s, remote=%s",
		identity.UserID, authMethod, client.ConnID, matchID, codec.Name(), r.RemoteAddr)
}

// identifyUser 测试白名单只在配置允许时生效
func (w *Worker) identifyUser(r *http.Request, testUserID string) (cache.Identity, string, error) {
	if testUserID != "" {
		if !w.allowTestPath {
			return cache.Identity{}, "", errors.New("测试路径未开启")
		}
		return cache.Identity{UserID: testUserID, DisplayName: testUserID}, "test-path", nil
	}
	if w.verifier == nil {
		return cache.Identity{}, "", dto.ErrAuthenticationRequired
	}

	token := r.URL.Query().Get("barrier")
	identity, err := w.verifier.Verify(r.Context(), token)
	if err != nil {
		return cache.Identity{}, "", err
	}
	return identity, "token", nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (w *Worker) addClient(client *LongConnection) {
	bucket := w.getBucket(client.ConnID)
	bucket.Lock()
	bucket.clients[client.ConnID] = client
	bucket.Unlock()
	atomic.AddInt32(&w.stats.currentConnections, 1)
}

func (w *Worker) removeClient(con *LongConnection) {
	bucket := w.getBucket(con.ConnID)
	removed := false

	bucket.Lock()
	if _, ok := bucket.clients[con.ConnID]; ok {
		delete(bucket.clients, con.ConnID)
		removed = true
	}
	bucket.Unlock()

	con.Close()
	if removed {
		atomic.AddInt32(&w.stats.currentConnections, -1)
	}
}

func (w *Worker) getBucket(connID string) *ClientBucket {
	hash := fnv32(connID)
	index := hash & w.bucketMask
	return w.clientBuckets[index]
}

func fnv32(key string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return h.Sum32()
}

// ConnectionCount 当前在线连接数
func (w *Worker) ConnectionCount() int {
	return int(atomic.LoadInt32(&w.stats.currentConnections))
}

func (w *Worker) monitorPerformance() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Debug("性能监控: connections=%d, accepted=%d, rejected=%d",
				atomic.LoadInt32(&w.stats.currentConnections),
				atomic.LoadInt64(&w.stats.accepted),
				atomic.LoadInt64(&w.stats.rejected))
		case <-w.stopCh:
			return
		}
	}
}

// Close 关闭所有连接，房间会收到断线事件
func (w *Worker) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		for _, bucket := range w.clientBuckets {
			bucket.RLock()
			clients := make([]*LongConnection, 0, len(bucket.clients))
			for _, client := range bucket.clients {
				clients = append(clients, client)
			}
			bucket.RUnlock()
			for _, client := range clients {
				client.Close()
			}
		}
		if w.messageLimiter != nil {
			w.messageLimiter.Stop()
		}
		if stopper, ok := w.connectLimiter.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	})
}
