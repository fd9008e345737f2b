package utils

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter 注入给连接层的限流接口，按 key 区分（IP、连接 ID）
type Limiter interface {
	Allow(key string) bool
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter 每个 key 一个令牌桶，由持有者负责生命周期，不使用包级全局表
type KeyedLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	limiters map[string]*keyedEntry
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter perSecond: 每秒补充的令牌数; burst: 桶容量; idle: 多久没访问就回收
func NewKeyedLimiter(perSecond float64, burst int, idle time.Duration) *KeyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     idle,
		limiters: make(map[string]*keyedEntry),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	now := l.now()
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

// Forget 连接关闭时主动释放
func (l *KeyedLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

// Sweep 回收空闲的桶，返回回收数量
func (l *KeyedLimiter) Sweep() int {
	if l.idle <= 0 {
		return 0
	}
	deadline := l.now().Add(-l.idle)
	removed := 0
	l.mu.Lock()
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(deadline) {
			delete(l.limiters, key)
			removed++
		}
	}
	l.mu.Unlock()
	return removed
}

func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RunSweeper 周期回收，Stop 后退出
func (l *KeyedLimiter) RunSweeper(interval time.Duration) {
	if l.idle <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-l.stopCh:
			return
		}
	}
}

func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}
