package cache

import (
	"fmt"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/cache"
)

// Identity 验证通过的 token 对应的身份
type Identity struct {
	UserID      string
	DisplayName string
}

// IdentityCache token -> Identity，重连风暴时避免反复验签
type IdentityCache struct {
	cache *cache.GeneralCache
	ttl   time.Duration
}

func NewIdentityCache(ttl time.Duration) (*IdentityCache, error) {
	generalCache, err := cache.NewGeneralCache(int64(1<<16), ttl)
	if err != nil {
		return nil, fmt.Errorf("创建身份缓存失败: %w", err)
	}
	return &IdentityCache{cache: generalCache, ttl: ttl}, nil
}

func (c *IdentityCache) key(token string) string {
	return "identity:" + token
}

// Set ttl 不超过 token 剩余有效期
func (c *IdentityCache) Set(token string, identity Identity, ttl time.Duration) bool {
	if token == "" || identity.UserID == "" {
		return false
	}
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	return c.cache.SetWithTTL(c.key(token), identity, ttl)
}

func (c *IdentityCache) Get(token string) (Identity, bool) {
	return cache.GetAs[Identity](c.cache, c.key(token))
}

func (c *IdentityCache) Delete(token string) {
	c.cache.Delete(c.key(token))
}

func (c *IdentityCache) Close() {
	c.cache.Close()
}
