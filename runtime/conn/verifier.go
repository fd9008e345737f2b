package conn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/jwts"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/cache"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"
)

// Verifier 把客户端凭证换成身份，失败时返回 dto.ErrAuthenticationRequired
type Verifier interface {
	Verify(ctx context.Context, credential string) (cache.Identity, error)
}

// JwtVerifier HS256 token 验签，验过的 token 放进本地缓存
type JwtVerifier struct {
	secret string
	cache  *cache.IdentityCache // 可以为 nil
}

func NewJwtVerifier(secret string, identityCache *cache.IdentityCache) *JwtVerifier {
	return &JwtVerifier{secret: secret, cache: identityCache}
}

func (v *JwtVerifier) Verify(_ context.Context, credential string) (cache.Identity, error) {
	if credential == "" {
		return cache.Identity{}, fmt.Errorf("%w: 缺少 barrier token", dto.ErrAuthenticationRequired)
	}
	if v.cache != nil {
		if identity, ok := v.cache.Get(credential); ok {
			return identity, nil
		}
	}
	if v.secret == "" {
		return cache.Identity{}, fmt.Errorf("%w: 未配置 jwt secret", dto.ErrAuthenticationRequired)
	}

	claims, err := jwts.ParseToken(credential, v.secret)
	if err != nil {
		return cache.Identity{}, errors.Join(dto.ErrAuthenticationRequired, err)
	}
	identity := cache.Identity{UserID: claims.UserID, DisplayName: claims.Username}
	if identity.DisplayName == "" {
		identity.DisplayName = identity.UserID
	}

	if v.cache != nil {
		ttl := time.Duration(0)
		if claims.ExpiresAt != nil {
			ttl = time.Until(claims.ExpiresAt.Time)
		}
		// 没有过期时间的 token 用缓存默认 TTL
		if claims.ExpiresAt == nil || ttl > 0 {
			v.cache.Set(credential, identity, ttl)
		}
	}
	return identity, nil
}
