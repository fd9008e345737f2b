package conn

import (
	"context"
	"testing"
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/jwts"
	"github.com/MarcinPlaza1/tbs-game-sub000/core/infrastructure/cache"
	"github.com/MarcinPlaza1/tbs-game-sub000/runtime/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtVerifier(t *testing.T) {
	verifier := NewJwtVerifier("secret", nil)
	token, err := jwts.GetToken(jwts.NewClaims("u-1", "", time.Hour), "secret")
	require.NoError(t, err)

	identity, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.UserID)
	assert.Equal(t, "u-1", identity.DisplayName, "没有展示名时用 userID")

	_, err = verifier.Verify(context.Background(), "")
	assert.ErrorIs(t, err, dto.ErrAuthenticationRequired)

	expired, err := jwts.GetToken(jwts.NewClaims("u-1", "a", -time.Minute), "secret")
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, dto.ErrAuthenticationRequired)
}

func TestJwtVerifier_UsesCache(t *testing.T) {
	identityCache, err := cache.NewIdentityCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(identityCache.Close)

	token, err := jwts.GetToken(jwts.NewClaims("u-1", "Alice", time.Hour), "secret")
	require.NoError(t, err)
	_, err = NewJwtVerifier("secret", identityCache).Verify(context.Background(), token)
	require.NoError(t, err)

	// 换了密钥也能命中缓存
	identity, err := NewJwtVerifier("rotated", identityCache).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Alice", identity.DisplayName)
}

func TestParseWSPath(t *testing.T) {
	cases := []struct {
		path, match, user string
	}{
		{"/ws/m-1", "m-1", ""},
		{"/ws/m-1/", "m-1", ""},
		{"/ws/m-1/test=alice", "m-1", "alice"},
		{"/ws/", "", ""},
		{"/api/rooms", "", ""},
	}
	for _, c := range cases {
		match, user := parseWSPath(c.path)
		assert.Equal(t, c.match, match, c.path)
		assert.Equal(t, c.user, user, c.path)
	}
}
