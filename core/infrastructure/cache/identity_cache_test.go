package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityCache(t *testing.T) {
	c, err := NewIdentityCache(time.Minute)
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.Set("", Identity{UserID: "u1"}, 0))
	require.True(t, c.Set("tok", Identity{UserID: "u1", DisplayName: "alice"}, time.Hour))

	got, ok := c.Get("tok")
	require.True(t, ok)
	assert.Equal(t, "alice", got.DisplayName)

	c.Delete("tok")
	_, ok = c.Get("tok")
	assert.False(t, ok)
}
