package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_BuildKey(t *testing.T) {
	s := Server{Domain: "room", Version: "v1", NodeID: "room-1"}
	assert.Equal(t, "/room/v1/room-1", s.buildKey())

	s.Version = ""
	assert.Equal(t, "/room/room-1", s.buildKey())
}

func TestParseValue(t *testing.T) {
	s, err := ParseValue([]byte(`{"domain":"room","nodeID":"n1","load":12.5,"rooms":3}`))
	require.NoError(t, err)
	assert.Equal(t, "n1", s.NodeID)
	assert.Equal(t, 12.5, s.Load)
	assert.Equal(t, 3, s.Rooms)

	_, err = ParseValue([]byte("not json"))
	assert.Error(t, err)
}

func TestRegistry_UpdateLoadBeforeRegister(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.UpdateLoad(1, 1, 1))
	// 未注册时 Close 不应 panic
	r.Close()
}
