package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
id: room-1
serverType: room
database:
  driver: mongo
  mongo:
    url: mongodb://localhost:27017
    db: tbs
room:
  graceSeconds: 45
  maxPlayers: 6
`)

	_, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "room-1", Conf.ID)
	assert.Equal(t, "mongo", Conf.Driver)
	assert.Equal(t, "tbs", Conf.MongoConf.Db)
	assert.Equal(t, 45, Conf.GraceSeconds)
	assert.Equal(t, 6, Conf.MaxPlayers)
	// 文件里没写的字段保持默认值
	assert.Equal(t, 20, Conf.MapWidth)
	assert.Equal(t, 500, Conf.SettleDelayMillis)
}

func TestLoad_NodeIDFromEnv(t *testing.T) {
	path := writeConfig(t, "serverType: room\n")
	t.Setenv("NODE_ID", "room-env")

	_, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "room-env", Conf.ID)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "id: room-1\ndatabase:\n  driver: sqlite\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.GraceSeconds)
	assert.Equal(t, "30s", cfg.GraceWindow().String())
}

func TestLoad_SampleResource(t *testing.T) {
	_, err := Load(filepath.Join("..", "..", "game", "resource", "application.yml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", Conf.Driver)
	assert.Equal(t, "tbs.match", Conf.SubjectPrefix)
	assert.True(t, Conf.RestoreOnBoot)
}
