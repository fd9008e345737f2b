package api

import (
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/http"
)

// PingHandler ping 检查
func PingHandler(c *http.Context) error {
	c.Success(map[string]any{
		"message":   "pong",
		"timestamp": time.Now().Unix(),
		"service":   "room",
	})
	return nil
}
