package http

import (
	"time"

	"github.com/MarcinPlaza1/tbs-game-sub000/common/log"

	"github.com/google/uuid"
)

// LoggerMiddleware 请求完成后记录耗时和状态码
func LoggerMiddleware() MiddlewareFunc {
	return func(c *Context) error {
		start := time.Now()
		c.ginCtx.Next()
		log.Info("HTTP %s %s -> %d (%v) from %s", c.Method(), c.Path(), c.Status(), time.Since(start), c.ClientIP())
		return nil
	}
}

// RequestIDMiddleware 透传或生成 X-Request-ID
func RequestIDMiddleware() MiddlewareFunc {
	return func(c *Context) error {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.SetHeader("X-Request-ID", requestID)
		return nil
	}
}
