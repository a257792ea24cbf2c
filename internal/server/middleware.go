package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketValuation/internal/trace"
)

// requestTrace 每个请求一个 trace ID，结束时记录耗时。
func requestTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := trace.NewTraceID()
		ctx := trace.WithTraceID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-Id", id)
		start := time.Now()

		c.Next()

		trace.Log(ctx, "server: %s %s status=%d cost=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// cors 前端页面跨域读取。
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Expose-Headers", HeaderDataSource)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
