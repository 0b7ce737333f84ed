package server

import (
	"net/http"
	"strings"
	"time"

	"docchat/internal/helper"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-Id"

// requestID propagates an incoming request id or generates one, and stores
// a logger carrying it in the request context for log.Ctx.
func requestID(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if id == "" {
		id = helper.GenerateUUID()
	}
	c.Header(requestIDHeader, id)

	logger := log.With().Str("request_id", id).Logger()
	c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
	c.Next()
}

func requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()

	ev := log.Ctx(c.Request.Context()).Info()
	if c.Writer.Status() >= http.StatusInternalServerError {
		ev = log.Ctx(c.Request.Context()).Error()
	}
	ev.Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("http_request")
}

// allowCORS accepts every origin, the API has no credentials to protect.
func allowCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, X-Request-Id")
	c.Header("Access-Control-Expose-Headers", "X-Session-Id, X-Request-Id, X-Skipped-Files")
	c.Header("Access-Control-Max-Age", "86400")

	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}
