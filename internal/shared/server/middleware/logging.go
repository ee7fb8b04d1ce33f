package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"intellidoc-backend/internal/shared/telemetry"
)

// Keys set by document handlers so request logs carry the document and the
// LLM operation, if any.
const (
	DocumentIDKey   = "documentId"
	LLMOperationKey = "llmOperation"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if documentID := c.GetString(DocumentIDKey); documentID != "" {
			fields["document_id"] = documentID
		}
		if op := c.GetString(LLMOperationKey); op != "" {
			fields["llm_operation"] = op
		}
		telemetry.Info("request.complete", fields)
	}
}
