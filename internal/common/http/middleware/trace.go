package middleware

import (
	"context"
	"strings"

	"statebox/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TraceIDHeader   = "X-Trace-Id"
	RequestIDHeader = "X-Request-Id"
)

// TraceContextMiddleware ensures trace and request ids are in the request
// context, the gin context and the response headers. Incoming ids are kept.
func TraceContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx = propagate(c, ctx, TraceIDHeader, contextkey.TraceID)
		ctx = propagate(c, ctx, RequestIDHeader, contextkey.RequestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func propagate(c *gin.Context, ctx context.Context, header string, key contextkey.Key) context.Context {
	id := strings.TrimSpace(c.GetHeader(header))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(string(key), id)
	c.Writer.Header().Set(header, id)
	return context.WithValue(ctx, key, id)
}
