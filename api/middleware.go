package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"merch_ledger/internal/sales"
)

const (
	// CallerHeader carries the authenticated caller identity, set by the fronting gateway.
	CallerHeader    = "X-Caller-Identity"
	RequestIDHeader = "X-Request-ID"

	callerKey    = "caller"
	requestIDKey = "request_id"
)

// requestID tags every request with an id, reusing the client's when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request handled",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// callerIdentity resolves the caller of a mutating request.
func callerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(CallerHeader)
		if caller == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity", "code": "unauthenticated"})
			return
		}
		c.Set(callerKey, sales.Identity(caller))
		c.Next()
	}
}

func caller(c *gin.Context) sales.Identity {
	id, _ := c.Get(callerKey)
	caller, _ := id.(sales.Identity)
	return caller
}
