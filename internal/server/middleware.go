package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tradecore/leadengine/internal/actorcontext"
	"go.uber.org/zap"
)

// Authentication happens at the edge; the engine trusts the identity
// headers the gateway injects and only translates them into the actor
// context services read.
const (
	headerRequestID = "X-Request-ID"
	headerActorType = "X-Actor-Type"
	headerActorID   = "X-Actor-ID"
)

func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		ctx := actorcontext.WithRequestID(c.Request.Context(), requestID)

		actorType := actorcontext.ActorType(strings.TrimSpace(c.GetHeader(headerActorType)))
		actorID := strings.TrimSpace(c.GetHeader(headerActorID))
		switch actorType {
		case actorcontext.ActorTypeAdmin, actorcontext.ActorTypeContractor:
			if actorID != "" {
				ctx = actorcontext.WithActor(ctx, actorType, actorID)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequestLoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", c.Writer.Header().Get(headerRequestID)))
	}
}
