package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
)

// ContextInterceptor copies the caller from gRPC metadata into the context.
func ContextInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(WithUser(ctx, GetUser(ctx)), req)
	}
}

// GinMiddleware reads the caller from X-User-ID / X-User-Role headers.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := UserContext{
			UserID: c.GetHeader("X-User-ID"),
			Role:   Role(c.GetHeader("X-User-Role")),
		}
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), u))
		c.Next()
	}
}
