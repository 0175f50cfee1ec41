package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"poll-service/internal/identity"
)

type contextKey string

const callerContextKey = contextKey("caller")

// Identity resolves the caller from the request credentials and stores it
// in the request context. Two credentials are accepted: trusted
// X-User-Id/X-User-Name/X-User-Email headers injected by the upstream
// identity provider, or a Bearer guest token issued by this service.
// Requests without credentials proceed anonymously; RequireIdentity gates
// the routes that need a caller.
func Identity(tokens *identity.GuestTokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		var caller *identity.Caller

		if token := extractBearer(c); token != "" {
			if verified, err := tokens.Verify(token); err == nil {
				caller = &verified
			}
		}

		if caller == nil {
			userID := c.GetHeader("X-User-Id")
			userName := c.GetHeader("X-User-Name")
			if userID != "" && userName != "" {
				caller = &identity.Caller{
					ID:    userID,
					Name:  userName,
					Email: c.GetHeader("X-User-Email"),
				}
			}
		}

		if caller != nil {
			ctx := context.WithValue(c.Request.Context(), callerContextKey, caller)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// RequireIdentity aborts with 401 when no caller was resolved.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerFromContext(c.Request.Context()) == nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing user credentials", "code": "unauthorized"})
			return
		}
		c.Next()
	}
}

// CallerFromContext retrieves the resolved caller, or nil for anonymous
// requests.
func CallerFromContext(ctx context.Context) *identity.Caller {
	caller, ok := ctx.Value(callerContextKey).(*identity.Caller)
	if !ok {
		return nil
	}
	return caller
}

// WithCaller returns a context carrying the given caller. Used by the
// WebSocket endpoint and by tests.
func WithCaller(ctx context.Context, caller *identity.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

func extractBearer(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.EqualFold(bearerToken[:7], "Bearer ") {
		return bearerToken[7:]
	}
	return ""
}
