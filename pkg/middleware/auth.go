package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/auth"
)

const identityKey = "identity"

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// Authenticate requires a valid bearer token and stores the caller's
// identity on the context. No account lookup is made.
func Authenticate(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			logger.Warn("Authentication failed: no token provided",
				zap.String("request_id", c.GetString(RequestIDKey)))
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			logger.Warn("Token verification failed",
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.Error(err))
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok && identity != nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"message":    message,
		"request_id": c.GetString(RequestIDKey),
	})
}
