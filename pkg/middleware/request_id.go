package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/requestid"
)

const RequestIDKey = "request_id"

// RequestID reuses the caller's X-Request-ID or mints one, echoes it back
// and makes it available through both the gin and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestid.Header)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(RequestIDKey, id)
		c.Header(requestid.Header, id)
		c.Request = c.Request.WithContext(requestid.NewContext(c.Request.Context(), id))

		c.Next()
	}
}
