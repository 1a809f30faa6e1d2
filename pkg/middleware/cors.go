package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/requestid"
)

// CORS allows the browser frontend at origin to call the API with
// credentials.
func CORS(origin string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestid.Header},
		ExposeHeaders:    []string{requestid.Header},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
