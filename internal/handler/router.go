package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/middleware"
)

const serviceName = "marketplace-service"

// HealthCheck is one dependency probed by GET /api/health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type RouterConfig struct {
	Accounts    *AccountHandler
	Items       *ItemHandler
	Orders      *OrderHandler
	Tokens      middleware.TokenVerifier
	Logger      *zap.Logger
	FrontendURL string
	Checks      []HealthCheck
	// Info is merged into the health response.
	Info gin.H
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.FrontendURL != "" {
		router.Use(middleware.CORS(cfg.FrontendURL))
	}

	requireAuth := middleware.Authenticate(cfg.Tokens, cfg.Logger)

	api := router.Group("/api")
	{
		api.GET("/health", health(cfg))

		users := api.Group("/users")
		users.POST("/register", cfg.Accounts.Register)
		users.POST("/login", cfg.Accounts.Login)
		users.Use(requireAuth)
		{
			users.POST("/logout", cfg.Accounts.Logout)
			users.GET("", cfg.Accounts.List)
			users.GET("/:id", cfg.Accounts.Get)
			users.PUT("/:id", cfg.Accounts.Update)
			users.DELETE("/:id", cfg.Accounts.Delete)
		}

		items := api.Group("/items", requireAuth)
		{
			items.GET("", cfg.Items.Search)
			items.GET("/categories", cfg.Items.Categories)
			items.GET("/:id", cfg.Items.Get)
			items.POST("", cfg.Items.Create)
			items.PUT("/:id", cfg.Items.Update)
			items.DELETE("/:id", cfg.Items.Delete)
		}

		orders := api.Group("/orders", requireAuth)
		{
			orders.GET("", cfg.Orders.ListOrders)
			orders.POST("", cfg.Orders.CreateOrder)
			orders.GET("/:id", cfg.Orders.GetOrder)
			orders.PUT("/:id", cfg.Orders.UpdateOrder)
			orders.DELETE("/:id", cfg.Orders.DeleteOrder)
			orders.GET("/user/:userId", cfg.Orders.ListByBuyer)
			orders.GET("/seller/:userId", cfg.Orders.ListBySeller)
			orders.PATCH("/:id/items/:itemId", cfg.Orders.UpdateLineStatus)
		}
	}

	return router
}

func health(cfg RouterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"status":  "healthy",
			"service": serviceName,
		}
		for k, v := range cfg.Info {
			status[k] = v
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		code := http.StatusOK
		for _, check := range cfg.Checks {
			if err := check.Check(ctx); err != nil {
				cfg.Logger.Warn("Health check failed", zap.String("dependency", check.Name), zap.Error(err))
				status[check.Name] = "unhealthy"
				status["status"] = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			status[check.Name] = "healthy"
		}
		c.JSON(code, status)
	}
}
