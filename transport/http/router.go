package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/layer-3/payroll-auth/internal/logger"
	"github.com/layer-3/payroll-auth/internal/metrics"
	"github.com/layer-3/payroll-auth/service"
)

// SetupRouter sets up the Gin router. m and log may be nil. Forwarding headers
// are honored only when the peer is in trustedProxies; with none, the client
// IP is always the connection's remote address.
func SetupRouter(authService *service.AuthService, m *metrics.Metrics, log *zap.Logger, trustedProxies []string) (*gin.Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	if len(trustedProxies) == 0 {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), logger.GinMiddleware(log), MetricsMiddleware(m))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	handlers := NewAuthHandlers(authService)
	requireAuth := AuthMiddleware(authService)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
		auth.POST("/logout-all", requireAuth, handlers.LogoutAll)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(requireAuth)
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router, nil
}
