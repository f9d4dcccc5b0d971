package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/internal/metrics"
	"github.com/layer-3/payroll-auth/service"
)

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			abortWithError(c, core.ErrInvalidAccessToken)
			return
		}

		claims, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextWallet, claims.Wallet)

		c.Next()
	}
}

// MetricsMiddleware records request latency by route template
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
