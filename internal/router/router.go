package router

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lucifer1017/yieldforge/internal/app"
	"github.com/lucifer1017/yieldforge/internal/config"
	"github.com/lucifer1017/yieldforge/internal/handlers"
	"github.com/lucifer1017/yieldforge/internal/metrics"
	"github.com/lucifer1017/yieldforge/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware applies the configured origin allowlist. An empty
// configuration allows everything, matching local development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowedOrigins := []string{"*"}
		allowCredentials := false
		maxAge := 3600
		if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		}

		origin := c.GetHeader("Origin")
		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range allowedOrigins {
				if strings.TrimSpace(allowed) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// metricsMiddleware records request latency per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(started).Seconds())
	}
}

// SetupRouter wires every HTTP route against the service container.
func SetupRouter(container *app.ServiceContainer, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware())

	authMW := middleware.NewAuthMiddleware(logger)
	adminMW := middleware.NewAdminAuthMiddleware(logger)

	var allowedIPs []string
	if config.AppConfig != nil {
		allowedIPs = config.AppConfig.Admin.AllowedIPs
	}
	ipAllowlist := middleware.NewIPAllowlist(logger, allowedIPs)

	// ============ Health & Metrics ============
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", handlers.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ Public API ============
	api := r.Group("/api/v1")
	{
		api.GET("/status", handlers.StatusHandler)
		api.GET("/auth/nonce", container.AuthHandler.GenerateNonceHandler)
		api.POST("/auth/login", container.AuthHandler.AuthenticateHandler)

		api.GET("/vault/stats", container.VaultHandler.StatsHandler)
		api.GET("/oracle/price/:symbol", container.OracleHandler.PriceHandler)
		api.GET("/oracle/apy/:symbol", container.OracleHandler.APYHandler)
		api.GET("/oracle/snapshots/:symbol", container.OracleHandler.SnapshotsHandler)
	}

	// ============ Authenticated API ============
	user := api.Group("")
	user.Use(authMW.RequireAuth())
	{
		user.POST("/vault/deposit", container.VaultHandler.DepositHandler)
		user.POST("/vault/withdraw", container.VaultHandler.WithdrawHandler)
		user.POST("/vault/redeem", container.VaultHandler.RedeemHandler)
		user.GET("/vault/position", container.VaultHandler.PositionHandler)

		user.POST("/intents", container.IntentHandler.SubmitIntentHandler)
		user.GET("/intents", container.IntentHandler.ListIntentsHandler)
		user.POST("/intents/:index/deactivate", container.IntentHandler.DeactivateIntentHandler)
		user.GET("/intents/executions", container.IntentHandler.ExecutionsHandler)

		user.POST("/bridge/initiate", container.BridgeHandler.InitiateBridgeHandler)
		user.GET("/bridge/operations/:key", container.BridgeHandler.OperationHandler)
		user.GET("/bridge/history", container.BridgeHandler.HistoryHandler)
		user.GET("/bridge/records", container.BridgeHandler.RecordsHandler)
	}

	// ============ WebSocket ============
	r.GET("/ws", container.WebSocketHandler.HandleWebSocket)

	// ============ Admin API ============
	admin := r.Group("/admin")
	admin.Use(ipAllowlist.Restrict())
	{
		admin.POST("/login", container.AdminAuthHandler.AdminLoginHandler)
		admin.POST("/totp/generate", container.AdminAuthHandler.GenerateTOTPSecretHandler)

		protected := admin.Group("")
		protected.Use(adminMW.RequireAdminAuth())
		{
			protected.GET("/status", container.AdminHandler.SystemStatusHandler)
			protected.POST("/roles/grant", container.AdminHandler.GrantRoleHandler)
			protected.POST("/roles/revoke", container.AdminHandler.RevokeRoleHandler)
			protected.POST("/vault/pause", container.AdminHandler.PauseVaultHandler)
			protected.POST("/vault/unpause", container.AdminHandler.UnpauseVaultHandler)
			protected.POST("/vault/limits", container.AdminHandler.SetDepositLimitsHandler)
			protected.POST("/intents/pause", container.AdminHandler.PauseIntentsHandler)
			protected.POST("/intents/unpause", container.AdminHandler.UnpauseIntentsHandler)
			protected.POST("/bridge/fee", container.AdminHandler.SetBridgeFeeHandler)
			protected.POST("/bridge/tokens", container.AdminHandler.SetSupportedTokenHandler)
			protected.POST("/bridge/chains", container.AdminHandler.SetSupportedChainHandler)
			protected.POST("/oracle/feeds", container.AdminHandler.RegisterFeedHandler)
			protected.POST("/oracle/apy", container.AdminHandler.UpdateAPYHandler)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"message": "Endpoint not found",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}
