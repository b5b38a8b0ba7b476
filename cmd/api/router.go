package api

import (
	"net/http"

	"investor-portal/internal/auth/delivery"
	ratelimitDelivery "investor-portal/internal/ratelimit/delivery"

	"github.com/gin-gonic/gin"
)

const updateRateLimitMessage = "Too many update requests. Please try again later."

func SetupRoutes(r *gin.Engine, h *Handler) {
	cfg := h.config
	requireAuth := delivery.AuthMiddleware(h.authUsecase)
	requireAdmin := delivery.AdminMiddleware(h.authUsecase)
	throttle := ratelimitDelivery.IPThrottle(h.throttle, cfg.PublicRateLimitPerMinute, h.logger)

	if h.metrics != nil && cfg.MetricsUsername != "" {
		r.GET("/metrics",
			gin.BasicAuth(gin.Accounts{cfg.MetricsUsername: cfg.MetricsPassword}),
			gin.WrapH(h.metrics.Handler()),
		)
	}

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Public
		api.POST("/check-allowlist", throttle, h.allowlistHandler.CheckAllowlist)
		api.GET("/unsubscribe", throttle, h.userHandler.Unsubscribe)
		api.POST("/seed-db", throttle, h.seedHandler.Seed)

		// Signed-in users
		api.POST("/create-user", requireAuth, h.allowlistHandler.CreateUser)
		api.GET("/updates", requireAuth, h.allowlistHandler.RequireApproved(), h.updateHandler.ListUpdates)

		// Admin
		admin := api.Group("")
		admin.Use(requireAuth, requireAdmin)
		{
			admin.GET("/get-allowlist", h.allowlistHandler.GetAllowlist)
			admin.POST("/manage-allowlist", h.allowlistHandler.AddEntry)
			admin.DELETE("/manage-allowlist", h.allowlistHandler.RemoveEntry)
			admin.POST("/send-investor-update",
				ratelimitDelivery.PrincipalLimit(h.limiter, cfg.BroadcastRateLimitMax, cfg.BroadcastRateLimitWindow, updateRateLimitMessage),
				h.updateHandler.SendUpdate,
			)
		}
	}
}
