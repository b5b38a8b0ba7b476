package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	allowlistDelivery "investor-portal/internal/allowlist/delivery"
	authUsecase "investor-portal/internal/auth/usecase"
	ratelimitUsecase "investor-portal/internal/ratelimit/usecase"
	seedDelivery "investor-portal/internal/seed/delivery"
	updateDelivery "investor-portal/internal/update/delivery"
	userDelivery "investor-portal/internal/user/delivery"
	"investor-portal/pkg/config"
	"investor-portal/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type Handler struct {
	authUsecase      authUsecase.AuthUsecase
	allowlistHandler *allowlistDelivery.AllowlistHandler
	userHandler      *userDelivery.UserHandler
	updateHandler    *updateDelivery.UpdateHandler
	seedHandler      *seedDelivery.SeedHandler
	limiter          *ratelimitUsecase.Limiter
	throttle         *redis_rate.Limiter
	metrics          *metrics.Metrics
	config           *config.Config
	logger           kitlog.Logger
}

// Deps are the wired components the HTTP layer routes to. Throttle and
// Metrics may be nil.
type Deps struct {
	Auth      authUsecase.AuthUsecase
	Allowlist *allowlistDelivery.AllowlistHandler
	Users     *userDelivery.UserHandler
	Updates   *updateDelivery.UpdateHandler
	Seed      *seedDelivery.SeedHandler
	Limiter   *ratelimitUsecase.Limiter
	Throttle  *redis_rate.Limiter
	Metrics   *metrics.Metrics
}

func NewHandler(deps Deps, cfg *config.Config, logger kitlog.Logger) *Handler {
	return &Handler{
		authUsecase:      deps.Auth,
		allowlistHandler: deps.Allowlist,
		userHandler:      deps.Users,
		updateHandler:    deps.Updates,
		seedHandler:      deps.Seed,
		limiter:          deps.Limiter,
		throttle:         deps.Throttle,
		metrics:          deps.Metrics,
		config:           cfg,
		logger:           kitlog.With(logger, "component", "http"),
	}
}

// Engine builds the gin router with middleware and every route mounted.
func (h *Handler) Engine() *gin.Engine {
	if h.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), h.requestLogger())
	if h.metrics != nil {
		r.Use(h.metrics.Middleware())
	}
	r.Use(cors.New(h.corsConfig()))

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	SetupRoutes(r, h)
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (h *Handler) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(h.logger).Log("msg", "server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	level.Info(h.logger).Log("msg", "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Seed-Secret", requestIDHeader},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(h.config.CORSAllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.config.CORSAllowedOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Next()

		status := c.Writer.Status()
		logFn := level.Debug(h.logger)
		if status >= http.StatusInternalServerError {
			logFn = level.Warn(h.logger)
		}
		logFn.Log(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", requestID,
		)
	}
}
