package delivery

import (
	"context"
	"strconv"
	"time"

	authdelivery "investor-portal/internal/auth/delivery"
	"investor-portal/internal/ratelimit/usecase"
	"investor-portal/pkg/apperror"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis_rate/v10"
)

// PrincipalLimit admits at most max requests per window for the signed-in
// principal. Must run after AuthMiddleware.
func PrincipalLimit(limiter *usecase.Limiter, max int, window time.Duration, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := authdelivery.PrincipalFromContext(c)
		if principal == nil {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}

		d := limiter.Check(c.Request.Context(), principal.UID, max, window)
		if !d.Allowed {
			apperror.Respond(c, &apperror.RateLimitError{
				Limit:     max,
				Remaining: 0,
				ResetAt:   d.ResetAt,
				Message:   message,
			})
			return
		}
		apperror.SetRateLimitHeaders(c, max, d.Remaining, d.ResetAt.UnixMilli())
		c.Next()
	}
}

// IPThrottle is a coarse per-client limit for unauthenticated endpoints,
// backed by Redis. A nil limiter disables it; Redis errors let requests pass.
func IPThrottle(limiter *redis_rate.Limiter, perMinute int, logger kitlog.Logger) gin.HandlerFunc {
	if limiter == nil || perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	logger = kitlog.With(logger, "component", "ip_throttle")

	return func(c *gin.Context) {
		fingerprint := c.ClientIP() + c.GetHeader("User-Agent") + c.FullPath()
		key := "throttle:" + strconv.FormatUint(xxhash.Sum64String(fingerprint), 10)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		res, err := limiter.Allow(ctx, key, redis_rate.PerMinute(perMinute))
		if err != nil {
			level.Warn(logger).Log("msg", "throttle check failed, allowing request", "err", err)
			c.Next()
			return
		}

		resetAt := time.Now().Add(res.ResetAfter)
		if res.Allowed <= 0 {
			apperror.Respond(c, &apperror.RateLimitError{
				Limit:     res.Limit.Rate,
				Remaining: 0,
				ResetAt:   time.Now().Add(res.RetryAfter),
			})
			return
		}
		apperror.SetRateLimitHeaders(c, res.Limit.Rate, res.Remaining, resetAt.UnixMilli())
		c.Next()
	}
}
