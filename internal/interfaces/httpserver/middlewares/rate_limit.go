package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/trackimpact/support-api/internal/domain/ratelimit"
	"github.com/trackimpact/support-api/internal/domain/role"
	"github.com/trackimpact/support-api/internal/infrastructure/metrics"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver/responses"
)

const rateLimitedMessage = "Trop de requêtes. Veuillez patienter avant de réessayer."

// WindowFunc picks the quota that applies to a request.
type WindowFunc func(c *gin.Context) ratelimit.Window

// ChatWindow applies the quota of the caller's role.
func ChatWindow(c *gin.Context) ratelimit.Window {
	principal, _ := PrincipalFromContext(c)
	strategy, err := role.For(c.Request.Context(), principal.Role)
	if err != nil {
		return ratelimit.Window{}
	}
	return strategy.Quota
}

// FixedWindow applies the same quota to every caller.
func FixedWindow(name string, limit int, period time.Duration) WindowFunc {
	window := ratelimit.Window{Name: name, Limit: limit, Period: period}
	return func(*gin.Context) ratelimit.Window {
		return window
	}
}

// RateLimitMiddleware rejects requests beyond the window with a 429. Callers are keyed by
// email when known, by client address otherwise.
func RateLimitMiddleware(limiter ratelimit.Limiter, windowFor WindowFunc, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		window := windowFor(c)
		principal, _ := PrincipalFromContext(c)
		key := ratelimit.IdentityKey(principal.Email, c.ClientIP())

		decision, err := limiter.Allow(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn().Err(err).Str("window", window.Name).Msg("rate limiter failed, admitting request")
			c.Next()
			return
		}

		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		}
		if !decision.Allowed {
			metrics.RateLimitRejections.WithLabelValues(window.Name).Inc()
			logger.Info().Str("window", window.Name).Int("retry_after", decision.RetryAfterSeconds()).Msg("rate limit exceeded")
			responses.HandleRateLimited(c, decision, rateLimitedMessage)
			return
		}
		c.Next()
	}
}
