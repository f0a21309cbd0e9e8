package interfaces

import (
	"context"
	"errors"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/trackimpact/support-api/internal/config"
	"github.com/trackimpact/support-api/internal/domain/ratelimit"
	"github.com/trackimpact/support-api/internal/infrastructure/database"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver/handlers"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver/middlewares"
	v1 "github.com/trackimpact/support-api/internal/interfaces/httpserver/routes/v1"
)

var InterfacesProvider = wire.NewSet(
	handlers.NewConversationHandler,
	handlers.NewProvider,
	ProvideRouteLimits,
	v1.NewRoutes,
	ProvideReadinessChecks,
	httpserver.NewHTTPServer,
)

// ProvideRouteLimits applies the role chat quota to message routes and the escalation quota to escalate.
func ProvideRouteLimits(cfg *config.Config, limiter ratelimit.Limiter, log zerolog.Logger) v1.Limits {
	return v1.Limits{
		Chat:       middlewares.RateLimitMiddleware(limiter, middlewares.ChatWindow, log),
		Escalation: middlewares.RateLimitMiddleware(limiter, middlewares.FixedWindow("escalation", cfg.EscalationMax, cfg.EscalationTTL), log),
	}
}

// ProvideReadinessChecks probes the backing stores that are configured.
func ProvideReadinessChecks(db *gorm.DB, client redis.UniversalClient) []httpserver.ReadinessCheck {
	var checks []httpserver.ReadinessCheck
	if db != nil {
		checks = append(checks, func(context.Context) error {
			return database.Ping(db)
		})
	}
	if client != nil {
		checks = append(checks, func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return errors.New("redis unreachable")
			}
			return nil
		})
	}
	return checks
}
