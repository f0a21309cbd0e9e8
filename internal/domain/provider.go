package domain

import (
	"github.com/google/wire"

	"github.com/trackimpact/support-api/internal/config"
	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/internal/domain/ratelimit"
	"github.com/trackimpact/support-api/internal/domain/router"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	// Conversations
	conversation.NewService,

	// Replies
	ProvideRouterConfig,
	router.NewService,

	// Escalations
	escalation.NewGate,

	// Quotas
	ratelimit.NewLimiter,
)

func ProvideRouterConfig(cfg *config.Config) router.Config {
	return router.Config{
		MaxMessageLength:  cfg.MaxMessageLength,
		CompletionTimeout: cfg.CompletionTimeout,
		HistoryWindow:     cfg.HistoryWindow,
	}
}
