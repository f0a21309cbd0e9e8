package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/trackimpact/support-api/internal/config"
	"github.com/trackimpact/support-api/internal/infrastructure/knowledgebase"
	"github.com/trackimpact/support-api/internal/infrastructure/observability"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver"
)

type Application struct {
	cfg           *config.Config
	log           zerolog.Logger
	httpServer    *httpserver.HTTPServer
	knowledgeBase *knowledgebase.KnowledgeBase
}

// @title TrackImpact Support API
// @version 1.0
// @description AI support assistant for TrackImpact users: knowledge base answers, grounded completions and escalation to the support team.
// @contact.name TrackImpact Support
// @contact.email support@trackimpact.fr
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func (application *Application) Start(ctx context.Context) error {
	otelShutdown, err := observability.Setup(ctx, application.cfg, application.log)
	if err != nil {
		application.log.Error().Err(err).Msg("initialize observability")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(shutdownCtx); err != nil {
				application.log.Error().Err(err).Msg("shutdown telemetry")
			}
		}()
	}

	eg, ctx := errgroup.WithContext(ctx)
	if application.cfg.KnowledgeBaseWatch {
		eg.Go(func() error {
			return application.knowledgeBase.Watch(ctx)
		})
	}
	eg.Go(func() error {
		return application.httpServer.Run(ctx)
	})

	return eg.Wait()
}

func main() {
	application, cleanup, err := CreateApplication()
	if err != nil {
		log.Fatal().Err(err).Msg("create application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = application.Start(ctx)
	stop()
	cleanup()

	if err != nil {
		application.log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	application.log.Info().Msg("server stopped")
}
