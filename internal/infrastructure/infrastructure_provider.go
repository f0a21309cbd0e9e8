package infrastructure

import (
	"context"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/trackimpact/support-api/internal/config"
	"github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/domain/escalation"
	"github.com/trackimpact/support-api/internal/domain/ratelimit"
	"github.com/trackimpact/support-api/internal/domain/router"
	"github.com/trackimpact/support-api/internal/infrastructure/auth"
	"github.com/trackimpact/support-api/internal/infrastructure/cache"
	"github.com/trackimpact/support-api/internal/infrastructure/completion"
	"github.com/trackimpact/support-api/internal/infrastructure/database"
	"github.com/trackimpact/support-api/internal/infrastructure/enterprisecontext"
	"github.com/trackimpact/support-api/internal/infrastructure/knowledgebase"
	"github.com/trackimpact/support-api/internal/infrastructure/logger"
	"github.com/trackimpact/support-api/internal/infrastructure/notifier"
	convrepo "github.com/trackimpact/support-api/internal/infrastructure/repository/conversation"
	"github.com/trackimpact/support-api/internal/infrastructure/ticket"
	"github.com/trackimpact/support-api/pkg/telemetry"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideLogger builds the service logger and installs it as the global zerolog logger.
func ProvideLogger(cfg *config.Config) (zerolog.Logger, error) {
	l, err := logger.New(cfg)
	if err != nil {
		return zerolog.Logger{}, err
	}
	log.Logger = l
	return l, nil
}

// ProvideDatabase connects to Postgres and applies migrations. The memory driver has no database.
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, func(), error) {
	if cfg.StorageDriver == "memory" {
		log.Warn().Msg("memory storage driver selected, conversations are lost on restart")
		return nil, func() {}, nil
	}

	level := gormlogger.Warn
	if cfg.LogLevel == "debug" || cfg.LogLevel == "trace" {
		level = gormlogger.Info
	}

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        level,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	log.Info().Msg("running database migrations")
	if err := database.AutoMigrate(context.Background(), db, cfg.Environment, log); err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Info().Msg("database migrations completed")
	return db, cleanup, nil
}

// ProvideRedis connects when REDIS_URL is set. Without it, rate limits and locks stay in process.
func ProvideRedis(cfg *config.Config, log zerolog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(context.Background(), cfg.RedisURL, log)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideConversationRepository(db *gorm.DB) conversation.Repository {
	if db == nil {
		return convrepo.NewInMemoryRepository()
	}
	return convrepo.NewPostgresRepository(db)
}

func ProvideTicketStore(db *gorm.DB) ticket.Store {
	if db == nil {
		return ticket.NewInMemoryStore()
	}
	return ticket.NewPostgresStore(db)
}

// ProvideTicketForwarder returns nil when no helpdesk webhook is configured.
func ProvideTicketForwarder(cfg *config.Config, log zerolog.Logger) ticket.Forwarder {
	if cfg.TicketWebhookURL == "" {
		return nil
	}
	return ticket.NewWebhookForwarder(cfg.TicketWebhookURL, cfg.TicketWebhookTimeout, log)
}

func ProvideTicketSystem(store ticket.Store, forwarder ticket.Forwarder, log zerolog.Logger) escalation.TicketSystem {
	return ticket.NewSystem(store, forwarder, log)
}

// ProvideEnterpriseSource reads enterprise_profiles, or a single demo profile with the memory driver.
func ProvideEnterpriseSource(db *gorm.DB) enterprisecontext.Source {
	if db == nil {
		lastReport := time.Now().UTC().AddDate(0, -1, 0)
		return enterprisecontext.NewStaticSource(enterprisecontext.Profile{
			ID:               "ent_demo",
			Name:             "Atelier Démo SAS",
			Sector:           "Industrie",
			Size:             "PME",
			ComplianceScore:  72,
			PendingDocuments: 3,
			KPICount:         12,
			LastReportAt:     &lastReport,
		})
	}
	return enterprisecontext.NewGormSource(db)
}

func ProvideContextProvider(cfg *config.Config, source enterprisecontext.Source, log zerolog.Logger) (router.ContextProvider, error) {
	return enterprisecontext.NewProvider(source, cfg.ContextCacheSize, cfg.ContextCacheTTL, log)
}

// ProvideKnowledgeBase loads KNOWLEDGE_BASE_PATH, or the embedded entries when it is empty.
func ProvideKnowledgeBase(cfg *config.Config, log zerolog.Logger) (*knowledgebase.KnowledgeBase, error) {
	return knowledgebase.Load(cfg.KnowledgeBasePath, log)
}

func ProvideCompletionService(cfg *config.Config, log zerolog.Logger) router.CompletionService {
	return completion.NewClient(completion.Config{
		BaseURL: cfg.CompletionBaseURL,
		APIKey:  cfg.CompletionAPIKey,
		Model:   cfg.CompletionModel,
		Timeout: cfg.CompletionTimeout,
	}, log)
}

// ProvideRateLimitStore shares counters through Redis when configured. The memory store gets a
// janitor that drops idle keys until cleanup runs.
func ProvideRateLimitStore(cfg *config.Config, client redis.UniversalClient) (ratelimit.Store, func()) {
	if cfg.RateLimitStore == "redis" && client != nil {
		return cache.NewRedisStore(client), func() {}
	}

	store := ratelimit.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	maxAge := cfg.EscalationTTL
	if maxAge < time.Hour {
		maxAge = time.Hour
	}
	go store.RunJanitor(ctx, time.Minute, maxAge)
	return store, cancel
}

// ProvideLocker serialises escalations across replicas when Redis is available.
func ProvideLocker(cfg *config.Config, client redis.UniversalClient) escalation.Locker {
	if client == nil {
		return escalation.NewLocalLocker()
	}
	return cache.NewRedisLocker(client, cfg.LockExpiry)
}

func ProvideSanitizer(cfg *config.Config) *telemetry.Sanitizer {
	return telemetry.NewSanitizer(telemetry.ParsePIILevel(cfg.PIILevel), cfg.PIISalt)
}

// ProvideNotifier always logs escalations and fans out to Telegram and email when configured.
func ProvideNotifier(cfg *config.Config, sanitizer *telemetry.Sanitizer, log zerolog.Logger) (escalation.Notifier, error) {
	channels := []escalation.Notifier{notifier.NewLogNotifier(log, sanitizer)}

	if cfg.TelegramEnabled() {
		b, err := notifier.NewTelegramBot(cfg.TelegramBotToken)
		if err != nil {
			return nil, err
		}
		channels = append(channels, notifier.NewTelegramNotifier(b, cfg.TelegramAdminChatIDs, sanitizer, log))
	}

	if cfg.EmailEnabled() {
		channels = append(channels, notifier.NewEmailNotifier(notifier.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, cfg.SupportEmails, sanitizer, log))
	}

	log.Info().
		Bool("telegram", cfg.TelegramEnabled()).
		Bool("email", cfg.EmailEnabled()).
		Msg("escalation notifiers configured")
	return notifier.NewMulti(channels...), nil
}

// ProvideAuthValidator returns nil when AUTH_ENABLED is false; requests then carry gateway headers.
func ProvideAuthValidator(cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	if !cfg.AuthEnabled {
		log.Warn().Msg("JWT validation disabled, trusting gateway identity headers")
		return nil, nil
	}
	return auth.NewValidator(context.Background(), cfg.AuthJWKSURL, auth.Options{
		Issuer:    cfg.AuthIssuer,
		Audience:  cfg.AuthAudience,
		RoleClaim: cfg.RoleClaim,
	}, log)
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,
	ProvideLogger,

	// Storage
	ProvideDatabase,
	ProvideRedis,
	ProvideConversationRepository,
	ProvideTicketStore,

	// Tickets and notifications
	ProvideTicketForwarder,
	ProvideTicketSystem,
	ProvideSanitizer,
	ProvideNotifier,

	// Reply sources
	ProvideKnowledgeBase,
	wire.Bind(new(router.KnowledgeBase), new(*knowledgebase.KnowledgeBase)),
	ProvideEnterpriseSource,
	ProvideContextProvider,
	ProvideCompletionService,

	// Rate limits and locks
	ProvideRateLimitStore,
	ProvideLocker,

	// Auth
	ProvideAuthValidator,
)
