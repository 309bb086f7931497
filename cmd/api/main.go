package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fitdesk/internal/cache"
	"fitdesk/internal/calendar"
	"fitdesk/internal/config"
	"fitdesk/internal/database"
	"fitdesk/internal/google"
	"fitdesk/internal/handlers"
	"fitdesk/internal/jobs"
	"fitdesk/internal/log"
	"fitdesk/internal/mail"
	"fitdesk/internal/metrics"
	"fitdesk/internal/middleware"
	"fitdesk/internal/models"
	"fitdesk/internal/queue"
	"fitdesk/internal/repository"
	"fitdesk/internal/repository/memory"
	"fitdesk/internal/security"
	"fitdesk/internal/server"
	"fitdesk/internal/service"
	"fitdesk/internal/tasks"
)

// infra is everything that differs between the postgres and memory drivers.
type infra struct {
	stores repository.Stores
	tx     repository.Transactor
	queue  service.TaskQueue
	nonces service.NonceClaimer
	checks []handlers.Check

	db    *pgxpool.Pool
	redis *redis.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	lifetimes, err := cfg.TokenLifetimes()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid token lifetimes")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	deps, err := newInfra(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to initialise storage")
	}

	tokens := service.NewTokenIssuer(cfg.Security.JWTSecret, lifetimes.AccessTTL, lifetimes.RefreshTTL, deps.stores.RefreshTokens)
	states := security.NewStateCodec(cfg.Security.JWTSecret, lifetimes.OAuthStateTTL)

	authService := service.NewAuthService(service.AuthOptions{
		Stores:          deps.stores,
		Tx:              deps.tx,
		Tokens:          tokens,
		Queue:           deps.queue,
		Metrics:         recorder,
		PasswordPolicy:  cfg.PasswordPolicy(),
		VerificationTTL: lifetimes.VerificationTTL,
		FrontendURL:     cfg.Frontend.BaseURL,
		Logger:          logger.With().Str("component", "auth").Logger(),
	})

	handlerDeps := handlers.Deps{
		Logger:      logger,
		Environment: cfg.Environment,
		FrontendURL: cfg.Frontend.BaseURL,
		Auth:        authService,
		Tokens:      tokens,
		Metrics:     metrics.Handler(registry),
		Checks:      deps.checks,
	}

	if cfg.Google.ClientID != "" {
		calendarManager := calendar.NewManager(calendar.Options{
			Provider:   google.NewProvider(googleConfig(cfg, cfg.Google.CalendarRedirectURL, google.CalendarScopes)),
			Tokens:     deps.stores.CalendarTokens,
			States:     states,
			Nonces:     deps.nonces,
			Observer:   recorder,
			Endpoint:   cfg.Google.CalendarEndpoint,
			CalendarID: cfg.Google.CalendarID,
			Logger:     logger.With().Str("component", "calendar").Logger(),
		})
		handlerDeps.Calendar = calendarManager
		handlerDeps.Google = service.NewGoogleAuthService(service.GoogleAuthOptions{
			Auth:     authService,
			Provider: google.NewProvider(googleConfig(cfg, cfg.Google.RedirectURL, google.LoginScopes)),
			States:   states,
			Nonces:   deps.nonces,
			Calendar: calendarManager,
			Logger:   logger.With().Str("component", "google").Logger(),
		})
	} else {
		logger.Warn().Msg("google.clientid not set, Google sign-in and calendar routes disabled")
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			Burst:           cfg.RateLimit.Burst,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		}, logger)
		handlerDeps.RateLimiter = limiter
	}

	httpServer := server.NewHTTPServer(cfg, logger, recorder, handlers.NewHandlerSet(handlerDeps))

	scheduler := jobs.NewScheduler(deps.queue, cfg.Jobs.CleanupSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, limiter, deps)
}

func newInfra(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (*infra, error) {
	if cfg.Database.Driver == "memory" {
		return newMemoryInfra(cfg, logger), nil
	}

	if cfg.Database.Migrate {
		if err := database.RunMigrations(cfg.Database.DSN); err != nil {
			return nil, err
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &infra{
		stores: repository.NewPostgresStores(pool),
		tx:     repository.NewPostgresTransactor(pool),
		queue:  queue.NewProducer(redisClient, cfg.Queue.Stream),
		nonces: cache.NewNonceStore(redisClient),
		checks: []handlers.Check{
			{Name: "database", Ping: pool.Ping},
			{Name: "cache", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
		db:    pool,
		redis: redisClient,
	}, nil
}

// newMemoryInfra runs everything in process: tasks are handled inline and the
// default tenant is seeded the way the first migration does.
func newMemoryInfra(cfg *config.AppConfig, logger zerolog.Logger) *infra {
	store := memory.New()
	store.AddTenant(models.Tenant{
		ID:        models.FallbackTenantID,
		Subdomain: models.DefaultTenantSubdomain,
		Name:      "Default",
	})

	processor := tasks.NewProcessor(logger, newMailer(cfg, logger), cfg.Mail.From, store.Stores())
	logger.Warn().Msg("using in-memory storage, data is lost on restart")

	return &infra{
		stores: store.Stores(),
		tx:     store,
		queue:  queue.NewInline(processor),
		nonces: cache.NewMemoryNonceStore(),
	}
}

func newMailer(cfg *config.AppConfig, logger zerolog.Logger) mail.Mailer {
	if cfg.Mail.Domain == "" || cfg.Mail.APIKey == "" {
		return mail.NewLogMailer(logger)
	}
	return mail.NewMailgun(cfg.Mail.Domain, cfg.Mail.APIKey, cfg.Mail.APIBase)
}

func googleConfig(cfg *config.AppConfig, redirectURL string, scopes []string) google.Config {
	return google.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		AuthURL:      cfg.Google.AuthURL,
		TokenURL:     cfg.Google.TokenURL,
		UserInfoURL:  cfg.Google.UserInfoURL,
	}
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, limiter *middleware.RateLimiter, deps *infra) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()
	if limiter != nil {
		limiter.Stop()
	}

	if deps.db != nil {
		deps.db.Close()
	}
	if deps.redis != nil {
		if err := deps.redis.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
