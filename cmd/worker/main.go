package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fitdesk/internal/cache"
	"fitdesk/internal/config"
	"fitdesk/internal/database"
	"fitdesk/internal/log"
	"fitdesk/internal/mail"
	"fitdesk/internal/queue"
	"fitdesk/internal/repository"
	"fitdesk/internal/tasks"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewProcessor(logger, newMailer(cfg, logger), cfg.Mail.From, repository.NewPostgresStores(pool))
	consumer := queue.NewConsumer(client, queue.ConsumerConfig{
		Stream:           cfg.Queue.Stream,
		Group:            cfg.Queue.Group,
		Consumer:         cfg.Queue.Consumer,
		ClaimInterval:    cfg.Queue.ClaimInterval,
		MaxDeliveries:    cfg.Queue.MaxDeliveries,
		DeadLetterStream: cfg.Queue.DeadLetterStream,
	}, logger, processor)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}

func newMailer(cfg *config.AppConfig, logger zerolog.Logger) mail.Mailer {
	if cfg.Mail.Domain == "" || cfg.Mail.APIKey == "" {
		logger.Warn().Msg("mail.domain not set, emails are logged instead of sent")
		return mail.NewLogMailer(logger)
	}
	return mail.NewMailgun(cfg.Mail.Domain, cfg.Mail.APIKey, cfg.Mail.APIBase)
}
