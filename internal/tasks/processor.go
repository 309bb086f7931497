package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fitdesk/internal/mail"
	"fitdesk/internal/queue"
	"fitdesk/internal/repository"
)

type Processor struct {
	logger        zerolog.Logger
	mailer        mail.Mailer
	from          string
	refreshTokens repository.RefreshTokenStore
	verifications repository.VerificationStore
	now           func() time.Time
}

func NewProcessor(logger zerolog.Logger, mailer mail.Mailer, from string, stores repository.Stores) *Processor {
	return &Processor{
		logger:        logger,
		mailer:        mailer,
		from:          from,
		refreshTokens: stores.RefreshTokens,
		verifications: stores.Verifications,
		now:           time.Now,
	}
}

func (p *Processor) Process(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskSendEmail:
		return p.handleSendEmail(ctx, task)
	case queue.TaskCleanup:
		return p.handleCleanup(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleSendEmail(ctx context.Context, task queue.Task) error {
	if task.To == "" {
		return fmt.Errorf("send_email: missing recipient")
	}
	subject, body, err := mail.Render(task.Template, task.Name, task.Link)
	if err != nil {
		return err
	}

	if err := p.mailer.SendMail(ctx, &mail.Email{
		From:    p.from,
		To:      []string{task.To},
		Subject: subject,
		Body:    body,
	}); err != nil {
		return err
	}

	p.logger.Info().Str("template", task.Template).Msg("email sent")
	return nil
}

func (p *Processor) handleCleanup(ctx context.Context) error {
	now := p.now()

	tokens, err := p.refreshTokens.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("cleanup refresh tokens: %w", err)
	}
	verifications, err := p.verifications.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("cleanup verifications: %w", err)
	}

	p.logger.Info().
		Int64("refresh_tokens", tokens).
		Int64("verifications", verifications).
		Msg("expired credentials removed")
	return nil
}
