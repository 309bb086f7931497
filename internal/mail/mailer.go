package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/rs/zerolog"
)

type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
}

type Mailer interface {
	SendMail(ctx context.Context, e *Email) error
}

type Mailgun struct {
	domain  string
	apiKey  string
	apiBase string
	timeout time.Duration
}

func NewMailgun(domain, apiKey, apiBase string) *Mailgun {
	return &Mailgun{
		domain:  domain,
		apiKey:  apiKey,
		apiBase: apiBase,
		timeout: 10 * time.Second,
	}
}

func (m *Mailgun) SendMail(ctx context.Context, e *Email) error {
	mg := mailgun.NewMailgun(m.domain, m.apiKey)
	if m.apiBase != "" {
		mg.SetAPIBase(m.apiBase)
	}

	message := mg.NewMessage(e.From, e.Subject, e.Body, e.To...)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, _, err := mg.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}

// LogMailer writes outgoing mail to the log instead of delivering it.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendMail(_ context.Context, e *Email) error {
	m.logger.Info().
		Strs("to", e.To).
		Str("subject", e.Subject).
		Str("body", e.Body).
		Msg("mail delivery disabled, logging message")
	return nil
}
