package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fitdesk/internal/mail"
	"fitdesk/internal/models"
	"fitdesk/internal/queue"
	"fitdesk/internal/repository/memory"
)

type fakeMailer struct {
	sent []*mail.Email
	err  error
}

func (m *fakeMailer) SendMail(_ context.Context, e *mail.Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

var _ mail.Mailer = (*fakeMailer)(nil)

func TestProcessor_SendEmail(t *testing.T) {
	mailer := &fakeMailer{}
	p := NewProcessor(zerolog.Nop(), mailer, "FitDesk <no-reply@fitdesk.app>", memory.New().Stores())

	err := p.Process(context.Background(), queue.Task{
		Type:     queue.TaskSendEmail,
		Template: queue.TemplatePasswordReset,
		To:       "a@example.com",
		Link:     "http://localhost:3000/reset-password?token=abc",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	got := mailer.sent[0]
	if got.To[0] != "a@example.com" || got.From != "FitDesk <no-reply@fitdesk.app>" {
		t.Errorf("unexpected envelope: %+v", got)
	}
	if !strings.Contains(got.Body, "token=abc") {
		t.Errorf("body missing link: %q", got.Body)
	}
}

func TestProcessor_SendEmailFailureIsReturned(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	p := NewProcessor(zerolog.Nop(), mailer, "x@y.z", memory.New().Stores())

	err := p.Process(context.Background(), queue.Task{Type: queue.TaskSendEmail, Template: queue.TemplateEmailVerification, To: "a@example.com"})
	if err == nil {
		t.Fatal("expected error so the message stays pending")
	}
}

func TestProcessor_Cleanup(t *testing.T) {
	store := memory.New()
	stores := store.Stores()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = stores.RefreshTokens.Create(ctx, models.RefreshToken{ID: "r1", TokenHash: []byte("old"), UserID: "u1", ExpiresAt: now.Add(-time.Hour)})
	_ = stores.RefreshTokens.Create(ctx, models.RefreshToken{ID: "r2", TokenHash: []byte("new"), UserID: "u1", ExpiresAt: now.Add(time.Hour)})
	_ = stores.Verifications.Create(ctx, models.Verification{ID: "v1", Identifier: "u1", ValueHash: []byte("v"), Purpose: models.PurposePasswordReset, ExpiresAt: now.Add(-time.Minute)})

	p := NewProcessor(zerolog.Nop(), &fakeMailer{}, "x@y.z", stores)
	p.now = func() time.Time { return now }

	if err := p.Process(ctx, queue.Task{Type: queue.TaskCleanup}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if n := store.CountRefreshTokens("u1"); n != 1 {
		t.Errorf("refresh tokens left = %d, want 1", n)
	}
	if n := store.CountVerifications("u1", models.PurposePasswordReset); n != 0 {
		t.Errorf("verifications left = %d, want 0", n)
	}
}

func TestProcessor_UnknownTaskIsIgnored(t *testing.T) {
	p := NewProcessor(zerolog.Nop(), &fakeMailer{}, "", memory.New().Stores())
	if err := p.Process(context.Background(), queue.Task{Type: "thumbnail"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
