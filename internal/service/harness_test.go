package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fitdesk/internal/models"
	"fitdesk/internal/queue"
	"fitdesk/internal/repository"
	"fitdesk/internal/repository/memory"
	"fitdesk/internal/security"
)

const testSecret = "test-secret-test-secret-test-secret-1234"

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) last(t *testing.T) queue.Task {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		t.Fatal("no task enqueued")
	}
	return q.tasks[len(q.tasks)-1]
}

// tokenFromLink pulls the token query parameter out of an emailed link.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("link %q has no token", link)
	}
	return token
}

var _ TaskQueue = (*recordingQueue)(nil)

type testEnv struct {
	store  *memory.Store
	queue  *recordingQueue
	tokens *TokenIssuer
	auth   *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithTx(t, nil)
}

func newTestEnvWithTx(t *testing.T, tx repository.Transactor) *testEnv {
	t.Helper()
	store := memory.New()
	if tx == nil {
		tx = store
	}
	q := &recordingQueue{}
	tokens := NewTokenIssuer(testSecret, 15*time.Minute, 30*24*time.Hour, store.Stores().RefreshTokens)
	auth := NewAuthService(AuthOptions{
		Stores:          store.Stores(),
		Tx:              tx,
		Tokens:          tokens,
		Queue:           q,
		PasswordPolicy:  security.DefaultPasswordPolicy(),
		VerificationTTL: time.Hour,
		FrontendURL:     "http://localhost:3000/",
		Logger:          zerolog.Nop(),
	})
	return &testEnv{store: store, queue: q, tokens: tokens, auth: auth}
}

func (e *testEnv) addUser(t *testing.T, user models.User, password string) models.User {
	t.Helper()
	if password != "" {
		hash, err := security.HashPassword(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		user.PasswordHash = hash
	}
	if user.ID == "" {
		user.ID = "user-" + user.Email
	}
	if user.Role == "" {
		user.Role = models.RoleClient
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	if err := e.store.Stores().Users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func principalFor(t *testing.T, tokens *TokenIssuer, accessToken string) security.Principal {
	t.Helper()
	claims, err := tokens.ParseAccessToken(accessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	return claims.Principal()
}

func wantCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	svcErr, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %v, want service error %s", err, code)
	}
	if svcErr.Code != code || svcErr.Status != status {
		t.Fatalf("got %d %s, want %d %s", svcErr.Status, svcErr.Code, status, code)
	}
}
