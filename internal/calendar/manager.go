// Package calendar keeps a Google Calendar token pair per (user, tenant) and
// exposes the event operations the scheduling screens call.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"fitdesk/internal/google"
	"fitdesk/internal/ids"
	"fitdesk/internal/models"
	"fitdesk/internal/repository"
	"fitdesk/internal/security"
)

var ErrTokenUnavailable = errors.New("Google Calendar token not found or expired")

type TokenProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type NonceClaimer interface {
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

type RefreshObserver interface {
	CalendarRefresh(outcome string)
}

type Options struct {
	Provider   TokenProvider
	Tokens     repository.CalendarTokenStore
	States     *security.StateCodec
	Nonces     NonceClaimer
	Observer   RefreshObserver
	Endpoint   string
	CalendarID string
	Logger     zerolog.Logger
}

type Manager struct {
	provider   TokenProvider
	tokens     repository.CalendarTokenStore
	states     *security.StateCodec
	nonces     NonceClaimer
	observer   RefreshObserver
	endpoint   string
	calendarID string
	log        zerolog.Logger
	now        func() time.Time
}

func NewManager(opts Options) *Manager {
	calendarID := opts.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Manager{
		provider:   opts.Provider,
		tokens:     opts.Tokens,
		states:     opts.States,
		nonces:     opts.Nonces,
		observer:   observer,
		endpoint:   opts.Endpoint,
		calendarID: calendarID,
		log:        opts.Logger,
		now:        time.Now,
	}
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Status struct {
	Connected      bool       `json:"connected"`
	NeedsReconnect bool       `json:"needsReconnect"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	Scope          string     `json:"scope,omitempty"`
}

func (m *Manager) GetAuthURL(userID, tenantID string) (string, error) {
	state, _, err := m.states.Issue(security.PurposeCalendar, userID, tenantID)
	if err != nil {
		return "", err
	}
	return m.provider.AuthCodeURL(state), nil
}

// HandleCallback finishes the consent flow. Failures are reported in the
// result rather than as errors because the caller is a browser redirect.
func (m *Manager) HandleCallback(ctx context.Context, code, rawState string) Result {
	if code == "" || rawState == "" {
		return Result{Message: "Missing code or state"}
	}

	state, err := m.states.Decode(rawState, security.PurposeCalendar)
	if err != nil {
		m.log.Warn().Err(err).Msg("calendar callback rejected state")
		return Result{Message: "Invalid or expired state"}
	}
	if state.UserID == "" || state.UserID == security.PlaceholderUserID {
		return Result{Message: "State is not bound to a user"}
	}
	if m.nonces != nil {
		first, err := m.nonces.Claim(ctx, state.Nonce, m.states.TTL())
		if err != nil {
			m.log.Error().Err(err).Msg("calendar callback nonce claim failed")
			return Result{Message: "Failed to connect Google Calendar"}
		}
		if !first {
			return Result{Message: "State already used"}
		}
	}

	token, err := m.provider.Exchange(ctx, code)
	if err != nil {
		m.log.Error().Err(err).Str("user_id", state.UserID).Msg("calendar code exchange failed")
		return Result{Message: "Failed to connect Google Calendar"}
	}

	if err := m.Store(ctx, state.UserID, state.TenantID, token); err != nil {
		m.log.Error().Err(err).Str("user_id", state.UserID).Msg("calendar token store failed")
		return Result{Message: "Failed to connect Google Calendar"}
	}
	return Result{Success: true, Message: "Google Calendar connected successfully"}
}

// Store upserts the token pair for (userID, tenantID). An empty refresh token
// keeps the one already stored.
func (m *Manager) Store(ctx context.Context, userID, tenantID string, token *oauth2.Token) error {
	return m.tokens.Upsert(ctx, models.GoogleCalendarToken{
		ID:           ids.New(),
		UserID:       userID,
		TenantID:     tenantID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scope:        google.GrantedScope(token),
	})
}

// getValidToken returns nil when the user has to reconnect.
func (m *Manager) getValidToken(ctx context.Context, userID, tenantID string) (*oauth2.Token, error) {
	stored, err := m.tokens.Get(ctx, userID, tenantID)
	if errors.Is(err, repository.ErrCalendarTokenNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !stored.Expired(m.now()) {
		return &oauth2.Token{
			AccessToken:  stored.AccessToken,
			RefreshToken: stored.RefreshToken,
			TokenType:    "Bearer",
			Expiry:       stored.ExpiresAt,
		}, nil
	}

	if stored.RefreshToken == "" {
		m.log.Info().Str("user_id", userID).Msg("calendar token expired without refresh token")
		m.observer.CalendarRefresh("missing")
		return nil, nil
	}

	refreshed, err := m.provider.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("calendar token refresh failed")
		m.observer.CalendarRefresh("failed")
		return nil, nil
	}

	rotated := ""
	if refreshed.RefreshToken != "" && refreshed.RefreshToken != stored.RefreshToken {
		rotated = refreshed.RefreshToken
	}
	if err := m.tokens.UpdateAccessToken(ctx, userID, tenantID, refreshed.AccessToken, rotated, refreshed.Expiry); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	m.observer.CalendarRefresh("refreshed")

	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = stored.RefreshToken
	}
	return refreshed, nil
}

func (m *Manager) Status(ctx context.Context, userID, tenantID string) (Status, error) {
	stored, err := m.tokens.Get(ctx, userID, tenantID)
	if errors.Is(err, repository.ErrCalendarTokenNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}

	expiresAt := stored.ExpiresAt
	return Status{
		Connected:      true,
		NeedsReconnect: stored.Expired(m.now()) && stored.RefreshToken == "",
		ExpiresAt:      &expiresAt,
		Scope:          stored.Scope,
	}, nil
}

type nopObserver struct{}

func (nopObserver) CalendarRefresh(string) {}
