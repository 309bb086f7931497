package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"fitdesk/internal/google"
	"fitdesk/internal/ids"
	"fitdesk/internal/models"
	"fitdesk/internal/repository"
	"fitdesk/internal/security"
)

type GoogleProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, token *oauth2.Token) (google.Profile, error)
}

type NonceClaimer interface {
	Claim(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// CalendarTokenSaver stores the token pair returned by a login consent so the
// calendar integration can use it without a second prompt.
type CalendarTokenSaver interface {
	Store(ctx context.Context, userID, tenantID string, token *oauth2.Token) error
}

type GoogleAuthOptions struct {
	Auth     *AuthService
	Provider GoogleProvider
	States   *security.StateCodec
	Nonces   NonceClaimer
	Calendar CalendarTokenSaver
	Logger   zerolog.Logger
}

// GoogleAuthService bootstraps sessions from a Google consent.
type GoogleAuthService struct {
	auth     *AuthService
	provider GoogleProvider
	states   *security.StateCodec
	nonces   NonceClaimer
	calendar CalendarTokenSaver
	log      zerolog.Logger
}

func NewGoogleAuthService(opts GoogleAuthOptions) *GoogleAuthService {
	return &GoogleAuthService{
		auth:     opts.Auth,
		provider: opts.Provider,
		states:   opts.States,
		nonces:   opts.Nonces,
		calendar: opts.Calendar,
		log:      opts.Logger,
	}
}

func (g *GoogleAuthService) AuthURL(tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", errTenantRequired
	}
	state, _, err := g.states.Issue(security.PurposeLogin, security.PlaceholderUserID, tenantID)
	if err != nil {
		return "", err
	}
	return g.provider.AuthCodeURL(state), nil
}

type GoogleCallbackInput struct {
	Code          string
	State         string
	ProviderError string
	Meta          RequestMeta
}

// Callback always answers with a frontend URL. Errors are carried in the
// error query parameter because the caller is a browser navigation.
func (g *GoogleAuthService) Callback(ctx context.Context, in GoogleCallbackInput) string {
	target, outcome := g.callback(ctx, in)
	g.auth.metrics.AuthEvent("google_callback", outcome)
	return target
}

func (g *GoogleAuthService) callback(ctx context.Context, in GoogleCallbackInput) (string, string) {
	if in.ProviderError != "" {
		return g.errorURL(CodeGoogleAccessDenied), CodeGoogleAccessDenied
	}
	if in.Code == "" || in.State == "" {
		return g.errorURL(CodeMissingCodeOrState), CodeMissingCodeOrState
	}

	state, err := g.states.Decode(in.State, security.PurposeLogin)
	if err != nil {
		g.log.Warn().Err(err).Msg("google callback rejected state")
		return g.errorURL(CodeInvalidState), CodeInvalidState
	}
	if g.nonces != nil {
		first, err := g.nonces.Claim(ctx, state.Nonce, g.states.TTL())
		if err != nil {
			g.log.Error().Err(err).Msg("google callback nonce claim failed")
			return g.errorURL(CodeGoogleAuthFailed), CodeGoogleAuthFailed
		}
		if !first {
			return g.errorURL(CodeInvalidState), CodeInvalidState
		}
	}

	token, err := g.provider.Exchange(ctx, in.Code)
	if err != nil {
		g.log.Error().Err(err).Msg("google code exchange failed")
		return g.errorURL(CodeGoogleAuthFailed), CodeGoogleAuthFailed
	}
	profile, err := g.provider.UserInfo(ctx, token)
	if err != nil {
		g.log.Error().Err(err).Msg("google profile fetch failed")
		return g.errorURL(CodeGoogleAuthFailed), CodeGoogleAuthFailed
	}

	user, err := g.lookupUser(ctx, state, profile)
	if errors.Is(err, errProfileMismatch) {
		g.log.Warn().Str("user_id", state.UserID).Msg("google profile does not match the state user")
		return g.errorURL(CodeInvalidState), CodeInvalidState
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return g.auth.frontendLink("/auth/google/complete", url.Values{
			"email":    {profile.Email},
			"name":     {profile.Name},
			"googleId": {profile.Subject},
			"tenantId": {state.TenantID},
		}), "new_user"
	}
	if err != nil {
		g.log.Error().Err(err).Msg("google callback user lookup failed")
		return g.errorURL(CodeGoogleAuthFailed), CodeGoogleAuthFailed
	}
	if !user.IsActive() {
		return g.errorURL(CodeUserInactive), CodeUserInactive
	}

	result, err := g.auth.startSession(ctx, user, in.Meta)
	if err != nil {
		g.log.Error().Err(err).Str("user_id", user.ID).Msg("google callback session failed")
		return g.errorURL(CodeGoogleAuthFailed), CodeGoogleAuthFailed
	}
	g.auth.touchLastLogin(ctx, user.ID)

	if token.RefreshToken != "" && g.calendar != nil {
		if err := g.calendar.Store(ctx, user.ID, state.TenantID, token); err != nil {
			g.log.Warn().Err(err).Str("user_id", user.ID).Msg("store calendar token from login failed")
		}
	}

	return g.auth.frontendLink("/auth/callback", url.Values{
		"accessToken":  {result.AccessToken},
		"refreshToken": {result.RefreshToken},
		"expiresIn":    {strconv.FormatInt(result.ExpiresIn, 10)},
		"redirectTo":   {result.RedirectTo},
	}), "success"
}

var errProfileMismatch = errors.New("google profile does not belong to the state user")

// lookupUser resolves the account a consent signs in to. A state bound to a
// user only signs in that user, and only with their own Google account.
func (g *GoogleAuthService) lookupUser(ctx context.Context, state security.OAuthState, profile google.Profile) (models.User, error) {
	email := normalizeEmail(profile.Email)
	if state.UserID == "" || state.UserID == security.PlaceholderUserID {
		return g.auth.stores.Users.FindByEmail(ctx, email)
	}

	user, err := g.auth.stores.Users.GetByID(ctx, state.UserID)
	if err != nil {
		return models.User{}, err
	}
	sameEmail := email != "" && user.Email == email
	sameAccount := user.GoogleID != nil && profile.Subject != "" && *user.GoogleID == profile.Subject
	if !sameEmail && !sameAccount {
		return models.User{}, errProfileMismatch
	}
	return user, nil
}

func (g *GoogleAuthService) errorURL(code string) string {
	return g.auth.frontendLink("/auth/error", url.Values{"error": {code}})
}

type GoogleCreateUserInput struct {
	Email    string
	Name     string
	GoogleID string
	TenantID string
	Meta     RequestMeta
}

// CreateUser registers a pre-verified account from profile data the frontend
// received on the complete page.
func (g *GoogleAuthService) CreateUser(ctx context.Context, in GoogleCreateUserInput) (result AuthResult, err error) {
	defer func() { g.auth.observe("google_create_user", err) }()

	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	googleID := strings.TrimSpace(in.GoogleID)
	tenantID := strings.TrimSpace(in.TenantID)
	if email == "" || name == "" || googleID == "" || tenantID == "" {
		return AuthResult{}, errMissingData
	}

	stores := g.auth.stores
	if _, err := stores.Users.FindByEmail(ctx, email); err == nil {
		return AuthResult{}, errUserExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	if _, err := stores.Tenants.GetByID(ctx, tenantID); errors.Is(err, repository.ErrTenantNotFound) {
		return AuthResult{}, errGoogleTenantNotFound
	} else if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:            ids.New(),
		Email:         email,
		Name:          name,
		GoogleID:      &googleID,
		Role:          models.RoleClient,
		Status:        models.UserStatusActive,
		TenantID:      &tenantID,
		EmailVerified: true,
		CreatedAt:     g.auth.now(),
	}
	user.UpdatedAt = user.CreatedAt
	if err := stores.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return AuthResult{}, errUserExists
		}
		return AuthResult{}, err
	}

	result, err = g.auth.startSession(ctx, user, in.Meta)
	if err != nil {
		return AuthResult{}, err
	}
	g.auth.touchLastLogin(ctx, user.ID)
	return result, nil
}
