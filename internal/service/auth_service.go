package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fitdesk/internal/ids"
	"fitdesk/internal/metrics"
	"fitdesk/internal/models"
	"fitdesk/internal/queue"
	"fitdesk/internal/repository"
	"fitdesk/internal/security"
)

type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

type AuthOptions struct {
	Stores          repository.Stores
	Tx              repository.Transactor
	Tokens          *TokenIssuer
	Queue           TaskQueue
	Metrics         metrics.Recorder
	PasswordPolicy  security.PasswordPolicy
	VerificationTTL time.Duration
	FrontendURL     string
	Logger          zerolog.Logger
}

type AuthService struct {
	stores          repository.Stores
	tx              repository.Transactor
	tokens          *TokenIssuer
	queue           TaskQueue
	metrics         metrics.Recorder
	policy          security.PasswordPolicy
	verificationTTL time.Duration
	frontendURL     string
	log             zerolog.Logger
	now             func() time.Time
}

func NewAuthService(opts AuthOptions) *AuthService {
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthService{
		stores:          opts.Stores,
		tx:              opts.Tx,
		tokens:          opts.Tokens,
		queue:           opts.Queue,
		metrics:         rec,
		policy:          opts.PasswordPolicy,
		verificationTTL: opts.VerificationTTL,
		frontendURL:     strings.TrimRight(opts.FrontendURL, "/"),
		log:             opts.Logger,
		now:             time.Now,
	}
}

// RequestMeta describes the client that opened a session.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (result AuthResult, err error) {
	defer func() { s.observe("login", err) }()

	user, err := s.stores.Users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, errInvalidCredentials
		}
		return AuthResult{}, err
	}

	if !user.IsActive() {
		return AuthResult{}, errUserInactive
	}

	// OAuth-only accounts have no hash and fall through to the same error.
	if !security.ComparePassword(input.Password, user.PasswordHash) {
		return AuthResult{}, errInvalidCredentials
	}

	result, err = s.startSession(ctx, user, input.Meta)
	if err != nil {
		return AuthResult{}, err
	}

	s.touchLastLogin(ctx, user.ID)
	return result, nil
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
	TenantID string
	Meta     RequestMeta
}

func (s *AuthService) Signup(ctx context.Context, input SignupInput) (result AuthResult, err error) {
	defer func() { s.observe("signup", err) }()

	email := normalizeEmail(input.Email)

	if _, err := s.stores.Users.FindByEmail(ctx, email); err == nil {
		return AuthResult{}, errEmailAlreadyExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	if check := security.ValidatePassword(input.Password, s.policy); !check.IsValid {
		return AuthResult{}, errPasswordTooWeak(check.Reasons)
	}

	tenantID, err := s.resolveSignupTenant(ctx, strings.TrimSpace(input.TenantID))
	if err != nil {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:            ids.New(),
		Email:         email,
		PasswordHash:  passwordHash,
		Name:          strings.TrimSpace(input.Name),
		Role:          models.RoleClient,
		Status:        models.UserStatusActive,
		TenantID:      &tenantID,
		EmailVerified: false,
		CreatedAt:     s.now(),
	}
	user.UpdatedAt = user.CreatedAt

	if err := s.stores.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return AuthResult{}, errEmailAlreadyExists
		}
		// an unresolvable fallback tenant also lands here
		return AuthResult{}, err
	}

	result, err = s.startSession(ctx, user, input.Meta)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.sendVerification(ctx, user, models.PurposeEmailVerification); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("signup verification email not queued")
	}

	return result, nil
}

// resolveSignupTenant prefers the explicit id, then the tenant with the
// default subdomain, then the fallback id.
func (s *AuthService) resolveSignupTenant(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		tenant, err := s.stores.Tenants.GetByID(ctx, explicit)
		if errors.Is(err, repository.ErrTenantNotFound) {
			return "", errSignupTenantNotFound
		}
		if err != nil {
			return "", err
		}
		return tenant.ID, nil
	}

	tenant, err := s.stores.Tenants.FindBySubdomain(ctx, models.DefaultTenantSubdomain)
	if errors.Is(err, repository.ErrTenantNotFound) {
		return models.FallbackTenantID, nil
	}
	if err != nil {
		return "", err
	}
	return tenant.ID, nil
}

// ForgotPassword never reports whether the email belongs to an account.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	email = normalizeEmail(email)

	user, err := s.stores.Users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.log.Error().Err(err).Msg("forgot password lookup failed")
		}
		s.observe("forgot_password", nil)
		return
	}

	if err := s.sendVerification(ctx, user, models.PurposePasswordReset); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("password reset not issued")
	}
	s.observe("forgot_password", nil)
}

type ResetPasswordInput struct {
	Token           string
	Password        string
	ConfirmPassword string
}

func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) (err error) {
	defer func() { s.observe("reset_password", err) }()

	if input.Password != input.ConfirmPassword {
		return errPasswordsDoNotMatch
	}
	if check := security.ValidatePassword(input.Password, s.policy); !check.IsValid {
		return errPasswordTooWeak(check.Reasons)
	}
	if input.Token == "" {
		return errInvalidResetToken
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return err
	}

	return s.tx.WithinTx(ctx, func(tx repository.Stores) error {
		v, err := tx.Verifications.Consume(ctx, models.PurposePasswordReset, security.HashToken(input.Token), s.now())
		if errors.Is(err, repository.ErrVerificationNotFound) {
			return errInvalidResetToken
		}
		if err != nil {
			return err
		}

		user, err := tx.Users.FindByEmail(ctx, v.Identifier)
		if errors.Is(err, repository.ErrUserNotFound) {
			return errTokenUserNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
			return err
		}
		if err := tx.Sessions.DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return tx.RefreshTokens.DeleteByUser(ctx, user.ID)
	})
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (err error) {
	defer func() { s.observe("verify_email", err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return errVerificationRequired
	}

	return s.tx.WithinTx(ctx, func(tx repository.Stores) error {
		v, err := tx.Verifications.Consume(ctx, models.PurposeEmailVerification, security.HashToken(token), s.now())
		if errors.Is(err, repository.ErrVerificationNotFound) {
			return errInvalidVerification
		}
		if err != nil {
			return err
		}

		user, err := tx.Users.FindByEmail(ctx, v.Identifier)
		if errors.Is(err, repository.ErrUserNotFound) {
			return errTokenUserNotFound
		}
		if err != nil {
			return err
		}
		return tx.Users.MarkEmailVerified(ctx, user.ID)
	})
}

func (s *AuthService) ResendVerification(ctx context.Context, p security.Principal) error {
	user, err := s.stores.Users.GetByID(ctx, p.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return errMeUserNotFound
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return errEmailAlreadyVerified
	}
	return s.sendVerification(ctx, user, models.PurposeEmailVerification)
}

// Refresh rotates a refresh token. The presented token is consumed before
// anything else so it can only ever be exchanged once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	defer func() { s.observe("refresh", err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, errRefreshTokenRequired
	}

	record, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if record == nil {
		return TokenPair{}, errInvalidRefreshToken
	}

	user, err := s.stores.Users.GetByID(ctx, record.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return TokenPair{}, errRefreshUserNotFound
	}
	if err != nil {
		return TokenPair{}, err
	}
	if !user.IsActive() {
		return TokenPair{}, errRefreshUserNotFound
	}

	accessToken, err := s.tokens.GenerateAccessToken(user, record.SessionID)
	if err != nil {
		return TokenPair{}, err
	}
	issued, err := s.tokens.CreateRefreshToken(ctx, user.ID, record.SessionID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: issued.Token,
		ExpiresIn:    s.tokens.ExpiresIn(),
	}, nil
}

// Logout ends the current session and revokes every refresh token the user holds.
func (s *AuthService) Logout(ctx context.Context, p security.Principal) (err error) {
	defer func() { s.observe("logout", err) }()

	if p.SessionID != "" {
		if err := s.stores.Sessions.DeleteByID(ctx, p.SessionID); err != nil {
			return err
		}
	}
	return s.tokens.DeleteUserRefreshTokens(ctx, p.UserID)
}

func (s *AuthService) Me(ctx context.Context, p security.Principal) (UserView, error) {
	user, err := s.stores.Users.GetByID(ctx, p.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return UserView{}, errMeUserNotFound
	}
	if err != nil {
		return UserView{}, err
	}
	return NewUserView(user), nil
}

func (s *AuthService) ListSessions(ctx context.Context, p security.Principal) ([]SessionView, error) {
	sessions, err := s.stores.Sessions.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, SessionView{
			ID:        sess.ID,
			IPAddress: sess.IPAddress,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
			Current:   sess.ID == p.SessionID,
		})
	}
	return views, nil
}

func (s *AuthService) RevokeSession(ctx context.Context, p security.Principal, sessionID string) error {
	if sessionID == p.SessionID {
		return errCannotRevokeCurrent
	}
	err := s.stores.Sessions.DeleteForUser(ctx, p.UserID, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return errSessionNotFound
	}
	return err
}

func (s *AuthService) startSession(ctx context.Context, user models.User, meta RequestMeta) (AuthResult, error) {
	session := models.Session{
		ID:        ids.New(),
		UserID:    user.ID,
		TenantID:  user.TenantID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}
	if err := s.stores.Sessions.Create(ctx, session); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(user, session.ID)
	if err != nil {
		return AuthResult{}, err
	}
	refresh, err := s.tokens.CreateRefreshToken(ctx, user.ID, session.ID)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		User:         NewUserView(user),
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		ExpiresIn:    s.tokens.ExpiresIn(),
		RedirectTo:   user.Role.RedirectPath(),
		SessionID:    session.ID,
	}, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, userID string) {
	if err := s.stores.Users.UpdateLastLogin(ctx, userID, s.now()); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("update last login failed")
	}
}

// sendVerification replaces any outstanding token of the same purpose and
// queues the email carrying the new one.
func (s *AuthService) sendVerification(ctx context.Context, user models.User, purpose models.VerificationPurpose) error {
	raw, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return err
	}

	if err := s.stores.Verifications.DeleteByIdentifier(ctx, user.Email, purpose); err != nil {
		return fmt.Errorf("clear previous tokens: %w", err)
	}
	if err := s.stores.Verifications.Create(ctx, models.Verification{
		ID:         ids.New(),
		Identifier: user.Email,
		ValueHash:  security.HashToken(raw),
		Purpose:    purpose,
		ExpiresAt:  s.now().Add(s.verificationTTL),
	}); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}

	template, path := queue.TemplateEmailVerification, "/verify-email"
	if purpose == models.PurposePasswordReset {
		template, path = queue.TemplatePasswordReset, "/reset-password"
	}

	return s.queue.Enqueue(ctx, queue.Task{
		Type:     queue.TaskSendEmail,
		Template: template,
		To:       user.Email,
		Name:     user.Name,
		Link:     s.frontendLink(path, url.Values{"token": {raw}}),
	})
}

func (s *AuthService) frontendLink(path string, query url.Values) string {
	link := s.frontendURL + path
	if len(query) > 0 {
		link += "?" + query.Encode()
	}
	return link
}

func (s *AuthService) observe(flow string, err error) {
	if err == nil {
		s.metrics.AuthEvent(flow, "success")
		return
	}
	if svcErr, ok := AsError(err); ok {
		s.metrics.AuthEvent(flow, svcErr.Code)
		return
	}
	s.metrics.AuthEvent(flow, "error")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
