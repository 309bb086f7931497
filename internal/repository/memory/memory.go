// Package memory is an in-process implementation of the repository stores.
// It backs the "memory" database driver used for local development and tests.
package memory

import (
	"context"
	"encoding/hex"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"fitdesk/internal/models"
	"fitdesk/internal/repository"
)

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users         map[string]models.User
	tenants       map[string]models.Tenant
	sessions      map[string]models.Session
	refreshTokens map[string]models.RefreshToken
	verifications map[string]models.Verification
	calendar      map[string]models.GoogleCalendarToken
}

func New() *Store {
	return &Store{
		users:         map[string]models.User{},
		tenants:       map[string]models.Tenant{},
		sessions:      map[string]models.Session{},
		refreshTokens: map[string]models.RefreshToken{},
		verifications: map[string]models.Verification{},
		calendar:      map[string]models.GoogleCalendarToken{},
	}
}

func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Users:          userStore{s},
		Tenants:        tenantStore{s},
		Sessions:       sessionStore{s},
		RefreshTokens:  refreshTokenStore{s},
		Verifications:  verificationStore{s},
		CalendarTokens: calendarStore{s},
	}
}

// WithinTx restores the pre-call state when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Stores) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s.Stores()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// AddTenant seeds a tenant; tenants are managed outside this service.
func (s *Store) AddTenant(t models.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.tenants[t.ID] = t
}

func (s *Store) CountSessions(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

func (s *Store) CountRefreshTokens(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.refreshTokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func (s *Store) CountVerifications(identifier string, purpose models.VerificationPurpose) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.verifications {
		if v.Identifier == identifier && v.Purpose == purpose {
			n++
		}
	}
	return n
}

type snapshot struct {
	users         map[string]models.User
	tenants       map[string]models.Tenant
	sessions      map[string]models.Session
	refreshTokens map[string]models.RefreshToken
	verifications map[string]models.Verification
	calendar      map[string]models.GoogleCalendarToken
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		users:         maps.Clone(s.users),
		tenants:       maps.Clone(s.tenants),
		sessions:      maps.Clone(s.sessions),
		refreshTokens: maps.Clone(s.refreshTokens),
		verifications: maps.Clone(s.verifications),
		calendar:      maps.Clone(s.calendar),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.tenants = snap.tenants
	s.sessions = snap.sessions
	s.refreshTokens = snap.refreshTokens
	s.verifications = snap.verifications
	s.calendar = snap.calendar
}

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	if user.TenantID != nil {
		if _, ok := u.s.tenants[*user.TenantID]; !ok {
			return fmt.Errorf("create user: %w", repository.ErrTenantNotFound)
		}
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	u.s.users[user.ID] = user
	return nil
}

func (u userStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range u.s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (u userStore) GetByID(_ context.Context, id string) (models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (u userStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return u.update(id, func(user *models.User) { user.LastLoginAt = &at })
}

func (u userStore) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	return u.update(id, func(user *models.User) { user.PasswordHash = passwordHash })
}

func (u userStore) MarkEmailVerified(_ context.Context, id string) error {
	return u.update(id, func(user *models.User) { user.EmailVerified = true })
}

func (u userStore) update(id string, fn func(*models.User)) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	user, ok := u.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&user)
	user.UpdatedAt = time.Now()
	u.s.users[id] = user
	return nil
}

type tenantStore struct{ s *Store }

func (t tenantStore) GetByID(_ context.Context, id string) (models.Tenant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	tenant, ok := t.s.tenants[id]
	if !ok {
		return models.Tenant{}, repository.ErrTenantNotFound
	}
	return tenant, nil
}

func (t tenantStore) FindBySubdomain(_ context.Context, subdomain string) (models.Tenant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, tenant := range t.s.tenants {
		if tenant.Subdomain == subdomain {
			return tenant, nil
		}
	}
	return models.Tenant{}, repository.ErrTenantNotFound
}

type sessionStore struct{ s *Store }

func (ss sessionStore) Create(_ context.Context, session models.Session) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	if _, ok := ss.s.users[session.UserID]; !ok {
		return fmt.Errorf("create session: %w", repository.ErrUserNotFound)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	ss.s.sessions[session.ID] = session
	return nil
}

func (ss sessionStore) GetByID(_ context.Context, id string) (models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	session, ok := ss.s.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (ss sessionStore) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	var sessions []models.Session
	for _, session := range ss.s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (ss sessionStore) DeleteByID(_ context.Context, id string) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	ss.s.deleteSessionLocked(id)
	return nil
}

func (ss sessionStore) DeleteForUser(_ context.Context, userID string, id string) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	session, ok := ss.s.sessions[id]
	if !ok || session.UserID != userID {
		return repository.ErrSessionNotFound
	}
	ss.s.deleteSessionLocked(id)
	return nil
}

func (ss sessionStore) DeleteByUser(_ context.Context, userID string) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	for id, session := range ss.s.sessions {
		if session.UserID == userID {
			ss.s.deleteSessionLocked(id)
		}
	}
	return nil
}

// deleteSessionLocked mirrors the ON DELETE CASCADE from sessions to refresh_tokens.
func (s *Store) deleteSessionLocked(id string) {
	delete(s.sessions, id)
	for key, token := range s.refreshTokens {
		if token.SessionID == id {
			delete(s.refreshTokens, key)
		}
	}
}

type refreshTokenStore struct{ s *Store }

func (r refreshTokenStore) Create(_ context.Context, token models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := hex.EncodeToString(token.TokenHash)
	if _, exists := r.s.refreshTokens[key]; exists {
		return fmt.Errorf("refresh token already exists")
	}
	if token.SessionID != "" {
		if _, ok := r.s.sessions[token.SessionID]; !ok {
			return fmt.Errorf("create refresh token: %w", repository.ErrSessionNotFound)
		}
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	r.s.refreshTokens[key] = token
	return nil
}

func (r refreshTokenStore) FindByHash(_ context.Context, tokenHash []byte) (models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	token, ok := r.s.refreshTokens[hex.EncodeToString(tokenHash)]
	if !ok {
		return models.RefreshToken{}, repository.ErrRefreshTokenNotFound
	}
	return token, nil
}

func (r refreshTokenStore) Consume(_ context.Context, tokenHash []byte) (models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := hex.EncodeToString(tokenHash)
	token, ok := r.s.refreshTokens[key]
	if !ok {
		return models.RefreshToken{}, repository.ErrRefreshTokenNotFound
	}
	delete(r.s.refreshTokens, key)
	return token, nil
}

func (r refreshTokenStore) DeleteByHash(_ context.Context, tokenHash []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.refreshTokens, hex.EncodeToString(tokenHash))
	return nil
}

func (r refreshTokenStore) DeleteByUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for key, token := range r.s.refreshTokens {
		if token.UserID == userID {
			delete(r.s.refreshTokens, key)
		}
	}
	return nil
}

func (r refreshTokenStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for key, token := range r.s.refreshTokens {
		if token.Expired(now) {
			delete(r.s.refreshTokens, key)
			n++
		}
	}
	return n, nil
}

type verificationStore struct{ s *Store }

func (v verificationStore) Create(_ context.Context, ver models.Verification) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if ver.CreatedAt.IsZero() {
		ver.CreatedAt = time.Now()
	}
	v.s.verifications[ver.ID] = ver
	return nil
}

func (v verificationStore) Consume(_ context.Context, purpose models.VerificationPurpose, valueHash []byte, now time.Time) (models.Verification, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	want := hex.EncodeToString(valueHash)
	for id, ver := range v.s.verifications {
		if ver.Purpose == purpose && hex.EncodeToString(ver.ValueHash) == want && !ver.Expired(now) {
			delete(v.s.verifications, id)
			return ver, nil
		}
	}
	return models.Verification{}, repository.ErrVerificationNotFound
}

func (v verificationStore) DeleteByIdentifier(_ context.Context, identifier string, purpose models.VerificationPurpose) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	for id, ver := range v.s.verifications {
		if ver.Identifier == identifier && ver.Purpose == purpose {
			delete(v.s.verifications, id)
		}
	}
	return nil
}

func (v verificationStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	var n int64
	for id, ver := range v.s.verifications {
		if ver.Expired(now) {
			delete(v.s.verifications, id)
			n++
		}
	}
	return n, nil
}

type calendarStore struct{ s *Store }

func calendarKey(userID, tenantID string) string {
	return userID + "|" + tenantID
}

func (c calendarStore) Get(_ context.Context, userID, tenantID string) (models.GoogleCalendarToken, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	t, ok := c.s.calendar[calendarKey(userID, tenantID)]
	if !ok {
		return models.GoogleCalendarToken{}, repository.ErrCalendarTokenNotFound
	}
	return t, nil
}

func (c calendarStore) Upsert(_ context.Context, t models.GoogleCalendarToken) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	key := calendarKey(t.UserID, t.TenantID)
	now := time.Now()
	if existing, ok := c.s.calendar[key]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
		if t.RefreshToken == "" {
			t.RefreshToken = existing.RefreshToken
		}
	} else {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	c.s.calendar[key] = t
	return nil
}

func (c calendarStore) UpdateAccessToken(_ context.Context, userID, tenantID, accessToken, refreshToken string, expiresAt time.Time) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	key := calendarKey(userID, tenantID)
	t, ok := c.s.calendar[key]
	if !ok {
		return repository.ErrCalendarTokenNotFound
	}
	t.AccessToken = accessToken
	if refreshToken != "" {
		t.RefreshToken = refreshToken
	}
	t.ExpiresAt = expiresAt
	t.UpdatedAt = time.Now()
	c.s.calendar[key] = t
	return nil
}

var _ repository.Transactor = (*Store)(nil)
