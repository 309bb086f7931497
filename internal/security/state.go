package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrStateMalformed = errors.New("oauth state malformed")
	ErrStateSignature = errors.New("oauth state signature mismatch")
	ErrStateExpired   = errors.New("oauth state expired")
	ErrStatePurpose   = errors.New("oauth state issued for another flow")
)

// StatePurpose names the consent flow a state was issued for. A state is only
// accepted by the callback of the same flow.
type StatePurpose string

const (
	PurposeLogin    StatePurpose = "login"
	PurposeCalendar StatePurpose = "calendar"
)

// PlaceholderUserID marks a login-bootstrap state that is not yet bound to a user.
const PlaceholderUserID = "temp"

type OAuthState struct {
	Purpose  StatePurpose `json:"purpose"`
	UserID   string       `json:"userId"`
	TenantID string       `json:"tenantId"`
	Nonce    string       `json:"nonce"`
	IssuedAt int64        `json:"iat"`
}

// StateCodec signs OAuth state round-tripped through the provider.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStateCodec(secret string, ttl time.Duration) *StateCodec {
	return &StateCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue builds a fresh state for the given flow, user and tenant.
func (c *StateCodec) Issue(purpose StatePurpose, userID, tenantID string) (string, OAuthState, error) {
	nonce, err := GenerateOpaqueToken(16)
	if err != nil {
		return "", OAuthState{}, err
	}
	state := OAuthState{
		Purpose:  purpose,
		UserID:   userID,
		TenantID: tenantID,
		Nonce:    nonce,
		IssuedAt: c.now().Unix(),
	}
	encoded, err := c.Encode(state)
	if err != nil {
		return "", OAuthState{}, err
	}
	return encoded, state, nil
}

func (c *StateCodec) Encode(state OAuthState) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + c.sign(payload), nil
}

// Decode verifies value and returns its state. States issued for a different
// purpose are rejected with ErrStatePurpose.
func (c *StateCodec) Decode(value string, purpose StatePurpose) (OAuthState, error) {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok || payload == "" || signature == "" {
		return OAuthState{}, ErrStateMalformed
	}

	if !hmac.Equal([]byte(signature), []byte(c.sign(payload))) {
		return OAuthState{}, ErrStateSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return OAuthState{}, ErrStateMalformed
	}

	var state OAuthState
	if err := json.Unmarshal(raw, &state); err != nil {
		return OAuthState{}, ErrStateMalformed
	}
	if state.Nonce == "" || state.TenantID == "" {
		return OAuthState{}, ErrStateMalformed
	}

	if state.Purpose != purpose {
		return OAuthState{}, ErrStatePurpose
	}

	issued := time.Unix(state.IssuedAt, 0)
	if c.ttl > 0 && c.now().Sub(issued) > c.ttl {
		return OAuthState{}, ErrStateExpired
	}
	return state, nil
}

func (c *StateCodec) TTL() time.Duration {
	return c.ttl
}

func (c *StateCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte("oauth-state:"))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
