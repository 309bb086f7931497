package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type AccessClaims struct {
	UserID    string `json:"uid"`
	Role      string `json:"role"`
	TenantID  string `json:"tid,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type AccessTokenInput struct {
	UserID    string
	Role      string
	TenantID  string
	SessionID string
}

func GenerateAccessToken(secret string, input AccessTokenInput, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:    input.UserID,
		Role:      input.Role,
		TenantID:  input.TenantID,
		SessionID: input.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   input.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func ParseAccessToken(tokenStr string, secret string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AccessClaims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// GenerateOpaqueToken returns a url-safe secret built from length random bytes.
func GenerateOpaqueToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the storage form of an opaque token.
func HashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

// Principal is the authenticated caller as seen by handlers and services.
type Principal struct {
	UserID    string
	Role      string
	TenantID  string
	SessionID string
}

func (c *AccessClaims) Principal() Principal {
	return Principal{
		UserID:    c.UserID,
		Role:      c.Role,
		TenantID:  c.TenantID,
		SessionID: c.SessionID,
	}
}
