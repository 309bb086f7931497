package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsWithEnv(t *testing.T) {
	t.Setenv("FITDESK_SECURITY_JWTSECRET", "test-secret")
	t.Setenv("FITDESK_DATABASE_DSN", "postgres://localhost/fitdesk")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("HTTP.Port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeout != 10*time.Second {
		t.Errorf("HTTP.ReadTimeout = %v, want 10s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Security.JWTSecret != "test-secret" {
		t.Errorf("JWTSecret = %q", cfg.Security.JWTSecret)
	}

	tokens, err := cfg.TokenLifetimes()
	if err != nil {
		t.Fatalf("TokenLifetimes() error = %v", err)
	}
	if tokens.AccessTTL != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", tokens.AccessTTL)
	}
	if tokens.RefreshTTL != 30*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 720h", tokens.RefreshTTL)
	}
	if tokens.VerificationTTL != time.Hour {
		t.Errorf("VerificationTTL = %v, want 1h", tokens.VerificationTTL)
	}

	policy := cfg.PasswordPolicy()
	if policy.MinLength != 8 || !policy.RequireDigit || policy.RequireSpecial {
		t.Errorf("unexpected password policy %+v", policy)
	}
}

func TestLoad_MissingSecretIsFatal(t *testing.T) {
	t.Setenv("FITDESK_DATABASE_DSN", "postgres://localhost/fitdesk")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "jwtsecret") {
		t.Fatalf("Load() error = %v, want jwtsecret error", err)
	}
}

func TestLoad_MalformedTTLIsFatal(t *testing.T) {
	t.Setenv("FITDESK_SECURITY_JWTSECRET", "test-secret")
	t.Setenv("FITDESK_DATABASE_DSN", "postgres://localhost/fitdesk")
	t.Setenv("FITDESK_SECURITY_ACCESSTOKENTTL", "fifteen minutes")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "accesstokenttl") {
		t.Fatalf("Load() error = %v, want accesstokenttl error", err)
	}
}

func TestLoad_OversizedTTLIsFatal(t *testing.T) {
	t.Setenv("FITDESK_SECURITY_JWTSECRET", "test-secret")
	t.Setenv("FITDESK_DATABASE_DSN", "postgres://localhost/fitdesk")
	t.Setenv("FITDESK_SECURITY_REFRESHTOKENTTL", "200000d")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "refreshtokenttl") {
		t.Fatalf("Load() error = %v, want refreshtokenttl error", err)
	}
}

func TestValidate_DatabaseDriver(t *testing.T) {
	base := func() AppConfig {
		return AppConfig{
			Environment: "development",
			Database:    DatabaseConfig{Driver: "memory"},
			Frontend:    FrontendConfig{BaseURL: "http://localhost:3000"},
			Security: SecurityConfig{
				JWTSecret:       "secret",
				AccessTokenTTL:  "15m",
				RefreshTokenTTL: "30d",
				VerificationTTL: "1h",
				OAuthStateTTL:   "10m",
			},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory driver in development: %v", err)
	}

	cfg = base()
	cfg.Environment = "production"
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	if err := cfg.Validate(); err == nil {
		t.Error("expected memory driver to be rejected in production")
	}

	cfg = base()
	cfg.Database.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing dsn to be rejected")
	}

	cfg = base()
	cfg.Database.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Error("expected unknown driver to be rejected")
	}
}
