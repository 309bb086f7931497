package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"fitdesk/internal/security"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type PasswordPolicyConfig struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

type SecurityConfig struct {
	JWTSecret       string
	AccessTokenTTL  string
	RefreshTokenTTL string
	VerificationTTL string
	OAuthStateTTL   string
	PasswordPolicy  PasswordPolicyConfig
}

type GoogleConfig struct {
	ClientID            string
	ClientSecret        string
	RedirectURL         string
	CalendarRedirectURL string
	AuthURL             string
	TokenURL            string
	UserInfoURL         string
	CalendarEndpoint    string
	CalendarID          string
}

type FrontendConfig struct {
	BaseURL string
}

type MailConfig struct {
	Domain  string
	APIKey  string
	APIBase string
	From    string
}

type QueueConfig struct {
	Stream           string
	Group            string
	Consumer         string
	ClaimInterval    time.Duration
	MaxDeliveries    int64
	DeadLetterStream string
}

type RateLimitConfig struct {
	Enabled         bool
	RequestsPerMin  int
	Burst           int
	CleanupInterval time.Duration
}

type JobsConfig struct {
	CleanupSchedule string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Google           GoogleConfig
	Frontend         FrontendConfig
	Mail             MailConfig
	Queue            QueueConfig
	RateLimit        RateLimitConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

// Tokens holds the parsed token lifetimes. Parsing happens once at startup.
type Tokens struct {
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	OAuthStateTTL   time.Duration
}

func Load() (*AppConfig, error) {
	v := newViper("config", "FITDESK")
	setDefaults(v)

	cfg, err := read(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker reads the same file as the API but only requires what the worker uses.
func LoadWorker() (*AppConfig, error) {
	v := newViper("config", "FITDESK")
	setDefaults(v)
	v.SetDefault("queue.consumer", "worker-1")

	cfg, err := read(v)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("worker requires the postgres database driver, got %q", cfg.Database.Driver)
	}
	return cfg, nil
}

func newViper(name, envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func read(v *viper.Viper) (*AppConfig, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwtsecret is required")
	}
	if len(c.Security.JWTSecret) < 32 && c.Environment == "production" {
		return errors.New("security.jwtsecret must be at least 32 bytes in production")
	}
	if _, err := c.TokenLifetimes(); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	case "memory":
		if c.Environment == "production" {
			return errors.New("the memory database driver is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Frontend.BaseURL == "" {
		return errors.New("frontend.baseurl is required")
	}
	return nil
}

func (c *AppConfig) TokenLifetimes() (Tokens, error) {
	var (
		t   Tokens
		err error
	)
	if t.AccessTTL, err = security.ParseExpiration(c.Security.AccessTokenTTL); err != nil {
		return Tokens{}, fmt.Errorf("security.accesstokenttl: %w", err)
	}
	if t.RefreshTTL, err = security.ParseExpiration(c.Security.RefreshTokenTTL); err != nil {
		return Tokens{}, fmt.Errorf("security.refreshtokenttl: %w", err)
	}
	if t.VerificationTTL, err = security.ParseExpiration(c.Security.VerificationTTL); err != nil {
		return Tokens{}, fmt.Errorf("security.verificationttl: %w", err)
	}
	if t.OAuthStateTTL, err = security.ParseExpiration(c.Security.OAuthStateTTL); err != nil {
		return Tokens{}, fmt.Errorf("security.oauthstatettl: %w", err)
	}
	return t, nil
}

func (c *AppConfig) PasswordPolicy() security.PasswordPolicy {
	p := c.Security.PasswordPolicy
	return security.PasswordPolicy{
		MinLength:      p.MinLength,
		MaxLength:      p.MaxLength,
		RequireUpper:   p.RequireUpper,
		RequireLower:   p.RequireLower,
		RequireDigit:   p.RequireDigit,
		RequireSpecial: p.RequireSpecial,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.maxopen", 30)
	v.SetDefault("database.maxidle", 10)
	v.SetDefault("database.connmaxlifetime", "30m")
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.poolsize", 0)

	// keys without a real default still need registering so env overrides reach Unmarshal
	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("google.clientid", "")
	v.SetDefault("google.clientsecret", "")
	v.SetDefault("google.authurl", "")
	v.SetDefault("google.tokenurl", "")
	v.SetDefault("google.userinfourl", "")
	v.SetDefault("google.calendarendpoint", "")
	v.SetDefault("mail.domain", "")
	v.SetDefault("mail.apikey", "")
	v.SetDefault("allowcorsorigins", []string{})

	v.SetDefault("security.accesstokenttl", "15m")
	v.SetDefault("security.refreshtokenttl", "30d")
	v.SetDefault("security.verificationttl", "1h")
	v.SetDefault("security.oauthstatettl", "10m")
	v.SetDefault("security.passwordpolicy.minlength", 8)
	v.SetDefault("security.passwordpolicy.maxlength", 128)
	v.SetDefault("security.passwordpolicy.requireupper", true)
	v.SetDefault("security.passwordpolicy.requirelower", true)
	v.SetDefault("security.passwordpolicy.requiredigit", true)
	v.SetDefault("security.passwordpolicy.requirespecial", false)

	v.SetDefault("google.redirecturl", "http://localhost:8080/api/auth/google/callback")
	v.SetDefault("google.calendarredirecturl", "http://localhost:8080/api/calendar/google/callback")
	v.SetDefault("google.calendarid", "primary")

	v.SetDefault("frontend.baseurl", "http://localhost:3000")

	v.SetDefault("mail.apibase", "https://api.mailgun.net/v3")
	v.SetDefault("mail.from", "FitDesk <no-reply@fitdesk.app>")

	v.SetDefault("queue.stream", "auth:tasks")
	v.SetDefault("queue.group", "auth-workers")
	v.SetDefault("queue.consumer", "api")
	v.SetDefault("queue.claiminterval", "30s")
	v.SetDefault("queue.maxdeliveries", 5)
	v.SetDefault("queue.deadletterstream", "auth:tasks:dead")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requestspermin", 20)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("ratelimit.cleanupinterval", "5m")

	v.SetDefault("jobs.cleanupschedule", "0 0 3 * * *")
}
