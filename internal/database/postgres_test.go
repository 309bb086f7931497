package database

import (
	"testing"
	"time"

	"fitdesk/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := PoolConfig(config.DatabaseConfig{
		DSN:             "postgres://u:p@localhost:5432/fitdesk?sslmode=disable",
		MaxOpen:         8,
		MaxIdle:         20,
		ConnMaxLifetime: 15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("PoolConfig: %v", err)
	}
	if cfg.MaxConns != 8 || cfg.MinConns != 8 {
		t.Errorf("conns = max %d min %d, want 8/8", cfg.MaxConns, cfg.MinConns)
	}
	if cfg.MaxConnLifetime != 15*time.Minute {
		t.Errorf("lifetime = %v", cfg.MaxConnLifetime)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != applicationName {
		t.Errorf("application_name = %q", got)
	}
}

func TestPoolConfig_KeepsDSNApplicationName(t *testing.T) {
	cfg, err := PoolConfig(config.DatabaseConfig{DSN: "postgres://localhost/fitdesk?application_name=worker"})
	if err != nil {
		t.Fatalf("PoolConfig: %v", err)
	}
	if got := cfg.ConnConfig.RuntimeParams["application_name"]; got != "worker" {
		t.Errorf("application_name = %q, want worker", got)
	}
}

func TestPoolConfig_BadDSN(t *testing.T) {
	if _, err := PoolConfig(config.DatabaseConfig{DSN: "postgres://%zz"}); err == nil {
		t.Fatal("expected error for malformed dsn")
	}
}
