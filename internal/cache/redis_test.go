package cache

import (
	"testing"

	"fitdesk/internal/config"
)

func TestOptions_Fields(t *testing.T) {
	opts, err := Options(config.RedisConfig{Addr: "cache:6379", Password: "pw", DB: 2, PoolSize: 16})
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.Password != "pw" || opts.DB != 2 || opts.PoolSize != 16 {
		t.Errorf("options = %+v", opts)
	}
}

func TestOptions_URLWins(t *testing.T) {
	opts, err := Options(config.RedisConfig{URL: "rediss://:secret@managed.example.com:6380/3", Addr: "ignored:6379"})
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.Addr != "managed.example.com:6380" || opts.DB != 3 || opts.Password != "secret" || opts.TLSConfig == nil {
		t.Errorf("options = %+v", opts)
	}
}

func TestOptions_BadURL(t *testing.T) {
	if _, err := Options(config.RedisConfig{URL: "http://not-redis"}); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}
