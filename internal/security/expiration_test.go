package security

import (
	"testing"
	"time"
)

func TestParseExpiration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"900", 900 * time.Second},
		{"30s", 30 * time.Second},
		{"15m", 15 * time.Minute},
		{"1h", time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"30d", 30 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{" 15M ", 15 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpiration(tt.in)
			if err != nil {
				t.Fatalf("ParseExpiration(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseExpiration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseExpiration_Malformed(t *testing.T) {
	for _, in := range []string{"", "abc", "15x", "m", "-5m", "0", "1.5h", "200000d", "300000d", "10000000000000", "9223372036854775807s"} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseExpiration(in); err == nil {
				t.Errorf("ParseExpiration(%q) expected error", in)
			}
		})
	}
}

func TestExpirationSeconds(t *testing.T) {
	got, err := ExpirationSeconds("15m")
	if err != nil || got != 900 {
		t.Fatalf("ExpirationSeconds(15m) = %d, %v; want 900", got, err)
	}
}
