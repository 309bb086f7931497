package security

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var expirationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseExpiration converts values such as "900", "15m" or "7d" into a duration.
// A bare number is read as seconds.
func ParseExpiration(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return 0, fmt.Errorf("empty expiration")
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return scaleExpiration(value, n, time.Second)
	}

	unit, ok := expirationUnits[value[len(value)-1]]
	if !ok {
		return 0, fmt.Errorf("expiration %q has unknown unit", value)
	}

	n, err := strconv.ParseInt(value[:len(value)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("expiration %q: %w", value, err)
	}
	return scaleExpiration(value, n, unit)
}

func scaleExpiration(value string, n int64, unit time.Duration) (time.Duration, error) {
	if n <= 0 {
		return 0, fmt.Errorf("expiration %q must be positive", value)
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("expiration %q is too large", value)
	}
	return time.Duration(n) * unit, nil
}

// ExpirationSeconds is ParseExpiration expressed in whole seconds, the unit clients see as expiresIn.
func ExpirationSeconds(value string) (int64, error) {
	d, err := ParseExpiration(value)
	if err != nil {
		return 0, err
	}
	return int64(d / time.Second), nil
}
