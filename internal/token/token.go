// Package token decides whether a bearer credential is structurally valid and still usable.
package token

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IsValidFormat reports whether token has exactly three non-empty base64url segments.
func IsValidFormat(token string) bool {
	if token == "" {
		return false
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if !segmentPattern.MatchString(part) {
			return false
		}
	}
	return true
}

// DecodeExpiry returns the exp claim of the payload segment in Unix seconds.
// The signature is not verified.
func DecodeExpiry(token string) (int64, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return 0, false
	}
	raw, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return 0, false
	}

	claims := jwt.MapClaims{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Unix(), true
}

// IsExpired reports whether exp plus skew lies before now. A missing exp (<= 0) is expired.
func IsExpired(exp int64, skew time.Duration, now time.Time) bool {
	if exp <= 0 {
		return true
	}
	return exp+int64(skew/time.Second) < now.Unix()
}

// Lifecycle evaluates tokens against a clock and a skew tolerance.
type Lifecycle struct {
	Skew time.Duration
	Now  func() time.Time
}

// NewLifecycle builds a lifecycle with the configured skew.
func NewLifecycle(cfg config.SessionConfig) Lifecycle {
	return Lifecycle{Skew: cfg.Skew(), Now: time.Now}
}

func (l Lifecycle) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}

func (l Lifecycle) skew() time.Duration {
	if l.Skew < 0 {
		return config.DefaultClockSkew
	}
	return l.Skew
}

// IsExpired applies the lifecycle clock and skew to exp.
func (l Lifecycle) IsExpired(exp int64) bool {
	return IsExpired(exp, l.skew(), l.now())
}

// IsSessionTokenValid checks format first and only then decodes the expiry.
func (l Lifecycle) IsSessionTokenValid(token string) bool {
	if !IsValidFormat(token) {
		return false
	}
	exp, ok := DecodeExpiry(token)
	if !ok {
		return false
	}
	return !l.IsExpired(exp)
}
