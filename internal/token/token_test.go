package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/bugisthegod/techmart-storefront/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestIsValidFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"":             false,
		"a.b":          false,
		"a.b.c.d":      false,
		"a!.b.c":       false,
		"a..c":         false,
		".b.c":         false,
		"a.b.":         false,
		"a.b.c":        true,
		"aB-9._x.Zz_-": true,
		"a b.c.d":      false,
	}
	for input, want := range cases {
		assert.Equal(t, want, IsValidFormat(input), "input %q", input)
	}
}

func TestDecodeExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	got, ok := DecodeExpiry(signed(t, jwt.MapClaims{"exp": exp, "sub": "1"}))
	require.True(t, ok)
	assert.Equal(t, exp, got)

	_, ok = DecodeExpiry(signed(t, jwt.MapClaims{"sub": "1"}))
	assert.False(t, ok, "missing exp")

	_, ok = DecodeExpiry(signed(t, jwt.MapClaims{"exp": "tomorrow"}))
	assert.False(t, ok, "non-numeric exp")

	garbage := "aGVhZGVy." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".c2ln"
	_, ok = DecodeExpiry(garbage)
	assert.False(t, ok, "payload is not json")

	_, ok = DecodeExpiry("a.b")
	assert.False(t, ok)
}

func TestIsExpiredBoundaries(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	skew := 30 * time.Second

	assert.False(t, IsExpired(now.Unix()-30, skew, now), "exp = now - skew")
	assert.True(t, IsExpired(now.Unix()-31, skew, now), "exp = now - skew - 1")
	assert.False(t, IsExpired(now.Unix()+3600, skew, now))
	assert.True(t, IsExpired(0, skew, now), "missing exp")
	assert.True(t, IsExpired(-5, skew, now))
}

func TestLifecycleSkewTolerance(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	lc := Lifecycle{Skew: config.DefaultClockSkew, Now: func() time.Time { return now }}

	recent := signed(t, jwt.MapClaims{"exp": now.Add(-15 * time.Second).Unix()})
	stale := signed(t, jwt.MapClaims{"exp": now.Add(-60 * time.Second).Unix()})

	assert.True(t, lc.IsSessionTokenValid(recent), "expired 15s ago is within skew")
	assert.False(t, lc.IsSessionTokenValid(stale), "expired 60s ago is outside skew")
	assert.False(t, lc.IsSessionTokenValid("not-a-token"))
	assert.False(t, lc.IsSessionTokenValid(signed(t, jwt.MapClaims{"sub": "1"})))
}

func TestNewLifecycleUsesConfiguredSkew(t *testing.T) {
	t.Parallel()

	lc := NewLifecycle(config.SessionConfig{ClockSkew: 2 * time.Minute})
	assert.Equal(t, 2*time.Minute, lc.Skew)

	now := time.Unix(1_700_000_000, 0)
	lc.Now = func() time.Time { return now }
	assert.False(t, lc.IsExpired(now.Add(-90*time.Second).Unix()))
}
