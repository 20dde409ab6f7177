package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_USER", "wetwo")
	t.Setenv("DB_NAME", "wetwo_test")
	t.Setenv("JWT_SECRET", strings.Repeat("s", MinJWTSecretLength))
	t.Setenv("APPLE_AUDIENCE", "com.example.wetwo")
	t.Setenv("APPLE_ISSUER", "")
}

func TestLoad_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, AppleIssuer, cfg.AppleIssuer)
	assert.Equal(t, AppleKeysURL, cfg.AppleKeysURL)
	assert.Equal(t, "*", cfg.CORSOrigin)
}

func TestLoad_ShortSecretFailsFast(t *testing.T) {
	setValidEnv(t)
	t.Setenv("JWT_SECRET", strings.Repeat("s", MinJWTSecretLength-1))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET must be at least 32 characters")
}

func TestLoad_ReportsEveryMissingVariable(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DB_USER", "")
	t.Setenv("APPLE_AUDIENCE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER is required")
	assert.Contains(t, err.Error(), "APPLE_AUDIENCE is required")
}

func TestLoad_RejectsForeignIssuer(t *testing.T) {
	setValidEnv(t)
	t.Setenv("APPLE_ISSUER", "https://evil.example.com")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APPLE_ISSUER")
}

func TestLoadRateLimitConfig_Defaults(t *testing.T) {
	limits := LoadRateLimitConfig()

	assert.Equal(t, 5, limits.Auth.Capacity)
	assert.Equal(t, time.Minute, limits.Auth.RefillInterval)
	assert.Equal(t, 30, limits.Write.Capacity)
	assert.Equal(t, "rl:write", limits.Write.Prefix)
	assert.GreaterOrEqual(t, limits.Auth.TTL, 5*time.Minute)
}

func TestLoadRateLimitConfig_ClampsInvalidValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_AUTH_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_AUTH_REFILL_INTERVAL", "-1s")

	limits := LoadRateLimitConfig()
	assert.Equal(t, 1, limits.Auth.Capacity)
	assert.Equal(t, time.Minute, limits.Auth.RefillInterval)
}
