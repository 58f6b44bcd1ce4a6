package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("REDIS_HOST", "localhost")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.False(t, cfg.Server.Production())
	assert.False(t, cfg.Cookies.Secure)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 5*time.Minute, cfg.JWT.TempTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.UserCacheTTL)
	assert.Equal(t, 10000, cfg.Auth.UserCacheSize)
	assert.Equal(t, 24*time.Hour, cfg.Auth.JWKSCacheTTL)
	assert.Equal(t, 10, cfg.Auth.JWKSPerMinute)
	assert.Equal(t, 10*time.Second, cfg.Auth.IdPTimeout)
	assert.Zero(t, cfg.Auth.ExchangeRetries)
	assert.Equal(t, 2, cfg.Auth.LogoutRetries)
	assert.Equal(t, 15*time.Minute, cfg.Storage.PresignTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
}

func TestProductionRequiresTempSecret(t *testing.T) {
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Cookies.Secure)
}

func TestProductionRejectsInsecureTokens(t *testing.T) {
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("ALLOW_INSECURE_TOKEN", "true")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestCookieSecureOverride(t *testing.T) {
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Cookies.Secure)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.CORSOrigins)
}

func TestUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := LoadConfig()
	require.Error(t, err)
}
