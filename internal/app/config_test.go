package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "rbac:usage", cfg.UsageStream)
	assert.Equal(t, int64(100000), cfg.UsageStreamMaxLen)
	assert.Equal(t, 168*time.Hour, cfg.ExpiryWarnWindow)
	assert.Equal(t, int64(0), cfg.AdminUserID)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("RBAC_ADMIN_USER_ID", "42")
	t.Setenv("RBAC_EXPIRY_WARN_WINDOW", "72h")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, int64(42), cfg.AdminUserID)
	assert.Equal(t, 72*time.Hour, cfg.ExpiryWarnWindow)
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
