package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
	t.Setenv("ADMIN_EMAIL", "owner@vitrine.test")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, "vitrine", cfg.TokenIssuer)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.OAuthEnabled())
	assert.False(t, cfg.StorageEnabled())
}

func TestLoadConfigRequiresAdminEmail(t *testing.T) {
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
	t.Setenv("ADMIN_EMAIL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{SessionSecret: "s", CSRFSecret: "c", AdminEmail: "owner@vitrine.test", RateLimitPerMinute: 60}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"admin email":  func(c *Config) { c.AdminEmail = "not-an-address" },
		"token secret": func(c *Config) { c.TokenSecret = "short" },
		"rate limit":   func(c *Config) { c.RateLimitPerMinute = 0 },
		"csrf secret":  func(c *Config) { c.CSRFSecret = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
