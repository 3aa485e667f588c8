package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.Production())
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, "admin@planix.app", cfg.AdminEmail)
	assert.Empty(t, cfg.AdminPassword)
	assert.Equal(t, "https://api.deepseek.com", cfg.DeepSeekBaseURL)
	assert.Equal(t, "deepseek-chat", cfg.DeepSeekModel)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 2, cfg.GenerationRetries)
	assert.Equal(t, "text", cfg.ComplianceMode)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 2*time.Minute, cfg.StaleAfter)
	assert.Equal(t, "http://localhost:3000", cfg.AppURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.StripeEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "8080")
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("APP_URL", "https://planix.app/")
	t.Setenv("GENERATION_TIMEOUT", "45s")
	t.Setenv("STALE_AFTER", "5m")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Production())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "https://planix.app", cfg.AppURL)
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
	assert.True(t, cfg.StripeEnabled())
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET is required"},
		{"bad port", map[string]string{"JWT_SECRET": "s", "PORT": "abc"}, "PORT must be an integer"},
		{"port out of range", map[string]string{"JWT_SECRET": "s", "PORT": "70000"}, "PORT must be between"},
		{"bad duration", map[string]string{"JWT_SECRET": "s", "STALE_AFTER": "soon"}, "STALE_AFTER must be a duration"},
		{"zero workers", map[string]string{"JWT_SECRET": "s", "WORKERS": "0"}, "WORKERS must be positive"},
		{"stripe without webhook secret", map[string]string{"JWT_SECRET": "s", "STRIPE_SECRET_KEY": "sk"}, "STRIPE_WEBHOOK_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := fromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
