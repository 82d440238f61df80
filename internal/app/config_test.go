package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 24*time.Hour, cfg.ApprovalTTL)
	require.Equal(t, "redis", cfg.RateLimitBackend)
	require.Equal(t, "*/5 * * * *", cfg.ApprovalSweepCron)
}

func TestLoadConfigRejects(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"short production secret", map[string]string{"JWT_SECRET": "short", "APP_ENV": "production"}},
		{"unknown backend", map[string]string{"JWT_SECRET": "dev", "RATE_LIMIT_BACKEND": "memcached"}},
		{"tiny ttl", map[string]string{"JWT_SECRET": "dev", "APPROVAL_TTL": "5s"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel("debug").String())
	require.Equal(t, "WARN", parseLevel("Warning").String())
	require.Equal(t, "INFO", parseLevel("loud").String())
}
