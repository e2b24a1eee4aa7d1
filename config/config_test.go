package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMap_Defaults(t *testing.T) {
	cfg, err := LoadFromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "progress-ledger", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "progress_ledger_v1", cfg.Storage.Key)
	assert.Equal(t, 2*time.Second, cfg.Storage.OpTimeout)
	assert.Equal(t, 3, cfg.Storage.BreakerThreshold)

	assert.Equal(t, "./data/ledger", cfg.Badger.Path)
	assert.True(t, cfg.Badger.SyncWrites)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)

	assert.Equal(t, int64(50), cfg.Rewards.CompletionXP)
	assert.Equal(t, "module_", cfg.Rewards.BadgePrefix)
	assert.Equal(t, time.Second, cfg.Rewards.CelebrationDuration)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadFromMap_Overrides(t *testing.T) {
	cfg, err := LoadFromMap(map[string]string{
		"LEDGER_STORAGE_BACKEND":       "postgres",
		"LEDGER_DATABASE_URL":          "postgres://u:p@db:5432/ledger",
		"LEDGER_REWARDS_COMPLETION_XP": "75",
		"LEDGER_LOG_LEVEL":             "debug",
		"LEDGER_HTTP_ADDR":             "127.0.0.1:9000",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://u:p@db:5432/ledger", cfg.Database.URL)
	assert.Equal(t, int64(75), cfg.Rewards.CompletionXP)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
}

func TestLoadFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"unknown backend", map[string]string{"LEDGER_STORAGE_BACKEND": "mongo"}, "Backend"},
		{"zero completion xp", map[string]string{"LEDGER_REWARDS_COMPLETION_XP": "0"}, "CompletionXP"},
		{"bad log level", map[string]string{"LEDGER_LOG_LEVEL": "loud"}, "LogLevel"},
		{"production without api key", map[string]string{"LEDGER_APP_ENV": "production"}, "API_KEY_HASH is required"},
		{"plain api key", map[string]string{"LEDGER_HTTP_API_KEY_HASH": "secret"}, "bcrypt hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromMap(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
