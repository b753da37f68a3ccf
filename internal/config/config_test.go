package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestEnv sets up environment variables for testing and returns a cleanup function
func setupTestEnv(t *testing.T, envVars map[string]string) func() {
	// Store original values
	original := make(map[string]string)
	for key := range envVars {
		original[key] = os.Getenv(key)
	}

	// Set test values
	for key, value := range envVars {
		if value == "" {
			err := os.Unsetenv(key)
			if err != nil {
				t.Error(err)
			}
		} else {
			err := os.Setenv(key, value)
			if err != nil {
				t.Error(err)
			}
		}
	}

	// Return cleanup function
	return func() {
		for key, value := range original {
			if value == "" {
				err := os.Unsetenv(key)
				if err != nil {
					t.Error(err)
				}
			} else {
				err := os.Setenv(key, value)
				if err != nil {
					t.Error(err)
				}
			}
		}
	}
}

func TestLoadConfigSuccess(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"BOT_STATUS_URL":       "http://bot.internal:4000/status",
		"BOT_FALLBACK_URLS":    "http://bot-a.internal:4000/status, http://bot-b.internal:4000/status",
		"BOT_API_TOKEN":        "test_bot_token",
		"QUEUE_INGEST_SECRETS": "secret-one, secret-two",
		"HTTP_PORT":            "9090",
		"LOG_LEVEL":            "debug",
		"LOG_FORMAT":           "console",
	})
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify Server config
	assert.Equal(t, "9090", cfg.Server.HTTPPort)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "development", cfg.Server.Env)

	// Verify Bot config
	assert.Equal(t, "http://bot.internal:4000/status", cfg.Bot.StatusURL)
	assert.Equal(t, []string{
		"http://bot-a.internal:4000/status",
		"http://bot-b.internal:4000/status",
	}, cfg.Bot.FallbackURLs)
	assert.Equal(t, "test_bot_token", cfg.Bot.Token)
	assert.Equal(t, 15*time.Second, cfg.Bot.StatusCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Bot.CooldownWindow)
	assert.Equal(t, 3*time.Second, cfg.Bot.AttemptTimeout)
	assert.False(t, cfg.Bot.LocalFallback)

	// Verify Security config
	assert.Equal(t, []string{"secret-one", "secret-two"}, cfg.Security.IngestSecrets)
	assert.False(t, cfg.Security.AuthBypass)

	// Verify Logging config
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadConfigMissingStatusURL(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"BOT_STATUS_URL":     "",
		"BOT_LOCAL_FALLBACK": "",
	})
	defer cleanup()

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "BOT_STATUS_URL")
}

func TestLoadConfigLocalFallbackAllowsMissingStatusURL(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"BOT_STATUS_URL":     "",
		"BOT_LOCAL_FALLBACK": "true",
		"ENVIRONMENT":        "development",
	})
	defer cleanup()

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.Bot.LocalFallback)
}

func TestLoadConfigLocalFallbackRejectedInProduction(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"BOT_STATUS_URL":     "",
		"BOT_LOCAL_FALLBACK": "true",
		"ENVIRONMENT":        "production",
	})
	defer cleanup()

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "BOT_LOCAL_FALLBACK")
}

func TestLoadConfigInvalidLogLevel(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"BOT_STATUS_URL": "http://bot.internal:4000/status",
		"LOG_LEVEL":      "verbose",
	})
	defer cleanup()

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "one", []string{"one"}},
		{"comma joined with spaces", "one, two ,three", []string{"one", "two", "three"}},
		{"trailing comma", "one,two,", []string{"one", "two"}},
		{"only separators", " , , ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "db.internal",
		Port:     "5433",
		User:     "bridge",
		Password: "pw",
		Name:     "bridge_db",
		SSLMode:  "disable",
	}

	dsn := cfg.GetDSN()
	assert.Equal(t, "host=db.internal port=5433 user=bridge password=pw dbname=bridge_db sslmode=disable", dsn)
}
