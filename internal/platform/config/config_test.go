package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Setup
	t.Setenv("BROWSERLESS_HOST", "")
	t.Setenv("API_KEYS", "")
	t.Setenv("API_KEY", "")

	// Execute
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.Browserless.Host)
	assert.Equal(t, 3, cfg.Browserless.MaxAttempts)
	assert.Equal(t, 120*time.Second, cfg.Browserless.ScriptTimeout)
	assert.Equal(t, 2*time.Second, cfg.Browserless.Backoff())
	assert.Equal(t, 5, cfg.Scraper.MaxPosts)
	assert.Equal(t, 24, cfg.Scraper.RecentLikes.WindowHours)
	assert.True(t, cfg.Scraper.RecentLikes.Enrich)
	assert.Equal(t, "X-API-Key", cfg.Server.AuthHeader)
	assert.Equal(t, []string{"/api/health"}, cfg.Server.PublicPaths)
	assert.Empty(t, cfg.Server.APIKeys)
}

func TestLoad_FromEnvFile(t *testing.T) {
	// Setup
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "BROWSERLESS_HOST=https://chrome.example.com\n" +
		"BROWSERLESS_RETRY_BACKOFF_SECONDS=0.5\n" +
		"API_KEYS= key-a , key-b ,\n" +
		"RECENT_LIKES_ENRICH=false\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	for _, key := range []string{"BROWSERLESS_HOST", "BROWSERLESS_RETRY_BACKOFF_SECONDS", "API_KEYS", "RECENT_LIKES_ENRICH"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	// Execute
	cfg, err := Load(envFile)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "https://chrome.example.com", cfg.Browserless.Host)
	assert.Equal(t, 500*time.Millisecond, cfg.Browserless.Backoff())
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Server.APIKeys)
	assert.False(t, cfg.Scraper.RecentLikes.Enrich)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "不正なバックエンドURL", key: "BROWSERLESS_HOST", val: "not a url"},
		{name: "試行回数が0", key: "BROWSERLESS_REQUEST_RETRIES", val: "0"},
		{name: "待機時間の上限が下限未満", key: "SCRAPER_POST_DELAY_MAX", val: "1"},
		{name: "未知のログレベル", key: "LOG_LEVEL", val: "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			t.Setenv(tt.key, tt.val)

			// Execute
			_, err := Load("")

			// Assert
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}
