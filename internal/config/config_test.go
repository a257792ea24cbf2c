package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ProviderPolicy(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ModeOnce, cfg.Mode)
	assert.Equal(t, 15*time.Second, cfg.Provider.GetTimeout())
	assert.Equal(t, time.Second, cfg.Provider.GetBackoff())
	assert.Equal(t, 3, cfg.Provider.MaxRetries)
	assert.Equal(t, []int{429, 500, 502, 503, 504}, cfg.Provider.RetryStatuses)
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Provider.BaseURL, cfg.Provider.BaseURL)
}

func TestLoadFile_TOMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "serve"

[log]
level = "debug"

[provider]
timeout = "5s"
domestic_fs = "m:1 s:2"

[provider.columns]
f2 = "现价"

[smtp]
server = "smtp.example.com"
user = "bot@example.com"
to = "me@example.com"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("MARKETVAL_LOG_LEVEL", "warn")
	t.Setenv("SMTP_PORT", "465")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ModeServe, cfg.Mode)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Provider.GetTimeout())
	assert.Equal(t, "m:1 s:2", cfg.Provider.DomesticFS)
	assert.Equal(t, "现价", cfg.Provider.Columns["f2"])
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.Equal(t, "bot@example.com", cfg.SMTP.From)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestLoadFile_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = ["), 0o644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestNormalizeMode(t *testing.T) {
	t.Setenv("MARKETVAL_MODE", "Schedule")
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, ModeSchedule, cfg.Mode)

	assert.Equal(t, ModeOnce, normalizeMode("bogus"))
}

func TestTelegramEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.True(t, cfg.Telegram.Enabled())
	assert.Equal(t, int64(-1001), cfg.Telegram.ChatID)
}

func TestParseDuration_Fallback(t *testing.T) {
	p := ProviderConfig{Timeout: "soon", Backoff: "-1s"}
	assert.Equal(t, 15*time.Second, p.GetTimeout())
	assert.Equal(t, time.Second, p.GetBackoff())
}
