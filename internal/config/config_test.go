package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CHATMD_API_KEY", "OPENAI_API_KEY", "CHATMD_BASE_URL", "CHATMD_MODEL"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.Stream.Enabled)
	assert.Equal(t, 64, cfg.Stream.Threshold)
	assert.Equal(t, []string{"```", "~~~"}, cfg.Stream.FenceMarkers)
	assert.Equal(t, 17.0, cfg.Render.BaseFontSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Stream, cfg.Stream)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
render:
  base_font_size: 15
  symbols:
    bullet: "-"
stream:
  threshold: 32
chat:
  model: local-model
  timeout: 30s
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.Render.BaseFontSize)
	assert.Equal(t, "-", cfg.Render.MarkdownSymbol.Bullet)
	assert.Equal(t, "monokai", cfg.Render.HighlightTheme, "unset fields keep defaults")
	assert.Equal(t, 32, cfg.Stream.Threshold)
	assert.True(t, cfg.Stream.Enabled)
	assert.Equal(t, "local-model", cfg.Chat.Model)
	assert.Equal(t, 30*time.Second, cfg.ChatTimeout())
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel())
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "stream: [not a map"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("CHATMD_BASE_URL", "http://localhost:8080/v1")
	t.Setenv("CHATMD_MODEL", "env-model")

	cfg, err := Load(writeConfig(t, "chat:\n  model: file-model\n"))
	require.NoError(t, err)
	assert.Equal(t, "openai-key", cfg.Chat.APIKey)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Chat.BaseURL)
	assert.Equal(t, "env-model", cfg.Chat.Model)

	t.Setenv("CHATMD_API_KEY", "chatmd-key")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "chatmd-key", cfg.Chat.APIKey)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Stream.Threshold = 10
	cfg.Chat.SystemPrompt = "answer in markdown"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero threshold", func(c *Config) { c.Stream.Threshold = 0 }, true},
		{"empty marker", func(c *Config) { c.Stream.FenceMarkers = []string{"```", ""} }, true},
		{"bad timeout", func(c *Config) { c.Chat.Timeout = "soon" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad encoding", func(c *Config) { c.Logging.Encoding = "xml" }, true},
		{"json encoding", func(c *Config) { c.Logging.Encoding = "json" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChat(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ValidateChat())
	cfg.Chat.APIKey = "k"
	assert.NoError(t, cfg.ValidateChat())
}

func TestChatTimeout_Fallback(t *testing.T) {
	cfg := Default()
	cfg.Chat.Timeout = ""
	assert.Equal(t, 5*time.Minute, cfg.ChatTimeout())
}
