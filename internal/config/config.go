// Package config loads the chatmd YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/riverfjs/chatmd-go/internal/types"
)

// DefaultSystemPrompt is sent ahead of every conversation unless configured.
const DefaultSystemPrompt = "You're a helpful assistant"

// Config holds all chatmd configuration.
type Config struct {
	Render  *types.RenderConfig `yaml:"render"`
	Stream  StreamConfig        `yaml:"stream"`
	Chat    ChatConfig          `yaml:"chat"`
	Logging LoggingConfig       `yaml:"logging"`
}

// StreamConfig configures incremental rendering.
type StreamConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Threshold    int      `yaml:"threshold"`     // runes between full renders
	FenceMarkers []string `yaml:"fence_markers"` // markers that force a full render
}

// ChatConfig configures the OpenAI-compatible client.
type ChatConfig struct {
	APIKey       string  `yaml:"api_key"`
	BaseURL      string  `yaml:"base_url"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	Timeout      string  `yaml:"timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // console, json
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Render: types.DefaultRenderConfig(),
		Stream: StreamConfig{
			Enabled:      true,
			Threshold:    64,
			FenceMarkers: []string{"```", "~~~"},
		},
		Chat: ChatConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			SystemPrompt: DefaultSystemPrompt,
			Temperature:  0.6,
			Timeout:      "5m",
		},
		Logging: LoggingConfig{
			Level:    "warn",
			Encoding: "console",
		},
	}
}

// DefaultPath returns ~/.config/chatmd/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "chatmd.yaml"
	}
	return filepath.Join(dir, "chatmd", "config.yaml")
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg.Render = cfg.Render.Normalized()
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Chat.APIKey = key
	}
	// CHATMD_API_KEY 优先于 OPENAI_API_KEY
	if key := os.Getenv("CHATMD_API_KEY"); key != "" {
		c.Chat.APIKey = key
	}
	if url := os.Getenv("CHATMD_BASE_URL"); url != "" {
		c.Chat.BaseURL = url
	}
	if model := os.Getenv("CHATMD_MODEL"); model != "" {
		c.Chat.Model = model
	}
}

// ChatTimeout returns the chat timeout, or five minutes when unset or invalid.
func (c *Config) ChatTimeout() time.Duration {
	d, err := time.ParseDuration(c.Chat.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// LogLevel returns the configured zap level, or warn when invalid.
func (c *Config) LogLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return zapcore.WarnLevel
	}
	return level
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	if c.Stream.Threshold <= 0 {
		return fmt.Errorf("config: stream.threshold must be positive, got %d", c.Stream.Threshold)
	}
	for _, m := range c.Stream.FenceMarkers {
		if m == "" {
			return errors.New("config: stream.fence_markers contains an empty marker")
		}
	}
	if c.Chat.Timeout != "" {
		if _, err := time.ParseDuration(c.Chat.Timeout); err != nil {
			return fmt.Errorf("config: chat.timeout: %w", err)
		}
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	switch c.Logging.Encoding {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: invalid logging.encoding %q (valid: console, json)", c.Logging.Encoding)
	}
	return nil
}

// ValidateChat checks that the chat API can be called.
func (c *Config) ValidateChat() error {
	if c.Chat.APIKey == "" {
		return errors.New("config: chat API key not configured (set CHATMD_API_KEY or OPENAI_API_KEY)")
	}
	return nil
}
