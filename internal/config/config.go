// Package config loads and persists application configuration via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"parley/pkg/logger"
)

// Config is the root configuration structure.
type Config struct {
	Version   string          `mapstructure:"version" yaml:"version"`
	Gateway   GatewayConfig   `mapstructure:"gateway" yaml:"gateway"`
	Provider  ProviderConfig  `mapstructure:"provider" yaml:"provider"`
	Context   ContextConfig   `mapstructure:"context" yaml:"context"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Log       logger.Config   `mapstructure:"log" yaml:"log"`
}

// GatewayConfig holds HTTP gateway settings.
type GatewayConfig struct {
	Host      string          `mapstructure:"host" yaml:"host"`
	Port      int             `mapstructure:"port" yaml:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// ProviderConfig selects and configures the completion backend.
type ProviderConfig struct {
	// Backend is "openai" (any OpenAI-compatible endpoint) or "ollama".
	Backend   string        `mapstructure:"backend" yaml:"backend"`
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	Model     string        `mapstructure:"model" yaml:"model"`
	MaxTokens int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ContextConfig tunes the context window manager.
type ContextConfig struct {
	// WindowBudgetTokens is the maximum token cost of prior messages
	// sent verbatim with a turn.
	WindowBudgetTokens int `mapstructure:"window_budget_tokens" yaml:"window_budget_tokens"`
	// SummaryMaxTokens bounds the output of summarization calls.
	SummaryMaxTokens int `mapstructure:"summary_max_tokens" yaml:"summary_max_tokens"`
	// TurnTimeout is the wall-clock ceiling for a whole turn.
	TurnTimeout time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
	// SystemPrompt is the preamble prepended to every turn.
	SystemPrompt string `mapstructure:"system_prompt" yaml:"system_prompt"`
	// TitleMaxChars is the display length sessions titles are truncated to.
	TitleMaxChars int `mapstructure:"title_max_chars" yaml:"title_max_chars"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RetentionConfig controls the background maintenance jobs.
type RetentionConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Schedule is a cron expression; default runs daily.
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
	// EmptySessionMaxAge prunes sessions that never received a message.
	EmptySessionMaxAge time.Duration `mapstructure:"empty_session_max_age" yaml:"empty_session_max_age"`
}

var (
	mu           sync.Mutex
	globalConfig *Config
	configPath   string
)

// Load reads configuration from the given path, merging defaults and
// PARLEY_* environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("PARLEY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expanded

		viper.SetConfigFile(expanded)
		if err := viper.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigParseError); ok {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Reload re-reads the config file in place and returns the fresh config.
// Used by the gateway's fsnotify watcher.
func Reload() (*Config, error) {
	return Load(configPath)
}

// Path returns the path the config was loaded from.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return configPath
}

// SaveTo writes the configuration to the given path as YAML.
func SaveTo(cfg *Config, path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(expanded, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Reset clears viper state. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	viper.Reset()
	globalConfig = nil
	configPath = ""
}
