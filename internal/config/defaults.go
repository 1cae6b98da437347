package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults registers default values for every configuration key.
func SetDefaults() {
	viper.SetDefault("gateway.host", "127.0.0.1")
	viper.SetDefault("gateway.port", 8790)
	viper.SetDefault("gateway.rate_limit.enabled", true)
	viper.SetDefault("gateway.rate_limit.requests_per_minute", 60)
	viper.SetDefault("gateway.rate_limit.burst", 10)
	viper.SetDefault("gateway.rate_limit.cleanup_interval", 5*time.Minute)

	viper.SetDefault("provider.backend", "openai")
	viper.SetDefault("provider.endpoint", "")
	viper.SetDefault("provider.model", "gpt-4o-mini")
	viper.SetDefault("provider.max_tokens", 2048)
	viper.SetDefault("provider.timeout", 30*time.Second)

	viper.SetDefault("context.window_budget_tokens", 1500)
	viper.SetDefault("context.summary_max_tokens", 256)
	viper.SetDefault("context.turn_timeout", 30*time.Second)
	viper.SetDefault("context.system_prompt", defaultSystemPrompt)
	viper.SetDefault("context.title_max_chars", 50)

	viper.SetDefault("storage.path", "")

	viper.SetDefault("retention.enabled", true)
	viper.SetDefault("retention.schedule", "0 4 * * *")
	viper.SetDefault("retention.empty_session_max_age", 24*time.Hour)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")
}

const defaultSystemPrompt = "You are a helpful assistant. Answer concisely and accurately."
