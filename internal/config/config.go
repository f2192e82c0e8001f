package config

import (
	"fmt"
	"os"
	"strconv"
)

// EngineConfig holds the settings for a single engine instance (production
// or sandbox).
type EngineConfig struct {
	Enabled       bool
	NewsChannelID string
	// WebhookListenAddr is non-empty only for the production engine when
	// QBOT_PRODUCTION_WEBHOOK_LISTEN_ADDR is set; it selects the webhook
	// transport over the WebSocket transport. Sandbox is always WebSocket.
	WebhookListenAddr string
}

// Config holds all configuration for the bridge process.
type Config struct {
	AppID        string
	ClientSecret string

	Production EngineConfig
	Sandbox    EngineConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.AppID = os.Getenv("QBOT_APP_ID")
	if cfg.AppID == "" {
		return nil, fmt.Errorf("QBOT_APP_ID is required")
	}

	cfg.ClientSecret = os.Getenv("QBOT_CLIENT_SECRET")
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("QBOT_CLIENT_SECRET is required")
	}

	cfg.Production.Enabled = getEnvAsBoolOrDefault("QBOT_PRODUCTION_ENABLED", false)
	cfg.Sandbox.Enabled = getEnvAsBoolOrDefault("QBOT_SANDBOX_ENABLED", false)

	if cfg.Production.Enabled {
		cfg.Production.NewsChannelID = os.Getenv("QBOT_PRODUCTION_NEWS_CHANNEL_ID")
		if cfg.Production.NewsChannelID == "" {
			return nil, fmt.Errorf("QBOT_PRODUCTION_NEWS_CHANNEL_ID is required when production is enabled")
		}
		cfg.Production.WebhookListenAddr = os.Getenv("QBOT_PRODUCTION_WEBHOOK_LISTEN_ADDR")
	}

	if cfg.Sandbox.Enabled {
		cfg.Sandbox.NewsChannelID = os.Getenv("QBOT_SANDBOX_NEWS_CHANNEL_ID")
		if cfg.Sandbox.NewsChannelID == "" {
			return nil, fmt.Errorf("QBOT_SANDBOX_NEWS_CHANNEL_ID is required when sandbox is enabled")
		}
	}

	return cfg, nil
}

// getEnvAsBoolOrDefault returns the value of an environment variable as a
// bool, or a default value when unset or unparseable.
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
