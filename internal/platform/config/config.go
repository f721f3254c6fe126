package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the webhook service. Values are loaded
// from config.defaults.yaml (if present) and overridden by APP_* environment
// variables, e.g. APP_VERIFY_TOKEN, APP_ACCESS_TOKEN.
type Config struct {
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	ServerPort int    `mapstructure:"SERVER_PORT" validate:"gt=0"`

	// Provider-facing credentials. VerifyToken is checked during the
	// subscription handshake; AccessToken authorizes outbound Send API calls.
	// AppSecret enables X-Hub-Signature-256 verification and is optional:
	// when empty, inbound payloads are accepted without signature checks.
	VerifyToken string `mapstructure:"VERIFY_TOKEN" validate:"required"`
	AccessToken string `mapstructure:"ACCESS_TOKEN" validate:"required"`
	AppSecret   string `mapstructure:"APP_SECRET"`

	GraphAPIVersion string `mapstructure:"GRAPH_API_VERSION" validate:"required"`
	GraphAPIBaseURL string `mapstructure:"GRAPH_API_BASE_URL" validate:"required,url"`
	ReplyText       string `mapstructure:"REPLY_TEXT" validate:"required"`

	DedupTTLSeconds int `mapstructure:"DEDUP_TTL_SECONDS" validate:"gt=0"`
	DedupMaxEntries int `mapstructure:"DEDUP_MAX_ENTRIES" validate:"gt=0"`

	DispatchWorkers   int `mapstructure:"DISPATCH_WORKERS" validate:"gt=0"`
	DispatchQueueSize int `mapstructure:"DISPATCH_QUEUE_SIZE" validate:"gt=0"`

	HTTPClientTimeoutSeconds int `mapstructure:"HTTP_CLIENT_TIMEOUT_SECONDS" validate:"gt=0"`
}

// Load reads configuration for the named service. Defaults cover everything
// except the provider credentials, which must come from the environment or
// the config file; validation fails fast on anything missing.
func Load(serviceName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("APP")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", 8000)
	v.SetDefault("VERIFY_TOKEN", "")
	v.SetDefault("ACCESS_TOKEN", "")
	v.SetDefault("APP_SECRET", "")
	v.SetDefault("GRAPH_API_VERSION", "v24.0")
	v.SetDefault("GRAPH_API_BASE_URL", "https://graph.facebook.com")
	v.SetDefault("REPLY_TEXT", "Got it ✅")
	v.SetDefault("DEDUP_TTL_SECONDS", 600)
	v.SetDefault("DEDUP_MAX_ENTRIES", 5000)
	v.SetDefault("DISPATCH_WORKERS", 4)
	v.SetDefault("DISPATCH_QUEUE_SIZE", 256)
	v.SetDefault("HTTP_CLIENT_TIMEOUT_SECONDS", 15)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Base configuration file ('config.defaults.yaml') not found; using defaults and environment variables for %s.", serviceName)
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
