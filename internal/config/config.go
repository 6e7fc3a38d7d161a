package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported event bus drivers.
const (
	BusDriverRedis  = "redis"
	BusDriverNATS   = "nats"
	BusDriverMemory = "memory"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName  string
	AppEnv   string
	AppPort  string
	LogLevel string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	BusDriver   string
	BusTopic    string
	BusGroup    string
	BusConsumer string
	BusMaxLen   int64

	JWTSecret string

	AIProvider          string
	AIModel             string
	AIPromptFile        string
	AITimeout           time.Duration
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	AzureOpenAIEndpoint string
	AzureOpenAIVersion  string
	AzureOpenAIDeploy   string
	AnthropicAPIKey     string
	AnthropicBaseURL    string

	RetrySchedule string
	RetryMaxCount int

	AlertProvider       string
	AlertSlackWebhook   string
	AlertDiscordWebhook string
	AlertRatePerSecond  float64

	SubmissionRateLimit  int
	SubmissionRateWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Essay API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("bus.driver", BusDriverRedis)
	v.SetDefault("bus.topic", "api.failures")
	v.SetDefault("bus.group", "notification-group")
	v.SetDefault("bus.max_len", 100000)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.timeout", "30s")
	v.SetDefault("azure_openai.api_version", "2024-06-01")
	v.SetDefault("retry.schedule", "0 * * * *")
	v.SetDefault("retry.max_count", 3)
	v.SetDefault("alert.provider", "log")
	v.SetDefault("alert.rate_per_second", 1.0)
	v.SetDefault("submission.rate_limit", 30)
	v.SetDefault("submission.rate_window", "1m")

	aiTimeout, err := time.ParseDuration(v.GetString("ai.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai timeout: %w", err)
	}

	rateWindow, err := time.ParseDuration(v.GetString("submission.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid submission rate window: %w", err)
	}

	cfg := Config{
		AppName:  v.GetString("app.name"),
		AppEnv:   v.GetString("app.env"),
		AppPort:  v.GetString("app.port"),
		LogLevel: strings.ToLower(v.GetString("log.level")),

		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		NATSURL:     v.GetString("nats.url"),

		BusDriver:   strings.ToLower(v.GetString("bus.driver")),
		BusTopic:    v.GetString("bus.topic"),
		BusGroup:    v.GetString("bus.group"),
		BusConsumer: v.GetString("bus.consumer"),
		BusMaxLen:   v.GetInt64("bus.max_len"),

		JWTSecret: v.GetString("jwt.secret"),

		AIProvider:          strings.ToLower(v.GetString("ai.provider")),
		AIModel:             v.GetString("ai.model"),
		AIPromptFile:        v.GetString("ai.prompt_file"),
		AITimeout:           aiTimeout,
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIBaseURL:       v.GetString("openai_base_url"),
		AzureOpenAIEndpoint: v.GetString("azure_openai.endpoint"),
		AzureOpenAIVersion:  v.GetString("azure_openai.api_version"),
		AzureOpenAIDeploy:   v.GetString("azure_openai.deployment"),
		AnthropicAPIKey:     v.GetString("anthropic_api_key"),
		AnthropicBaseURL:    v.GetString("anthropic_base_url"),

		RetrySchedule: v.GetString("retry.schedule"),
		RetryMaxCount: v.GetInt("retry.max_count"),

		AlertProvider:       strings.ToLower(v.GetString("alert.provider")),
		AlertSlackWebhook:   v.GetString("alert.slack_webhook_url"),
		AlertDiscordWebhook: v.GetString("alert.discord_webhook_url"),
		AlertRatePerSecond:  v.GetFloat64("alert.rate_per_second"),

		SubmissionRateLimit:  v.GetInt("submission.rate_limit"),
		SubmissionRateWindow: rateWindow,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}

	switch c.BusDriver {
	case BusDriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis url is required for the redis event bus")
		}
	case BusDriverNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("nats url is required for the nats event bus")
		}
	case BusDriverMemory:
	default:
		return fmt.Errorf("unknown event bus driver %q", c.BusDriver)
	}

	if c.RetryMaxCount <= 0 {
		return fmt.Errorf("retry max count must be positive")
	}

	return nil
}
