// Package config loads the service configuration from the environment.
// A .env file is honoured when present.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string
	AppEnv   string
	LogLevel string

	DatabaseURL string

	Redis    RedisConfig
	Telegram TelegramConfig
	AI       AIConfig
	Media    MediaConfig

	JWTSecret string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TelegramConfig struct {
	BotToken      string
	SupportChatID int64
	WebhookSecret string
	APIEndpoint   string
	Timeout       time.Duration
	FileTimeout   time.Duration
}

type AIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxTokens       int
	HistoryWindow   int
	BusinessName    string
	BusinessContext string
}

type MediaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// Load reads .env (if any) and the process environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		AppEnv:      v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Telegram: TelegramConfig{
			BotToken:      v.GetString("TELEGRAM_BOT_TOKEN"),
			SupportChatID: v.GetInt64("TELEGRAM_SUPPORT_CHAT_ID"),
			WebhookSecret: v.GetString("TELEGRAM_WEBHOOK_SECRET"),
			APIEndpoint:   v.GetString("TELEGRAM_API_ENDPOINT"),
			Timeout:       v.GetDuration("OPERATOR_TIMEOUT"),
			FileTimeout:   v.GetDuration("ATTACHMENT_TIMEOUT"),
		},
		AI: AIConfig{
			APIKey:          v.GetString("OPENAI_API_KEY"),
			BaseURL:         v.GetString("OPENAI_BASE_URL"),
			Model:           v.GetString("OPENAI_MODEL"),
			Timeout:         v.GetDuration("AI_TIMEOUT"),
			MaxTokens:       v.GetInt("AI_MAX_TOKENS"),
			HistoryWindow:   v.GetInt("AI_HISTORY_WINDOW"),
			BusinessName:    v.GetString("BUSINESS_NAME"),
			BusinessContext: v.GetString("BUSINESS_CONTEXT"),
		},
		Media: MediaConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			PublicURL: strings.TrimRight(v.GetString("MINIO_PUBLIC_URL"), "/"),
		},
		JWTSecret: v.GetString("JWT_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TELEGRAM_API_ENDPOINT", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("OPERATOR_TIMEOUT", 10*time.Second)
	v.SetDefault("ATTACHMENT_TIMEOUT", 20*time.Second)
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_TIMEOUT", 15*time.Second)
	v.SetDefault("AI_MAX_TOKENS", 400)
	v.SetDefault("AI_HISTORY_WINDOW", 12)
	v.SetDefault("BUSINESS_NAME", "our studio")
	v.SetDefault("MINIO_BUCKET", "support-media")
}

// Validate checks that the keys without usable defaults are set.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Telegram.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.Telegram.SupportChatID == 0 {
		missing = append(missing, "TELEGRAM_SUPPORT_CHAT_ID")
	}
	if c.Telegram.WebhookSecret == "" {
		missing = append(missing, "TELEGRAM_WEBHOOK_SECRET")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required keys: %s", strings.Join(missing, ", "))
	}
	if c.AI.HistoryWindow <= 0 || c.AI.MaxTokens <= 0 {
		return errors.New("config: AI_HISTORY_WINDOW and AI_MAX_TOKENS must be positive")
	}
	return nil
}

// Development reports whether the service runs in development mode.
func (c *Config) Development() bool {
	return strings.EqualFold(c.AppEnv, "development")
}
