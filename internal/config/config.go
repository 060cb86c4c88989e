package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"trendscope-pipeline/internal/pkg/logger"
)

type Config struct {
	Server   ServerConfig
	Log      logger.LogConfig
	Slack    SlackConfig
	Redis    RedisConfig
	News     NewsConfig
	Model    ModelConfig
	Archive  ArchiveConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type SlackConfig struct {
	SigningSecret string
	BotToken      string
	WorkspaceID   string
	RateLimit     int
	APIBaseURL    string
	Timeout       time.Duration
	PostDelay     time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type NewsConfig struct {
	APIKey  string
	BaseURL string
	Lang    string
	Country string
	Timeout time.Duration
}

type ModelConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	Timeout     time.Duration
}

type ArchiveConfig struct {
	BaseURL      string
	Timeout      time.Duration
	RelatedLimit int
}

type PipelineConfig struct {
	TaxonomyTTL     time.Duration
	RelatedPostsTTL time.Duration
	RateLimitTTL    time.Duration
}

// Load reads configuration from .env (when present) and the environment.
func Load() (*Config, error) {
	// A missing .env is fine in production; env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Log: logger.LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Format:   getEnv("LOG_FORMAT", "json"),
			Output:   getEnv("LOG_OUTPUT", "stdout"),
			FilePath: getEnv("LOG_FILE", "trendscope.log"),
		},
		Slack: SlackConfig{
			SigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
			BotToken:      os.Getenv("SLACK_BOT_TOKEN"),
			WorkspaceID:   os.Getenv("SLACK_WORKSPACE_ID"),
			APIBaseURL:    getEnv("SLACK_API_BASE_URL", "https://slack.com/api"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		News: NewsConfig{
			APIKey:  os.Getenv("NEWS_API_KEY"),
			BaseURL: getEnv("NEWS_API_BASE_URL", "https://gnews.io/api/v4"),
			Lang:    getEnv("NEWS_LANG", "en"),
			Country: getEnv("NEWS_COUNTRY", "us"),
		},
		Model: ModelConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Archive: ArchiveConfig{
			BaseURL: os.Getenv("ARCHIVE_API_URL"),
		},
	}

	var err error
	if cfg.Log.MaxSizeMB, err = getEnvInt("LOG_MAX_SIZE_MB", 100); err != nil {
		return nil, err
	}
	if cfg.Log.MaxBackups, err = getEnvInt("LOG_MAX_BACKUPS", 3); err != nil {
		return nil, err
	}
	if cfg.Log.MaxAgeDays, err = getEnvInt("LOG_MAX_AGE_DAYS", 28); err != nil {
		return nil, err
	}
	if cfg.Slack.RateLimit, err = getEnvInt("SLACK_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.Slack.Timeout, err = getEnvSeconds("SLACK_TIMEOUT_SECONDS", 15); err != nil {
		return nil, err
	}
	if cfg.Slack.PostDelay, err = getEnvMillis("SLACK_POST_DELAY_MS", 1000); err != nil {
		return nil, err
	}
	if cfg.Redis.PoolSize, err = getEnvInt("REDIS_POOL_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.Redis.DialTimeout, err = getEnvSeconds("REDIS_DIAL_TIMEOUT_SECONDS", 5); err != nil {
		return nil, err
	}
	if cfg.Redis.ReadTimeout, err = getEnvSeconds("REDIS_READ_TIMEOUT_SECONDS", 3); err != nil {
		return nil, err
	}
	if cfg.Redis.WriteTimeout, err = getEnvSeconds("REDIS_WRITE_TIMEOUT_SECONDS", 3); err != nil {
		return nil, err
	}
	if cfg.News.Timeout, err = getEnvSeconds("NEWS_TIMEOUT_SECONDS", 15); err != nil {
		return nil, err
	}
	if cfg.Model.MaxTokens, err = getEnvInt("GEMINI_MAX_TOKENS", 8192); err != nil {
		return nil, err
	}
	if cfg.Model.MaxRetries, err = getEnvInt("GEMINI_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.Model.Timeout, err = getEnvSeconds("GEMINI_TIMEOUT_SECONDS", 60); err != nil {
		return nil, err
	}
	if cfg.Model.Temperature, err = getEnvFloat("GEMINI_TEMPERATURE", 0.3); err != nil {
		return nil, err
	}
	if cfg.Archive.Timeout, err = getEnvSeconds("ARCHIVE_TIMEOUT_SECONDS", 15); err != nil {
		return nil, err
	}
	if cfg.Archive.RelatedLimit, err = getEnvInt("ARCHIVE_RELATED_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.Pipeline.TaxonomyTTL, err = getEnvSeconds("TAXONOMY_TTL_SECONDS", 24*3600); err != nil {
		return nil, err
	}
	if cfg.Pipeline.RelatedPostsTTL, err = getEnvSeconds("RELATED_POSTS_TTL_SECONDS", 3600); err != nil {
		return nil, err
	}
	if cfg.Pipeline.RateLimitTTL, err = getEnvSeconds("RATE_LIMIT_TTL_SECONDS", 3600); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateServer checks everything the webhook server needs up front.
func (c *Config) ValidateServer() error {
	if c.Slack.SigningSecret == "" {
		return fmt.Errorf("SLACK_SIGNING_SECRET is required")
	}
	if c.Slack.BotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	return c.ValidatePipeline()
}

// ValidatePipeline checks what any pipeline run needs, including the CLI.
func (c *Config) ValidatePipeline() error {
	if c.News.APIKey == "" {
		return fmt.Errorf("NEWS_API_KEY is required")
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("ARCHIVE_API_URL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvSeconds(key string, fallback int) (time.Duration, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func getEnvMillis(key string, fallback int) (time.Duration, error) {
	n, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}
