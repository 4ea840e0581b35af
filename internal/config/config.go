// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingToken is returned by RequireDiscord when no bot token is configured.
var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`

	StorageDriver  string        `env:"STORAGE_DRIVER" envDefault:"json"`
	StoragePath    string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	ConfigCacheTTL time.Duration `env:"CONFIG_CACHE_TTL" envDefault:"30s"`

	AIProvider       string        `env:"AI_PROVIDER" envDefault:"pollinations"`
	AIModel          string        `env:"AI_MODEL"`
	AIBaseURL        string        `env:"AI_BASE_URL"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	AITimeout        time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	AIMaxPromptChars int           `env:"AI_MAX_PROMPT_CHARS" envDefault:"8000"`

	RoleGrantRPS float64 `env:"ROLE_GRANT_RPS" envDefault:"5"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9108"`
}

// New loads .env (if any) and parses the process environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.AIMaxPromptChars < 0 {
		cfg.AIMaxPromptChars = 0
	}
	return &cfg, nil
}

// RequireDiscord validates the fields only the bot process needs.
func (c *Config) RequireDiscord() error {
	if c.DiscordToken == "" {
		return ErrMissingToken
	}
	return nil
}
