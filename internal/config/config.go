// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // schedule.timezone must resolve on minimal images

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"telegram-horoscope-bot/internal/domain"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token   string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	Workers int    `yaml:"workers"` // polling workers
	// Per-user limits, enforced only when redis is configured.
	CommandLimit  int `yaml:"command_limit"`  // commands per minute
	CallbackLimit int `yaml:"callback_limit"` // button taps per minute
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"` // trace|debug|info|warn|error
	Format   string `yaml:"format"`                // json|console
	Sampling bool   `yaml:"sampling"`              // enable sampling in prod
}

type AdminConfig struct {
	Port int `yaml:"port" env:"ADMIN_PORT"` // 0 disables /health and /metrics
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DATABASE_DRIVER"` // sqlite | postgres
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"` // empty disables redis
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // conversation state ttl
}

type AIConfig struct {
	Provider        string        `yaml:"provider" env:"AI_PROVIDER"` // openai | gemini | noop
	APIKey          string        `yaml:"api_key" env:"AI_API_KEY"`
	BaseURL         string        `yaml:"base_url" env:"AI_BASE_URL"`
	Model           string        `yaml:"model" env:"AI_MODEL"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent AI calls
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`

	// set when APIKey came from GIGACHAT_CREDENTIALS
	gigaChatKey bool
}

type ScheduleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DailyAt         string        `yaml:"daily_at"` // HH:MM
	Timezone        string        `yaml:"timezone"`
	Concurrency     int           `yaml:"concurrency"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

type LocaleConfig struct {
	Lang string `yaml:"lang"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Locale   LocaleConfig   `yaml:"locale"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file (optional when it does not exist), loads .env,
// applies environment overrides and defaults, and validates. Any validation
// failure wraps domain.ErrConfiguration.
func LoadConfig(configPath string, dev bool) (*Config, error) {
	var cfg Config
	cfg.Schedule.Enabled = true

	b, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w: %w", domain.ErrConfiguration, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w: %w", domain.ErrConfiguration, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w: %w", domain.ErrConfiguration, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w: %w", domain.ErrConfiguration, err)
	}
	// Legacy variable name from earlier deployments.
	if cfg.AI.APIKey == "" {
		if key := os.Getenv("GIGACHAT_CREDENTIALS"); key != "" {
			cfg.AI.APIKey = key
			cfg.AI.gigaChatKey = true
		}
	}

	cfg.Runtime.Dev = dev
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.CommandLimit <= 0 {
		cfg.Bot.CommandLimit = 20
	}
	if cfg.Bot.CallbackLimit <= 0 {
		cfg.Bot.CallbackLimit = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.URL == "" {
		cfg.Database.URL = "file:horoscope_bot.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
		if cfg.Runtime.Dev && cfg.AI.APIKey == "" {
			cfg.AI.Provider = "noop"
		}
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.Model = "gemini-2.0-flash"
		default:
			cfg.AI.Model = "gpt-4o-mini"
		}
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 4
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60 * time.Second
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}

	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = "09:00"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Europe/Moscow"
	}
	if cfg.Schedule.Concurrency <= 0 {
		cfg.Schedule.Concurrency = 4
	}
	if cfg.Schedule.DeliveryTimeout <= 0 {
		cfg.Schedule.DeliveryTimeout = 15 * time.Second
	}
	if cfg.Locale.Lang == "" {
		cfg.Locale.Lang = "ru"
	}
}

// Validate checks required secrets and value ranges.
func (c *Config) Validate() error {
	var missing []string
	// dev mode without a token runs the logging bot adapter
	if c.Bot.Token == "" && !c.Runtime.Dev {
		missing = append(missing, "bot.token (TELEGRAM_BOT_TOKEN)")
	}
	if c.AI.Provider != "noop" && c.AI.APIKey == "" {
		missing = append(missing, "ai.api_key (AI_API_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported database.driver %q", domain.ErrConfiguration, c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("%w: database.url is required for postgres", domain.ErrConfiguration)
	}

	switch c.AI.Provider {
	case "openai", "gemini":
	case "noop":
		if !c.Runtime.Dev {
			return fmt.Errorf("%w: ai.provider noop is only allowed in dev mode", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unsupported ai.provider %q", domain.ErrConfiguration, c.AI.Provider)
	}

	// A GigaChat key is only usable through an OpenAI-compatible gateway; never send it to api.openai.com.
	if c.AI.gigaChatKey && (c.AI.Provider != "openai" || c.AI.BaseURL == "") {
		return fmt.Errorf("%w: GIGACHAT_CREDENTIALS requires ai.provider openai and ai.base_url (AI_BASE_URL) of a GigaChat gateway", domain.ErrConfiguration)
	}

	if _, _, err := c.Schedule.Clock(); err != nil {
		return err
	}
	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	return nil
}

// Clock parses DailyAt into hour and minute.
func (s ScheduleConfig) Clock() (hour, minute int, err error) {
	t, perr := time.Parse("15:04", strings.TrimSpace(s.DailyAt))
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: schedule.daily_at %q: %w", domain.ErrConfiguration, s.DailyAt, perr)
	}
	return t.Hour(), t.Minute(), nil
}

// Describe renders the delivery time for user-facing texts, e.g. "09:00 (Europe/Moscow)".
// It is empty when the daily broadcast is disabled.
func (s ScheduleConfig) Describe() string {
	if !s.Enabled {
		return ""
	}
	return fmt.Sprintf("%s (%s)", strings.TrimSpace(s.DailyAt), s.Timezone)
}

func (s ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule.timezone %q: %w", domain.ErrConfiguration, s.Timezone, err)
	}
	return loc, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Minute
	}
	return d
}
