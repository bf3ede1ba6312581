// Package appconfig loads the countdown service settings from the environment, an
// optional .env file and an optional YAML overlay.
package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/designjam/go/internal/competition/countdown"
	"github.com/mcdev12/designjam/go/internal/models"
)

// Config holds every setting of the countdown service.
type Config struct {
	API        APIConfig       `yaml:"api"`
	Countdown  CountdownConfig `yaml:"countdown"`
	NATS       NATSConfig      `yaml:"nats"`
	Feed       FeedConfig      `yaml:"feed"`
	LogLevel   string          `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	ConfigFile string          `env:"COUNTDOWN_CONFIG_FILE" yaml:"-"`
}

// APIConfig points at the competition REST API.
type APIConfig struct {
	BaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080" yaml:"base_url"`
	Token   string        `env:"API_TOKEN" yaml:"-"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s" yaml:"timeout"`
}

// CountdownConfig tunes the countdown engine.
type CountdownConfig struct {
	TickInterval            time.Duration     `env:"TICK_INTERVAL" envDefault:"1s" yaml:"tick_interval"`
	FetchRetryDelay         time.Duration     `env:"FETCH_RETRY_DELAY" envDefault:"500ms" yaml:"fetch_retry_delay"`
	FetchMaxRetries         uint              `env:"FETCH_MAX_RETRIES" envDefault:"1" yaml:"fetch_max_retries"`
	RefreshInterval         time.Duration     `env:"CONFIG_REFRESH_INTERVAL" envDefault:"0s" yaml:"refresh_interval"`
	LeaderboardPollInterval time.Duration     `env:"LEADERBOARD_POLL_INTERVAL" envDefault:"1m" yaml:"leaderboard_poll_interval"`
	Labels                  map[string]string `yaml:"labels"`
}

// NATSConfig enables cross-process invalidation. An empty URL disables it.
type NATSConfig struct {
	URL           string `env:"NATS_URL" yaml:"url"`
	SubjectPrefix string `env:"INVALIDATION_SUBJECT_PREFIX" envDefault:"competition.invalidate" yaml:"subject_prefix"`
}

// FeedConfig configures the live countdown HTTP feed.
type FeedConfig struct {
	Port           int           `env:"FEED_PORT" envDefault:"8085" yaml:"port"`
	AllowedOrigins []string      `env:"FEED_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*" yaml:"allowed_origins"`
	PingInterval   time.Duration `env:"FEED_PING_INTERVAL" envDefault:"30s" yaml:"ping_interval"`
}

// FieldError names the setting that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// Load reads .env (if present), the process environment and the YAML overlay named by
// COUNTDOWN_CONFIG_FILE, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Msg("no .env file found, using process environment")
		} else {
			log.Warn().Err(err).Msg("failed to load .env file")
		}
	}
	return parse(env.Options{})
}

// LoadFromMap is Load without the .env file, reading variables from environ instead of
// the process environment.
func LoadFromMap(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.ConfigFile != "" {
		if err := cfg.overlay(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overlay applies the keys present in a YAML file on top of the env values.
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &FieldError{Field: "API_BASE_URL", Message: fmt.Sprintf("must be an absolute URL (got: %q)", c.API.BaseURL)}
	}
	if c.API.Timeout <= 0 {
		return &FieldError{Field: "HTTP_TIMEOUT", Message: "must be positive"}
	}
	if c.Countdown.TickInterval <= 0 {
		return &FieldError{Field: "TICK_INTERVAL", Message: "must be positive"}
	}
	if c.Countdown.FetchRetryDelay <= 0 {
		return &FieldError{Field: "FETCH_RETRY_DELAY", Message: "must be positive"}
	}
	if c.Countdown.RefreshInterval < 0 {
		return &FieldError{Field: "CONFIG_REFRESH_INTERVAL", Message: "must not be negative"}
	}
	if c.Countdown.LeaderboardPollInterval < 0 {
		return &FieldError{Field: "LEADERBOARD_POLL_INTERVAL", Message: "must not be negative"}
	}
	for key := range c.Countdown.Labels {
		if !models.Phase(key).Valid() {
			return &FieldError{Field: "countdown.labels", Message: fmt.Sprintf("unknown phase %q", key)}
		}
	}
	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		return &FieldError{Field: "INVALIDATION_SUBJECT_PREFIX", Message: "required when NATS_URL is set"}
	}
	if c.Feed.Port < 1 || c.Feed.Port > 65535 {
		return &FieldError{Field: "FEED_PORT", Message: fmt.Sprintf("must be between 1 and 65535 (got: %d)", c.Feed.Port)}
	}
	if c.Feed.PingInterval <= 0 {
		return &FieldError{Field: "FEED_PING_INTERVAL", Message: "must be positive"}
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return &FieldError{Field: "LOG_LEVEL", Message: err.Error()}
	}
	return nil
}

// Level returns the zerolog level for LogLevel, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// EngineConfig converts the countdown settings for countdown.NewEngine.
func (c *Config) EngineConfig() countdown.Config {
	cfg := countdown.Config{
		TickInterval:            c.Countdown.TickInterval,
		FetchTimeout:            c.API.Timeout,
		RetryDelay:              c.Countdown.FetchRetryDelay,
		MaxRetries:              c.Countdown.FetchMaxRetries,
		RefreshInterval:         c.Countdown.RefreshInterval,
		LeaderboardPollInterval: c.Countdown.LeaderboardPollInterval,
	}
	if len(c.Countdown.Labels) > 0 {
		cfg.Labels = make(map[models.Phase]string, len(c.Countdown.Labels))
		for k, v := range c.Countdown.Labels {
			cfg.Labels[models.Phase(k)] = v
		}
	}
	return cfg
}

// FeedAddr is the listen address for the feed server.
func (c *Config) FeedAddr() string {
	return fmt.Sprintf(":%d", c.Feed.Port)
}
