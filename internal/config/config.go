package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/aretw0/retrofx/pkg/persistence/middleware"
	"github.com/aretw0/retrofx/pkg/selection"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "retrofx.yaml"

// Config holds every runtime setting. Sources are applied in order:
// defaults, YAML file, .env file, environment. Command-line flags go on top.
type Config struct {
	Port           int           `yaml:"port" env:"RETROFX_PORT"`
	ServiceURL     string        `yaml:"service_url" env:"RETROFX_SERVICE_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"RETROFX_REQUEST_TIMEOUT"`
	ViewportWidth  int           `yaml:"viewport_width" env:"RETROFX_VIEWPORT_WIDTH"`
	ParamPolicy    string        `yaml:"param_policy" env:"RETROFX_PARAM_POLICY"`

	BreakerFailures int           `yaml:"breaker_failures" env:"RETROFX_BREAKER_FAILURES"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" env:"RETROFX_BREAKER_COOLDOWN"`

	RedisAddr     string        `yaml:"redis_addr" env:"RETROFX_REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"RETROFX_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"RETROFX_REDIS_DB"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"RETROFX_SESSION_TTL"`

	// EncryptionKey seals stored snapshots when set (base64, 32 bytes).
	EncryptionKey          string   `yaml:"encryption_key" env:"RETROFX_ENCRYPTION_KEY"`
	EncryptionFallbackKeys []string `yaml:"encryption_fallback_keys" env:"RETROFX_ENCRYPTION_FALLBACK_KEYS"`

	LogLevel  string `yaml:"log_level" env:"RETROFX_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"RETROFX_LOG_FORMAT"`

	MetricsEnabled bool `yaml:"metrics_enabled" env:"RETROFX_METRICS_ENABLED"`
	MetricsPort    int  `yaml:"metrics_port" env:"RETROFX_METRICS_PORT"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:            8080,
		ServiceURL:      "http://localhost:5000",
		RequestTimeout:  30 * time.Second,
		ViewportWidth:   1024,
		ParamPolicy:     "clamp",
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
		SessionTTL:      24 * time.Hour,
		LogLevel:        "info",
		LogFormat:       "text",
		MetricsEnabled:  true,
		MetricsPort:     9090,
	}
}

// Load builds the configuration. An explicit path must exist; without one,
// DefaultFile is used only if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		if err := cfg.loadYAML(file); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		errs = append(errs, fmt.Errorf("metrics_port must be between 1 and 65535, got %d", c.MetricsPort))
	}
	if u, err := url.Parse(c.ServiceURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("service_url must be an absolute http(s) URL, got %q", c.ServiceURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.ViewportWidth < 0 {
		errs = append(errs, errors.New("viewport_width must not be negative"))
	}
	if _, err := selection.ParsePolicy(c.ParamPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.BreakerFailures <= 0 {
		errs = append(errs, errors.New("breaker_failures must be positive"))
	}
	if c.EncryptionKey != "" {
		if _, err := c.Encryption(); err != nil {
			errs = append(errs, fmt.Errorf("encryption_key: %w", err))
		}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Policy returns the parsed parameter policy.
func (c *Config) Policy() selection.Policy {
	p, _ := selection.ParsePolicy(c.ParamPolicy)
	return p
}

// Encryption returns the parsed at-rest encryption keys.
func (c *Config) Encryption() (middleware.EncryptionConfig, error) {
	return middleware.ParseKeys(c.EncryptionKey, c.EncryptionFallbackKeys...)
}
