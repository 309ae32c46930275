// Package config loads application configuration from a YAML file and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the prefix for environment variable overrides.
// NOTIFY_SERVER__PORT=8080 sets server.port; a double underscore
// separates nesting levels so key names may contain underscores.
const envPrefix = "NOTIFY_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
	Auth          AuthConfig          `koanf:"auth"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	Migrate         bool          `koanf:"migrate"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// AuthConfig contains settings for validating platform-issued tokens.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	// ServiceToken guards the internal event intake endpoint.
	ServiceToken string `koanf:"service_token"`
}

// NotificationsConfig contains notification engine settings.
type NotificationsConfig struct {
	// BaseURL is the public site domain used to build absolute links in
	// messages and emails.
	BaseURL string      `koanf:"base_url"`
	Mail    MailConfig  `koanf:"mail"`
	Worker  WorkerCfg   `koanf:"worker"`
	Retry   RetryConfig `koanf:"retry"`
}

// MailConfig contains SMTP settings for outbound mail.
type MailConfig struct {
	Enabled      bool          `koanf:"enabled"`
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUser     string        `koanf:"smtp_user"`
	SMTPPassword string        `koanf:"smtp_password"`
	FromAddress  string        `koanf:"from_address"`
	SendTimeout  time.Duration `koanf:"send_timeout"`
	// SendsPerSecond throttles outbound SMTP calls. Zero disables throttling.
	SendsPerSecond float64 `koanf:"sends_per_second"`
}

// WorkerCfg contains mail worker settings.
type WorkerCfg struct {
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	NumWorkers   int           `koanf:"num_workers"`
}

// RetryConfig contains mail retry settings.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// Load reads configuration from the optional YAML file at path, then applies
// environment variable overrides, then validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := applyDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(key, envPrefix)
		key = strings.ReplaceAll(strings.ToLower(key), "__", ".")
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) error {
	defaults := map[string]interface{}{
		"server.host":                            "0.0.0.0",
		"server.port":                            "8080",
		"server.metrics_port":                    "9090",
		"server.read_timeout":                    "15s",
		"server.read_header_timeout":             "5s",
		"server.write_timeout":                   "30s",
		"server.idle_timeout":                    "60s",
		"database.max_open_conns":                10,
		"database.max_idle_conns":                2,
		"database.conn_max_lifetime":             "30m",
		"database.connect_timeout":               "30s",
		"database.connect_attempts":              5,
		"database.migrate":                       true,
		"log.level":                              "info",
		"log.format":                             "json",
		"cors.allowed_origins":                   []string{"*"},
		"notifications.mail.smtp_port":           587,
		"notifications.mail.send_timeout":        "30s",
		"notifications.worker.batch_size":        50,
		"notifications.worker.poll_interval":     "5s",
		"notifications.worker.num_workers":       2,
		"notifications.retry.max_attempts":       3,
		"notifications.retry.initial_backoff":    "1s",
		"notifications.retry.max_backoff":        "5m",
		"notifications.retry.backoff_multiplier": 2.0,
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Notifications.BaseURL == "" {
		return fmt.Errorf("notifications.base_url is required")
	}
	if c.Notifications.Mail.Enabled && c.Notifications.Mail.SMTPHost == "" {
		return fmt.Errorf("notifications.mail.smtp_host is required when mail is enabled")
	}
	return nil
}
