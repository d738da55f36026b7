// Package config loads layered configuration: built-in defaults, then an
// optional YAML file, then EVENTPILOT_-prefixed environment variables.
// Required fields are validated once at startup; nothing else in the codebase
// reads the environment directly.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/eventpilot/be-approvals/internal/logging"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces all environment overrides. A double underscore
// separates nesting levels so keys may themselves contain underscores,
// e.g. EVENTPILOT_PUBLIC__BASE_URL -> public.base_url.
const envPrefix = "EVENTPILOT_"

// defaultConfigPaths are searched in order; the first existing file wins.
var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eventpilot/config.yaml",
}

// Expiry policies for unanswered approval requests past their due date.
const (
	ExpiryAllowLate     = "allow_late"
	ExpiryRejectExpired = "reject_expired"
)

// Config is the root configuration tree.
type Config struct {
	Service   ServiceConfig   `koanf:"service"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	NATS      NATSConfig      `koanf:"nats"`
	Stripe    StripeConfig    `koanf:"stripe"`
	Public    PublicConfig    `koanf:"public"`
	Approvals ApprovalsConfig `koanf:"approvals"`
	Logging   logging.Config  `koanf:"logging"`
}

// ServiceConfig identifies the running service in logs.
type ServiceConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`

	// Rate limit applied to the public hashed-link surface only. Approval
	// and payment hashes are bearer credentials, so the unauthenticated
	// routes are throttled per client IP.
	PublicRateLimit  int           `koanf:"public_rate_limit"`
	PublicRateWindow time.Duration `koanf:"public_rate_window"`
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	User              string        `koanf:"user"`
	Password          string        `koanf:"password"`
	Database          string        `koanf:"database"`
	SSLMode           string        `koanf:"ssl_mode"`
	MaxConns          int32         `koanf:"max_conns"`
	MinConns          int32         `koanf:"min_conns"`
	MaxConnLifetime   time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `koanf:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `koanf:"health_check_period"`
}

// NATSConfig controls the notification publisher. Disabled means approval
// operations run without emitting notification events.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// StripeConfig holds payment gateway credentials.
type StripeConfig struct {
	Enabled   bool   `koanf:"enabled"`
	SecretKey string `koanf:"secret_key"`
}

// PublicConfig holds the externally reachable site base used to build
// approval and payment links.
type PublicConfig struct {
	BaseURL string `koanf:"base_url"`
}

// ApprovalsConfig holds workflow policy knobs.
type ApprovalsConfig struct {
	// ExpiryPolicy decides whether a request past its due date is still
	// resolvable and approvable: allow_late or reject_expired.
	ExpiryPolicy string `koanf:"expiry_policy"`
}

func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "be-approvals",
			Version:     "dev",
			Environment: "development",
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			RequestTimeout:   30 * time.Second,
			ShutdownTimeout:  10 * time.Second,
			CORSOrigins:      []string{"*"},
			PublicRateLimit:  60,
			PublicRateWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Host:              "localhost",
			Port:              5432,
			User:              "eventpilot",
			Database:          "eventpilot",
			SSLMode:           "prefer",
			MaxConns:          10,
			MinConns:          2,
			MaxConnLifetime:   time.Hour,
			MaxConnIdleTime:   30 * time.Minute,
			HealthCheckPeriod: time.Minute,
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "notifications.approvals",
		},
		Stripe: StripeConfig{
			Enabled: true,
		},
		Public: PublicConfig{
			BaseURL: "",
		},
		Approvals: ApprovalsConfig{
			ExpiryPolicy: ExpiryAllowLate,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, file and environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(key), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range defaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks required fields and value ranges. Called once at startup so
// misconfiguration fails the process instead of a request.
func (c *Config) Validate() error {
	if c.Public.BaseURL == "" {
		return fmt.Errorf("public.base_url is required (it anchors approval and payment links)")
	}
	u, err := url.Parse(c.Public.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("public.base_url must be an absolute URL, got %q", c.Public.BaseURL)
	}

	if c.Stripe.Enabled && c.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe.secret_key is required when stripe.enabled is true")
	}

	switch c.Approvals.ExpiryPolicy {
	case ExpiryAllowLate, ExpiryRejectExpired:
	default:
		return fmt.Errorf("approvals.expiry_policy must be %q or %q, got %q",
			ExpiryAllowLate, ExpiryRejectExpired, c.Approvals.ExpiryPolicy)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
		return fmt.Errorf("database.host, database.user and database.database are required")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled is true")
	}

	return nil
}

// PublicURL joins the configured base with a path, normalizing slashes.
func (c *Config) PublicURL(path string) string {
	return strings.TrimRight(c.Public.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
