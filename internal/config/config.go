// Package config loads the wiki configuration from a YAML file. Environment
// variables in the form ${VAR_NAME} are expanded before parsing, and a .env
// file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete wiki configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Wiki     WikiConfig     `yaml:"wiki"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig holds the HTTP listener and session settings.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	SessionKey    string `yaml:"session_key"`
	SecureCookies bool   `yaml:"secure_cookies"`

	ReadTimeout     time.Duration `yaml:"-"`
	WriteTimeout    time.Duration `yaml:"-"`
	IdleTimeout     time.Duration `yaml:"-"`
	ShutdownTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ReadTimeoutRaw     string `yaml:"read_timeout"`
	WriteTimeoutRaw    string `yaml:"write_timeout"`
	IdleTimeoutRaw     string `yaml:"idle_timeout"`
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the SQL driver and data source.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// WikiConfig holds the page model and markup settings.
type WikiConfig struct {
	Variant         string `yaml:"variant"` // versioned or simple
	Markup          string `yaml:"markup"`  // markdown or org
	StartPage       string `yaml:"start_page"`
	MaxSaveAttempts int    `yaml:"max_save_attempts"`
}

// CacheConfig configures the rendered HTML cache.
type CacheConfig struct {
	Backend    string      `yaml:"backend"` // memory, redis or none
	MaxEntries int         `yaml:"max_entries"`
	Redis      RedisConfig `yaml:"redis"`

	TTL    time.Duration `yaml:"-"`
	TTLRaw string        `yaml:"ttl"`
}

// RedisConfig holds the Redis connection used by the redis cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8080",
			ReadTimeoutRaw:     "10s",
			WriteTimeoutRaw:    "30s",
			IdleTimeoutRaw:     "120s",
			ShutdownTimeoutRaw: "10s",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "camelwiki.db",
		},
		Wiki: WikiConfig{
			Variant:         "versioned",
			Markup:          "markdown",
			StartPage:       "StartPage",
			MaxSaveAttempts: 5,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			MaxEntries: 1024,
			TTLRaw:     "1h",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "camelwiki:",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
	}
}

// Load reads the configuration. An empty path yields the defaults with
// environment overrides only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if key := os.Getenv("CAMELWIKI_SESSION_KEY"); key != "" && cfg.Server.SessionKey == "" {
		cfg.Server.SessionKey = key
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_timeout", cfg.Server.ReadTimeoutRaw, &cfg.Server.ReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeoutRaw, &cfg.Server.WriteTimeout},
		{"server.idle_timeout", cfg.Server.IdleTimeoutRaw, &cfg.Server.IdleTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"cache.ttl", cfg.Cache.TTLRaw, &cfg.Cache.TTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks the configuration. It runs after command-line overrides
// are applied.
func (c *Config) Validate() error {
	return validation.Errors{
		"server":   c.Server.validate(),
		"database": c.Database.validate(),
		"wiki":     c.Wiki.validate(),
		"cache":    c.Cache.validate(),
		"logging":  c.Logging.validate(),
		"tracing":  c.Tracing.validate(),
	}.Filter()
}

func (s ServerConfig) validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.SessionKey,
			validation.Required.Error("is required (set server.session_key or CAMELWIKI_SESSION_KEY)"),
			validation.Length(32, 0),
		),
	)
}

func (d DatabaseConfig) validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (w WikiConfig) validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Variant, validation.Required, validation.In("versioned", "simple")),
		validation.Field(&w.Markup, validation.Required, validation.In("markdown", "org")),
		validation.Field(&w.StartPage, validation.Required),
		validation.Field(&w.MaxSaveAttempts, validation.Required, validation.Min(1)),
	)
}

func (c CacheConfig) validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In("memory", "redis", "none")),
		validation.Field(&c.MaxEntries, validation.Min(0)),
		validation.Field(&c.Redis, validation.By(func(any) error {
			if c.Backend == "redis" && c.Redis.Addr == "" {
				return errors.New("addr is required for the redis backend")
			}
			return nil
		})),
	)
}

func (l LoggingConfig) validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled")),
		validation.Field(&l.Format, validation.In("console", "json")),
	)
}

func (t TracingConfig) validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.SampleRate, validation.Min(0.0), validation.Max(1.0)),
	)
}
