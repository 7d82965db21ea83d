package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is read from the working directory when present.
const DefaultFile = "dashboard.yaml"

const envPrefix = "DASH_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	RunStore  RunStoreConfig  `koanf:"runstore"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// UpstreamConfig configures the outbound calls of the stage executors.
type UpstreamConfig struct {
	Timeout     time.Duration `koanf:"timeout"`
	DenyPrivate bool          `koanf:"deny_private"` // refuse loopback/private upstream addresses

	RandomUser    ServiceConfig `koanf:"randomuser"`
	RestCountries ServiceConfig `koanf:"restcountries"`
	CountryLayer  ServiceConfig `koanf:"countrylayer"`
	ExchangeRate  ServiceConfig `koanf:"exchangerate"`
	NewsAPI       ServiceConfig `koanf:"newsapi"`
}

type ServiceConfig struct {
	BaseURL string `koanf:"base_url"` // empty means the public endpoint
	APIKey  string `koanf:"api_key"`
}

type RunStoreConfig struct {
	Type   string        `koanf:"type"` // memory, sqlite, valkey
	TTL    time.Duration `koanf:"ttl"`
	SQLite SQLiteConfig  `koanf:"sqlite"`
	Valkey ValkeyConfig  `koanf:"valkey"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ValkeyConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
}

type TelemetryConfig struct {
	Tracing     bool    `koanf:"tracing"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// legacyKeyEnv maps upstream services to the key variables older deployments set.
var legacyKeyEnv = map[string]string{
	"countrylayer": "COUNTRYLAYER_APIKEY",
	"exchangerate": "EXCHANGERATEAPI_APIKEY",
	"newsapi":      "NEWSAPI_APIKEY",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultFile (if present) and DASH_* environment variables.
func Load() (*Config, error) {
	return LoadFile(DefaultFile)
}

// LoadFile reads path (if present) and DASH_* environment variables, which
// override the file. Nested keys use "__": DASH_RUNSTORE__TYPE=sqlite.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	defaults := map[string]any{
		"server.port":             3000,
		"server.request_timeout":  "30s",
		"server.shutdown_timeout": "10s",
		"upstream.timeout":        "10s",
		"runstore.type":           "memory",
		"runstore.ttl":            "15m",
		"runstore.sqlite.path":    "dashboard.db",
		"telemetry.service_name":  "polyglot-dashboard",
		"telemetry.sample_ratio":  1.0,
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	services := map[string]*ServiceConfig{
		"randomuser":    &cfg.Upstream.RandomUser,
		"restcountries": &cfg.Upstream.RestCountries,
		"countrylayer":  &cfg.Upstream.CountryLayer,
		"exchangerate":  &cfg.Upstream.ExchangeRate,
		"newsapi":       &cfg.Upstream.NewsAPI,
	}
	for name, svc := range services {
		svc.APIKey = substituteEnvVars(svc.APIKey)
		if svc.APIKey == "" {
			if legacy, ok := legacyKeyEnv[name]; ok {
				svc.APIKey = os.Getenv(legacy)
			}
		}
	}
	cfg.RunStore.Valkey.Password = substituteEnvVars(cfg.RunStore.Valkey.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late, at first use.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.RunStore.TTL <= 0 {
		return fmt.Errorf("runstore.ttl must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio %v must be between 0 and 1", c.Telemetry.SampleRatio)
	}
	switch c.RunStore.Type {
	case "memory":
	case "sqlite":
		if c.RunStore.SQLite.Path == "" {
			return fmt.Errorf("runstore.sqlite.path is required for the sqlite run store")
		}
	case "valkey":
		if c.RunStore.Valkey.Addr == "" {
			return fmt.Errorf("runstore.valkey.addr is required for the valkey run store")
		}
	default:
		return fmt.Errorf("unknown runstore.type %q (must be memory, sqlite or valkey)", c.RunStore.Type)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
