package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override file settings.
// AGENTGATE_SERVER__PORT=9000 sets server.port.
const EnvPrefix = "AGENTGATE_"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Metadata MetadataConfig `koanf:"metadata"`
	Storage  StorageConfig  `koanf:"storage"`
	Session  SessionConfig  `koanf:"session"`
	LLM      LLMConfig      `koanf:"llm"`
	Embedder EmbedderConfig `koanf:"embedder"`
	Auth     AuthConfig     `koanf:"auth"`
	Plugins  PluginsConfig  `koanf:"plugins"`
	Tracing  TracingConfig  `koanf:"tracing"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// MetadataConfig points at the project metadata file the status route reports.
type MetadataConfig struct {
	Path string `koanf:"path"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, postgres, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
	// Database is the generic database configuration for multi-dialect support
	Database DatabaseConfig `koanf:"database"`
	// RecordTimeout bounds a single interaction write.
	RecordTimeout time.Duration `koanf:"record_timeout"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// DatabaseConfig is the generic database configuration supporting multiple dialects.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite, postgres
	DSN    string `koanf:"dsn"`    // Data source name / connection string
}

type SessionConfig struct {
	IdleTTL       time.Duration `koanf:"idle_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	// HistoryWindow is how many history entries are sent to the LLM.
	HistoryWindow int `koanf:"history_window"`
	// RecallK is how many episodic memories are recalled per turn.
	RecallK int `koanf:"recall_k"`
}

type LLMConfig struct {
	Type        string  `koanf:"type"` // openai, dummy
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"` // Custom API endpoint
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
	Preamble    string  `koanf:"preamble"`
}

type EmbedderConfig struct {
	Type       string `koanf:"type"` // openai, dummy
	APIKey     string `koanf:"api_key"`
	BaseURL    string `koanf:"base_url"`
	Model      string `koanf:"model"`
	Dimensions int    `koanf:"dimensions"`
}

type AuthConfig struct {
	APIKeys []APIKeyConfig `koanf:"api_keys"`

	// PolicyFile replaces the built-in rego authorization policy.
	PolicyFile string `koanf:"policy_file"`
}

// APIKeyConfig binds a hashed key to a user and the permissions they hold.
type APIKeyConfig struct {
	KeyHash     string              `koanf:"key_hash"`
	UserID      string              `koanf:"user_id"`
	Description string              `koanf:"description"`
	Permissions map[string][]string `koanf:"permissions"` // resource -> permissions; empty grants everything
}

type PluginsConfig struct {
	Disabled []string `koanf:"disabled"`
}

type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.port":            1865,
	"server.request_timeout": "60s",
	"metadata.path":          "pyproject.toml",
	"storage.type":           "sqlite",
	"storage.sqlite.path":    "./data/agentgate.db",
	"storage.record_timeout": "5s",
	"session.idle_ttl":       "30m",
	"session.sweep_interval": "1m",
	"session.history_window": 10,
	"session.recall_k":       3,
	"llm.type":               "dummy",
	"llm.temperature":        0.7,
	"embedder.type":          "dummy",
	"embedder.dimensions":    256,
	"tracing.service_name":   "agentgate",
}

// Load reads path (a missing file is fine), applies AGENTGATE_ environment
// overrides and fills in defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	// Try to load from the config file first
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets
	cfg.LLM.APIKey = substituteEnvVars(cfg.LLM.APIKey)
	cfg.Embedder.APIKey = substituteEnvVars(cfg.Embedder.APIKey)
	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Type {
	case "sqlite", "postgres", "memory", "none":
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	switch c.LLM.Type {
	case "openai", "dummy":
	default:
		return fmt.Errorf("unknown llm.type %q", c.LLM.Type)
	}
	switch c.Embedder.Type {
	case "openai", "dummy":
	default:
		return fmt.Errorf("unknown embedder.type %q", c.Embedder.Type)
	}
	if c.Embedder.Dimensions <= 0 {
		return fmt.Errorf("embedder.dimensions must be positive")
	}
	for i, key := range c.Auth.APIKeys {
		if key.KeyHash == "" {
			return fmt.Errorf("auth.api_keys[%d]: key_hash required", i)
		}
		if key.UserID == "" {
			return fmt.Errorf("auth.api_keys[%d]: user_id required", i)
		}
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
