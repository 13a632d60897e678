// Package config holds the process configuration: which LLM provider parses
// questions, where the analytics engine lives, and where clarification state
// is kept.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	LLM       LLMConfig       `yaml:"llm"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	State     StateConfig     `yaml:"state"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// CatalogConfig locates the vocabulary file.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig selects the extraction provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
}

// AnalyticsConfig points at the analytics engine.
type AnalyticsConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`
	Timeout  string `yaml:"timeout"`
	MaxRows  int    `yaml:"max_rows"`
}

// StateConfig controls clarification state persistence.
type StateConfig struct {
	DatabasePath string `yaml:"database_path"`
	TTL          string `yaml:"ttl"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls zap initialization.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path: "catalog/catalog.yaml",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "30s",
		},
		Analytics: AnalyticsConfig{
			BaseURL: "http://localhost:4000/cubejs-api/v1",
			Timeout: "30s",
			MaxRows: 10000,
		},
		State: StateConfig{
			DatabasePath: "data/nlq_states.db",
			TTL:          "1h",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file, applying environment overrides.
// A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Secrets belong
// in the environment, not the file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.LLM.Provider == "openai" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.Provider == "gemini" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("NLQ_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if url := os.Getenv("NLQ_ANALYTICS_URL"); url != "" {
		c.Analytics.BaseURL = url
	}
	if token := os.Getenv("NLQ_ANALYTICS_TOKEN"); token != "" {
		c.Analytics.APIToken = token
	}
	if path := os.Getenv("NLQ_STATE_DB"); path != "" {
		c.State.DatabasePath = path
	}
}

// GetLLMTimeout parses the LLM timeout, defaulting to 30s.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetAnalyticsTimeout parses the analytics timeout, defaulting to 30s.
func (c *Config) GetAnalyticsTimeout() time.Duration {
	d, err := time.ParseDuration(c.Analytics.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetStateTTL parses the clarification state TTL, defaulting to 1h.
func (c *Config) GetStateTTL() time.Duration {
	d, err := time.ParseDuration(c.State.TTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required")
	}
	if c.Analytics.BaseURL == "" {
		return fmt.Errorf("analytics base_url is required")
	}
	if c.Analytics.MaxRows <= 0 {
		return fmt.Errorf("analytics max_rows must be positive")
	}
	return nil
}
