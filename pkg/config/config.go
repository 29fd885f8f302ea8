package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobradar/jobradar/pkg/domain"
)

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"server"`

	Database struct {
		DSN             string `yaml:"dsn"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
	} `yaml:"database"`

	Feed FeedConfig `yaml:"feed"`

	LLM LLMConfig `yaml:"llm"`
}

// FeedConfig holds feed fetching defaults, the user can change the source
// settings at runtime through the store
type FeedConfig struct {
	URL             string        `yaml:"url"`
	RefreshInterval int           `yaml:"refresh_interval"` // minutes, 0 disables auto-refresh
	MaxArticles     int           `yaml:"max_articles"`
	FilterRelevant  *bool         `yaml:"filter_relevant"`
	AutoAnalyze     bool          `yaml:"auto_analyze"`
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"user_agent"`
}

// LLMConfig holds LLM settings for article analysis
type LLMConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Load reads configuration from a YAML file, expanding environment
// variables before parsing
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is given
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.DSN == "" {
		c.Database.DSN = "file:jobradar.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Feed.RefreshInterval == 0 {
		c.Feed.RefreshInterval = 30
	}
	if c.Feed.MaxArticles == 0 {
		c.Feed.MaxArticles = 20
	}
	if c.Feed.FilterRelevant == nil {
		enabled := true
		c.Feed.FilterRelevant = &enabled
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 30 * time.Second
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = "JobRadar/1.0"
	}

	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = "https://openrouter.ai/api/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "openai/gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 30 * time.Second
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	if cfg.Feed.RefreshInterval < 0 {
		return fmt.Errorf("feed.refresh_interval must be non-negative")
	}
	if cfg.Feed.MaxArticles < 1 {
		return fmt.Errorf("feed.max_articles must be at least 1")
	}
	if cfg.Feed.URL != "" && !strings.HasPrefix(cfg.Feed.URL, "http://") && !strings.HasPrefix(cfg.Feed.URL, "https://") {
		return fmt.Errorf("feed.url must be an http(s) URL")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if cfg.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be at least 1")
	}
	return nil
}

// FeedDefaults converts the configured feed section into the store's
// initial feed configuration
func (c *Config) FeedDefaults() domain.FeedConfig {
	return domain.FeedConfig{
		URL:             c.Feed.URL,
		RefreshInterval: c.Feed.RefreshInterval,
		MaxArticles:     c.Feed.MaxArticles,
		FilterRelevant:  c.Feed.FilterRelevant == nil || *c.Feed.FilterRelevant,
		AutoAnalyze:     c.Feed.AutoAnalyze,
	}
}

// GetServerConfig returns server listen address and timeout
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetLLMConfig returns LLM configuration
func (c *Config) GetLLMConfig() LLMConfig {
	return c.LLM
}
