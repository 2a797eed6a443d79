package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"ingrevia/internal/core"
	"ingrevia/internal/logger"
	"ingrevia/internal/normalize"
)

// Providers supported by the chat model factory
var Providers = []string{"openai", "ark", "deepseek", "ollama"}

// Config represents the structure of config.yaml
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Router  RouterConfig  `yaml:"router"`
	Ranker  RankerConfig  `yaml:"ranker"`
	Search  SearchConfig  `yaml:"search"`
	Session SessionConfig `yaml:"session"`
	Catalog CatalogConfig `yaml:"catalog"`
	Log     logger.Config `yaml:"log"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"-"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RouterConfig struct {
	Policy string `yaml:"policy"`
}

type RankerConfig struct {
	TopN              int              `yaml:"top_n"`
	HarmFilter        HarmFilterConfig `yaml:"harm_filter"`
	StarterCategories []string         `yaml:"starter_categories"`
}

type HarmFilterConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

type SearchConfig struct {
	PreferredSites []string `yaml:"preferred_sites"`
	SnippetsFile   string   `yaml:"snippets_file"`
}

type SessionConfig struct {
	Backend       string        `yaml:"backend"` // memory or redis
	RedisURL      string        `yaml:"-"`
	TTL           time.Duration `yaml:"ttl"`
	HistoryWindow int           `yaml:"history_window"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

// envOverrides are read after the YAML file; unset variables keep the file values
type envOverrides struct {
	LLMProvider       string   `envconfig:"LLM_PROVIDER"`
	LLMModel          string   `envconfig:"LLM_MODEL"`
	LLMAPIKey         string   `envconfig:"LLM_API_KEY"`
	OpenRouterAPIKey  string   `envconfig:"OPENROUTER_API_KEY"`
	LLMBaseURL        string   `envconfig:"LLM_BASE_URL"`
	RedisURL          string   `envconfig:"REDIS_URL"`
	SessionBackend    string   `envconfig:"SESSION_BACKEND"`
	CatalogPath       string   `envconfig:"CATALOG_PATH"`
	RouterPolicy      string   `envconfig:"ROUTER_POLICY"`
	HarmThreshold     *float64 `envconfig:"HARM_THRESHOLD"`
	HarmFilterEnabled *bool    `envconfig:"HARM_FILTER_ENABLED"`
	LogLevel          string   `envconfig:"LOG_LEVEL"`
	LogFormat         string   `envconfig:"LOG_FORMAT"`
}

// Default returns a runnable configuration without any file or environment
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "openai/gpt-4o-mini",
			BaseURL:     "https://openrouter.ai/api/v1",
			MaxTokens:   800,
			Temperature: 0.2,
			Timeout:     30 * time.Second,
		},
		Router: RouterConfig{Policy: string(core.PolicyRelaxed)},
		Ranker: RankerConfig{
			TopN:       3,
			HarmFilter: HarmFilterConfig{Enabled: true, Threshold: 3.5},
			StarterCategories: []string{
				string(core.CategoryToner),
				string(core.CategoryLotion),
				string(core.CategoryCream),
			},
		},
		Search: SearchConfig{PreferredSites: []string{"hwahae.co.kr"}},
		Session: SessionConfig{
			Backend:       "memory",
			TTL:           time.Hour,
			HistoryWindow: 30,
		},
		Catalog: CatalogConfig{Path: "data/products.csv"},
		Log: logger.Config{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
	}
}

// LoadDotEnv loads .env into the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from config.yaml on top of Default, applies
// environment overrides and validates the result. A missing file keeps the defaults.
func LoadConfig(filepath string) (*Config, error) {
	config := Default()

	if filepath != "" {
		data, err := os.ReadFile(filepath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Warn().Str("path", filepath).Msg("Config file not found, using defaults")
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("error parsing YAML: %w", err)
			}
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("error processing environment configuration: %w", err)
	}

	setIfNotEmpty(&c.LLM.Provider, env.LLMProvider)
	setIfNotEmpty(&c.LLM.Model, env.LLMModel)
	setIfNotEmpty(&c.LLM.BaseURL, env.LLMBaseURL)
	setIfNotEmpty(&c.LLM.APIKey, env.OpenRouterAPIKey)
	setIfNotEmpty(&c.LLM.APIKey, env.LLMAPIKey)
	setIfNotEmpty(&c.Session.RedisURL, env.RedisURL)
	setIfNotEmpty(&c.Session.Backend, env.SessionBackend)
	setIfNotEmpty(&c.Catalog.Path, env.CatalogPath)
	setIfNotEmpty(&c.Router.Policy, env.RouterPolicy)
	setIfNotEmpty(&c.Log.Level, env.LogLevel)
	setIfNotEmpty(&c.Log.Format, env.LogFormat)

	if env.HarmThreshold != nil {
		c.Ranker.HarmFilter.Threshold = *env.HarmThreshold
	}
	if env.HarmFilterEnabled != nil {
		c.Ranker.HarmFilter.Enabled = *env.HarmFilterEnabled
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// Validate rejects values the rest of the program cannot run with
func (c *Config) Validate() error {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if !contains(Providers, c.LLM.Provider) {
		return fmt.Errorf("unknown llm provider %q (expected one of %s)", c.LLM.Provider, strings.Join(Providers, ", "))
	}
	if _, err := core.ParseGuardPolicy(c.Router.Policy); err != nil {
		return err
	}

	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisURL == "" {
			return fmt.Errorf("session backend redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}

	if c.Ranker.TopN <= 0 {
		return fmt.Errorf("ranker.top_n must be positive, got %d", c.Ranker.TopN)
	}
	if c.Ranker.HarmFilter.Threshold < 0 {
		return fmt.Errorf("ranker.harm_filter.threshold must not be negative")
	}
	for _, label := range c.Ranker.StarterCategories {
		if !normalize.CanonicalCategory(label).Known() {
			return fmt.Errorf("unknown starter category %q", label)
		}
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	return nil
}

// GuardPolicy returns the validated router policy
func (c *Config) GuardPolicy() core.GuardPolicy {
	policy, err := core.ParseGuardPolicy(c.Router.Policy)
	if err != nil {
		return core.PolicyRelaxed
	}
	return policy
}

// StarterCategories returns the configured starter set as canonical categories
func (c *Config) StarterCategories() []core.Category {
	out := make([]core.Category, 0, len(c.Ranker.StarterCategories))
	for _, label := range c.Ranker.StarterCategories {
		if category := normalize.CanonicalCategory(label); category.Known() {
			out = append(out, category)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
