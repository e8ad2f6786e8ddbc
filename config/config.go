package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the answer engine.
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetchers FetchersConfig `mapstructure:"fetchers"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// GeneralConfig contains application-wide settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig describes the text-generation provider.
type LLMConfig struct {
	Provider string              `mapstructure:"provider"` // openai
	APIKey   string              `mapstructure:"api_key"`
	BaseURL  string              `mapstructure:"base_url"`
	Timeout  time.Duration       `mapstructure:"timeout"`
	Models   map[string]LLMModel `mapstructure:"models"`
	Routing  LLMRoutingConfig    `mapstructure:"routing"`
}

// LLMModel configures a single model entry.
type LLMModel struct {
	Name        string  `mapstructure:"name"`
	APIName     string  `mapstructure:"api_name"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// LLMRoutingConfig selects the model for each pipeline stage.
type LLMRoutingConfig struct {
	Decompose  string `mapstructure:"decompose"`
	Classify   string `mapstructure:"classify"`
	Synthesize string `mapstructure:"synthesize"`
}

// SearchConfig describes the web-search capability.
type SearchConfig struct {
	Provider       string        `mapstructure:"provider"` // serper | brave
	APIKey         string        `mapstructure:"api_key"`
	MaxPerCall     int           `mapstructure:"max_per_call"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxResults     int           `mapstructure:"max_results"`     // cap fed to the synthesizer
	MaxSubQueries  int           `mapstructure:"max_sub_queries"` // cap on decomposition fan-out
	CurrentYearDup bool          `mapstructure:"current_year_dup"`
}

// FetchersConfig configures the auxiliary dataset fetchers.
type FetchersConfig struct {
	GeocodingAPIKey string        `mapstructure:"geocoding_api_key"`
	FinancialAPIKey string        `mapstructure:"financial_api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// ScoringConfig holds relevance-scoring policy.
type ScoringConfig struct {
	TrustedDomains []string `mapstructure:"trusted_domains"`
}

// StorageConfig wraps persistence backends.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig describes the conversation store. When neither URL nor Host
// is set the server falls back to the in-memory store.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig describes the conversation-context cache. Optional.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DSN assembles a Postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// Configured reports whether Postgres connection details were provided.
func (p PostgresConfig) Configured() bool {
	return p.URL != "" || p.Host != "" || p.DBName != ""
}

func (l LLMConfig) Validate() error {
	if l.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if len(l.Models) == 0 {
		return fmt.Errorf("llm.models must configure at least one model")
	}
	for _, stage := range []string{l.Routing.Decompose, l.Routing.Classify, l.Routing.Synthesize} {
		if stage == "" {
			continue
		}
		if _, ok := l.Models[stage]; !ok {
			return fmt.Errorf("llm.routing references unknown model %q", stage)
		}
	}
	return nil
}

func (s SearchConfig) Validate() error {
	if s.Provider == "" {
		return fmt.Errorf("search.provider is required")
	}
	if s.MaxPerCall < 1 || s.MaxPerCall > 10 {
		return fmt.Errorf("search.max_per_call must be in [1,10], got %d", s.MaxPerCall)
	}
	return nil
}

// LoadConfig reads configuration from the given file path, or discovers a
// config.json next to the working directory, with CLARITY_* environment
// variables overriding file values.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "60s")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.timeout", "45s")
	viper.SetDefault("llm.models", defaultModels())
	viper.SetDefault("llm.routing.decompose", "fast")
	viper.SetDefault("llm.routing.classify", "fast")
	viper.SetDefault("llm.routing.synthesize", "deep")
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_per_call", 10)
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("search.max_results", 15)
	viper.SetDefault("search.max_sub_queries", 4)
	viper.SetDefault("search.current_year_dup", true)
	viper.SetDefault("fetchers.timeout", "10s")
	viper.SetDefault("scoring.trusted_domains", DefaultTrustedDomains)
	viper.SetDefault("storage.redis.ttl", "30m")

	if path == "" {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CLARITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about; keys with
	// no default must be bound explicitly or env values never reach
	// Unmarshal.
	for _, key := range []string{
		"general.debug",
		"llm.api_key",
		"llm.base_url",
		"search.api_key",
		"fetchers.geocoding_api_key",
		"fetchers.financial_api_key",
		"storage.postgres.url",
		"storage.postgres.host",
		"storage.postgres.port",
		"storage.postgres.user",
		"storage.postgres.password",
		"storage.postgres.dbname",
		"storage.postgres.sslmode",
		"storage.redis.addr",
		"storage.redis.password",
		"storage.redis.db",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; env and defaults are enough to run.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultTrustedDomains is the baseline outlet allow-list used by the
// relevance scorer. Overridable through scoring.trusted_domains.
var DefaultTrustedDomains = []string{
	"reuters.com",
	"apnews.com",
	"bbc.com",
	"bloomberg.com",
	"nytimes.com",
	"wsj.com",
	"economist.com",
	"nature.com",
	"science.org",
}

func defaultModels() map[string]map[string]interface{} {
	return map[string]map[string]interface{}{
		"fast": {
			"name":        "gpt-4o-mini",
			"max_tokens":  1024,
			"temperature": 0.2,
		},
		"deep": {
			"name":        "gpt-4o",
			"max_tokens":  4096,
			"temperature": 0.3,
		},
	}
}
