package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/llm"
)

// Config is the typed application configuration.
type Config struct {
	LLM            LLMConfig            `mapstructure:"llm"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Classification ClassificationConfig `mapstructure:"classification"`
}

// LLMConfig selects the backend roster and the call policy.
type LLMConfig struct {
	Backends   map[string]BackendConfig `mapstructure:"backends"`
	Primary    string                   `mapstructure:"primary"`
	Ranker     string                   `mapstructure:"ranker"`
	Alternates []string                 `mapstructure:"alternates"`
	Timeout    time.Duration            `mapstructure:"timeout"`
	RetryDelay time.Duration            `mapstructure:"retry_delay"`
	CacheTTL   time.Duration            `mapstructure:"cache_ttl"`
	MaxRetries int                      `mapstructure:"max_retries"`
	RateLimit  int                      `mapstructure:"rate_limit"`
}

// BackendConfig describes one named model backend.
type BackendConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Referer     string  `mapstructure:"referer"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// NamedBackend pairs a backend with its configuration key.
type NamedBackend struct {
	Name string
	BackendConfig
}

// DatabaseConfig selects where the commodity code registry lives.
// Classification history is always kept in the SQLite database at Path.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// TLSDir holds the self-signed certificate used when TLS is enabled.
	TLSDir   string   `mapstructure:"tls_dir"`
	TLSHosts []string `mapstructure:"tls_hosts"`
	TLS      bool     `mapstructure:"tls"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ClassificationConfig configures batch classification.
type ClassificationConfig struct {
	Workers int `mapstructure:"workers"`
}

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// providerEnvKeys lists the environment variables consulted, in order, when a
// backend has no api_key configured.
var providerEnvKeys = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	"claude":     {"CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	"gemini":     {"GEMINI_API_KEY"},
	"groq":       {"GROQ_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
}

// SetDefaults registers the default configuration on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.alternates", []string{"claude", "gemini", "groq"})
	v.SetDefault("llm.ranker", "")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_retries", 1)
	v.SetDefault("llm.retry_delay", "1s")
	v.SetDefault("llm.cache_ttl", "0s")
	v.SetDefault("llm.rate_limit", 0)

	v.SetDefault("llm.backends.openai.provider", "openai")
	v.SetDefault("llm.backends.openai.model", "gpt-4-turbo-preview")
	v.SetDefault("llm.backends.claude.provider", "anthropic")
	v.SetDefault("llm.backends.claude.model", "claude-3-5-sonnet-20240620")
	v.SetDefault("llm.backends.gemini.provider", "gemini")
	v.SetDefault("llm.backends.gemini.model", "gemini-1.5-flash-latest")
	v.SetDefault("llm.backends.groq.provider", "groq")
	v.SetDefault("llm.backends.groq.model", "llama3-8b-8192")
	v.SetDefault("llm.backends.openrouter.provider", "openrouter")
	v.SetDefault("llm.backends.openrouter.model", "openai/gpt-4-turbo-preview")
	v.SetDefault("llm.backends.openrouter.referer", "http://localhost:5000")
	for _, name := range []string{"openai", "claude", "gemini", "groq", "openrouter"} {
		// Registered so TARIFF_LLM_BACKENDS_<NAME>_API_KEY is picked up.
		v.SetDefault("llm.backends."+name+".api_key", "")
	}

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "~/.local/share/tariff/tariff.db")
	v.SetDefault("database.max_conns", 4)

	v.SetDefault("server.port", 5000)
	v.SetDefault("server.rate_limit", 2.0)
	v.SetDefault("server.burst", 5)
	v.SetDefault("server.request_timeout", "3m")
	v.SetDefault("server.tls", false)
	v.SetDefault("server.tls_dir", "~/.config/tariff/tls")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("classification.workers", 3)
}

// Decode unmarshals v into a Config and fills in API keys from the provider
// environment variables. It does not validate.
func Decode(v *viper.Viper) (*Config, error) {
	return decode(v, os.Getenv)
}

func decode(v *viper.Viper, getenv func(string) string) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	for name, backend := range cfg.LLM.Backends {
		if backend.APIKey == "" {
			backend.APIKey = envAPIKey(backend.Provider, getenv)
		}
		backend.Provider = strings.ToLower(backend.Provider)
		cfg.LLM.Backends[name] = backend
	}
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Server.TLSDir = ExpandPath(cfg.Server.TLSDir)

	return &cfg, nil
}

// Load decodes and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envAPIKey(provider string, getenv func(string) string) string {
	for _, key := range providerEnvKeys[strings.ToLower(provider)] {
		if value := getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// Validate checks the whole configuration, including backend credentials.
func (c *Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Classification.Workers < 1 {
		return fmt.Errorf("%w: classification.workers must be at least 1", common.ErrInvalidConfig)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", common.ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.RateLimit <= 0 || c.Server.Burst < 1 {
		return fmt.Errorf("%w: server.rate_limit and server.burst must be positive", common.ErrInvalidConfig)
	}
	return nil
}

// ValidateStorage checks only the database settings.
func (c *Config) ValidateStorage() error {
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for the postgres driver", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: database.driver must be %q or %q, got %q",
			common.ErrInvalidConfig, DriverSQLite, DriverPostgres, c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	return nil
}

// Validate checks the roster and the credentials of every backend in it.
func (c *LLMConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: llm.timeout must be positive", common.ErrInvalidConfig)
	}
	if c.MaxRetries < 0 || c.RateLimit < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("%w: llm.max_retries, llm.rate_limit and llm.cache_ttl cannot be negative", common.ErrInvalidConfig)
	}

	roster, err := c.Roster()
	if err != nil {
		return err
	}
	ranker, err := c.RankerBackend()
	if err != nil {
		return err
	}

	for _, backend := range append(roster, ranker) {
		if _, ok := providerEnvKeys[backend.Provider]; !ok {
			return fmt.Errorf("%w: backend %q has unsupported provider %q", common.ErrInvalidConfig, backend.Name, backend.Provider)
		}
		if backend.APIKey == "" {
			return fmt.Errorf("%w: backend %q has no API key (set llm.backends.%s.api_key or %s)",
				common.ErrMissingConfig, backend.Name, backend.Name, strings.Join(providerEnvKeys[backend.Provider], "/"))
		}
	}
	return nil
}

// Roster returns the primary backend followed by the alternates. Duplicate
// names are dropped.
func (c *LLMConfig) Roster() ([]NamedBackend, error) {
	if c.Primary == "" {
		return nil, fmt.Errorf("%w: llm.primary", common.ErrMissingConfig)
	}

	seen := map[string]bool{}
	roster := make([]NamedBackend, 0, 1+len(c.Alternates))
	for _, name := range append([]string{c.Primary}, c.Alternates...) {
		if seen[name] {
			continue
		}
		seen[name] = true

		backend, err := c.backend(name)
		if err != nil {
			return nil, err
		}
		roster = append(roster, backend)
	}
	return roster, nil
}

// RankerBackend returns the backend that ranks commodity candidates. Without
// an explicit llm.ranker, OpenRouter is used when it has credentials and the
// primary backend otherwise.
func (c *LLMConfig) RankerBackend() (NamedBackend, error) {
	name := c.Ranker
	if name == "" {
		name = c.Primary
		if openrouter, ok := c.Backends["openrouter"]; ok && openrouter.APIKey != "" {
			name = "openrouter"
		}
	}
	return c.backend(name)
}

func (c *LLMConfig) backend(name string) (NamedBackend, error) {
	backend, ok := c.Backends[name]
	if !ok {
		return NamedBackend{}, fmt.Errorf("%w: backend %q is not defined under llm.backends", common.ErrInvalidConfig, name)
	}
	return NamedBackend{Name: name, BackendConfig: backend}, nil
}

// Gateway returns the call policy shared by every backend.
func (c *LLMConfig) Gateway() llm.GatewayConfig {
	return llm.GatewayConfig{
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		RetryDelay: c.RetryDelay,
		CacheTTL:   c.CacheTTL,
		RateLimit:  c.RateLimit,
	}
}

// ClientConfig converts the backend into an llm client configuration.
func (b NamedBackend) ClientConfig() llm.Config {
	return llm.Config{
		Provider:    b.Provider,
		APIKey:      b.APIKey,
		Model:       b.Model,
		BaseURL:     b.BaseURL,
		Referer:     b.Referer,
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
	}
}
