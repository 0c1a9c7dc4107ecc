package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is the YAML file read by Load when it exists.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-spend.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Embedded analytic store
	Store StoreConfig `yaml:"store"`

	// Generative-text collaborator used by the classification loop
	LLM LLMConfig `yaml:"llm"`

	// Catalogue build tuning
	Catalog CatalogConfig `yaml:"catalog"`

	// Spreadsheet upload limits
	Upload UploadConfig `yaml:"upload"`
}

// StoreConfig holds the embedded SQLite store configuration.
type StoreConfig struct {
	// Path is the database file. Empty means a private in-memory database,
	// which matches the process-lifetime persistence model.
	Path string `yaml:"path" env:"STORE_PATH" env-default:""`
}

// LLMConfig holds the text-generation endpoint configuration.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" (any OpenAI-compatible
	// endpoint, including vLLM/Ollama) or "anthropic".
	Provider       string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL        string  `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model          string  `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey         string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature    float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.1"`
	TimeoutSeconds int     `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"90"`
	MaxRetries     int     `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"2"`
	MaxTokens      int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"8192"`
	// JSONMode sets response_format=json_object on OpenAI-compatible endpoints.
	JSONMode bool `yaml:"json_mode" env:"LLM_JSON_MODE" env-default:"false"`
}

// CatalogConfig tunes the catalogue build.
type CatalogConfig struct {
	// BatchSize is the number of purchase-order lines sent per classification request.
	BatchSize           int    `yaml:"batch_size" env:"CATALOG_BATCH_SIZE" env-default:"120"`
	FallbackCategory    string `yaml:"fallback_category" env:"CATALOG_FALLBACK_CATEGORY" env-default:"Other"`
	FallbackSubcategory string `yaml:"fallback_subcategory" env:"CATALOG_FALLBACK_SUBCATEGORY" env-default:"Uncategorized"`
}

// UploadConfig bounds spreadsheet uploads.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"67108864"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides. The version parameter is injected at build time and set
// on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom is Load with an explicit YAML path. A missing file is not an error;
// the configuration then comes from environment variables and defaults.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.BaseURL = ResolveURLForDocker(cfg.LLM.BaseURL)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks values cleanenv cannot express as tags.
func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q (want openai or anthropic)", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature %.2f out of range [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm timeout_seconds must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm max_retries must not be negative")
	}
	if c.Catalog.BatchSize <= 0 {
		return fmt.Errorf("catalog batch_size must be positive")
	}
	if strings.TrimSpace(c.Catalog.FallbackCategory) == "" || strings.TrimSpace(c.Catalog.FallbackSubcategory) == "" {
		return fmt.Errorf("catalog fallback category and subcategory are required")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}
