// Package config provides configuration loading and validation for the verification pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/shabda-setu/internal/script"
)

// Provider names for verifier backends
const (
	ProviderGemini = "gemini"
	ProviderGenAI  = "genai"
	ProviderOpenAI = "openai"
)

// Config represents the pipeline configuration loaded from a YAML file.
// Missing values take the defaults from Default().
type Config struct {
	DatabaseURL string           `yaml:"database_url,omitempty"` // PostgreSQL connection URL (DATABASE_URL overrides)
	Languages   []string         `yaml:"languages" validate:"required,min=1,dive,required"`
	Cache       CacheConfig      `yaml:"cache"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Scoring     ScoringConfig    `yaml:"scoring"`
	Export      ExportConfig     `yaml:"export"`
	Verifiers   []VerifierConfig `yaml:"verifiers" validate:"required,min=1,dive"`
	Log         LogConfig        `yaml:"log"`
}

// CacheConfig locates the response cache.
type CacheConfig struct {
	Path string `yaml:"path" validate:"required"` // SQLite file holding raw verifier responses
}

// PipelineConfig controls scheduling.
type PipelineConfig struct {
	Workers              int           `yaml:"workers" validate:"min=1"`     // words processed in parallel
	Concurrency          int           `yaml:"concurrency" validate:"min=1"` // adapter calls in flight per word
	OrchestrationTimeout time.Duration `yaml:"orchestration_timeout" validate:"gt=0"`
}

// ScoringConfig holds the confidence scorer and promotion parameters.
type ScoringConfig struct {
	PromotionThreshold         float64 `yaml:"promotion_threshold" validate:"gt=0,lte=1"`
	AgreementBonus             float64 `yaml:"agreement_bonus" validate:"gte=0,lte=1"`
	MinVerifiers               int     `yaml:"min_verifiers" validate:"min=1"`
	TransliterationEquivalence bool    `yaml:"transliteration_equivalence"`
}

// ExportConfig holds the training export parameters.
type ExportConfig struct {
	Threshold  float64 `yaml:"threshold" validate:"gte=0,lte=1"`
	TrainRatio float64 `yaml:"train_ratio" validate:"gte=0,lte=1"`
	ValRatio   float64 `yaml:"val_ratio" validate:"gte=0,lte=1"`
}

// VerifierConfig describes one LLM verifier backend.
type VerifierConfig struct {
	Name              string        `yaml:"name" validate:"required"`
	Provider          string        `yaml:"provider" validate:"required,oneof=gemini genai openai"`
	Model             string        `yaml:"model" validate:"required"`
	BaseURL           string        `yaml:"base_url,omitempty"`
	APIKeyEnv         string        `yaml:"api_key_env,omitempty"`
	Weight            float64       `yaml:"weight" validate:"gt=0"` // static reliability weight
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" validate:"min=0,max=10"`
	Backoff           time.Duration `yaml:"backoff" validate:"gte=0"`
	MaxBackoff        time.Duration `yaml:"max_backoff" validate:"gte=0"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"min=0"` // 0 = unlimited
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// DefaultVerifier returns the per-verifier defaults applied before decoding each entry.
func DefaultVerifier() VerifierConfig {
	return VerifierConfig{
		Weight:     1.0,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
		MaxBackoff: 10 * time.Second,
	}
}

// UnmarshalYAML presets defaults so omitted keys keep them.
func (v *VerifierConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain VerifierConfig
	p := plain(DefaultVerifier())
	if err := node.Decode(&p); err != nil {
		return err
	}
	*v = VerifierConfig(p)
	return nil
}

// APIKey resolves the verifier's API key from the environment.
func (v *VerifierConfig) APIKey() string {
	if v.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(v.APIKeyEnv)
}

// Default returns the default configuration.
func Default() *Config {
	gemini := DefaultVerifier()
	gemini.Name = "gemini-flash"
	gemini.Provider = ProviderGemini
	gemini.Model = "gemini-2.5-flash"
	gemini.APIKeyEnv = "GEMINI_API_KEY"
	gemini.RequestsPerMinute = 60

	genai := DefaultVerifier()
	genai.Name = "gemini-pro"
	genai.Provider = ProviderGenAI
	genai.Model = "gemini-2.5-pro"
	genai.APIKeyEnv = "GEMINI_API_KEY"
	genai.Weight = 1.2
	genai.Timeout = 60 * time.Second
	genai.RequestsPerMinute = 30

	local := DefaultVerifier()
	local.Name = "local-llama"
	local.Provider = ProviderOpenAI
	local.Model = "llama3.1:8b"
	local.BaseURL = "http://localhost:11434/v1"
	local.Weight = 0.8

	return &Config{
		Languages: append([]string(nil), script.DefaultLanguages...),
		Cache: CacheConfig{
			Path: filepath.Join("data", "cache", "responses.db"),
		},
		Pipeline: PipelineConfig{
			Workers:              4,
			Concurrency:          3,
			OrchestrationTimeout: 2 * time.Minute,
		},
		Scoring: ScoringConfig{
			PromotionThreshold:         0.8,
			AgreementBonus:             0.1,
			MinVerifiers:               2,
			TransliterationEquivalence: true,
		},
		Export: ExportConfig{
			Threshold:  0.8,
			TrainRatio: 0.8,
			ValRatio:   0.1,
		},
		Verifiers: []VerifierConfig{gemini, genai, local},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv() {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.DatabaseURL = url
	}
	if path := os.Getenv("SHABDA_CACHE_PATH"); path != "" {
		c.Cache.Path = path
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	for _, lang := range c.Languages {
		if _, err := script.ForLanguage(lang); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Verifiers))
	for _, v := range c.Verifiers {
		if seen[v.Name] {
			return fmt.Errorf("config error: duplicate verifier name %q", v.Name)
		}
		seen[v.Name] = true

		if v.Provider == ProviderOpenAI && v.BaseURL == "" {
			return fmt.Errorf("config error: verifier %q: 'base_url' is required for provider openai", v.Name)
		}
		if v.MaxBackoff > 0 && v.Backoff > v.MaxBackoff {
			return fmt.Errorf("config error: verifier %q: 'backoff' exceeds 'max_backoff'", v.Name)
		}
	}

	if c.Scoring.MinVerifiers > len(c.Verifiers) {
		return fmt.Errorf("config error: 'min_verifiers' (%d) exceeds configured verifiers (%d)",
			c.Scoring.MinVerifiers, len(c.Verifiers))
	}
	if c.Export.TrainRatio+c.Export.ValRatio > 1.0 {
		return fmt.Errorf("config error: 'train_ratio' + 'val_ratio' must not exceed 1.0")
	}

	return nil
}

// SupportsLanguage reports whether a language is in the configured set.
func (c *Config) SupportsLanguage(language string) bool {
	for _, lang := range c.Languages {
		if lang == language {
			return true
		}
	}
	return false
}

// Weights returns the static reliability weight of each verifier by name.
func (c *Config) Weights() map[string]float64 {
	weights := make(map[string]float64, len(c.Verifiers))
	for _, v := range c.Verifiers {
		weights[v.Name] = v.Weight
	}
	return weights
}
