// Package config loads runtime settings from an optional YAML file, a .env
// file and CAMTRAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ironsheep/camtrap-metadata/internal/vision"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CAMTRAP"

// Oracle modes for footer extraction.
const (
	OracleVision = "vision"
	OracleOCR    = "ocr"
	OracleNone   = "none"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	// Oracle selects how footers are read: vision, ocr or none.
	Oracle string `mapstructure:"oracle"`

	OpenAIKey string `mapstructure:"openai_api_key"`
	GeminiKey string `mapstructure:"gemini_api_key"`
	OllamaURL string `mapstructure:"ollama_url"`

	Vision  VisionConfig  `mapstructure:"vision"`
	Species SpeciesConfig `mapstructure:"species"`
	OCR     OCRConfig     `mapstructure:"ocr"`
	Footer  FooterConfig  `mapstructure:"footer"`
}

// VisionConfig configures the footer vision oracle.
type VisionConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// SpeciesConfig configures species identification.
type SpeciesConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	Location   string `mapstructure:"location"`
	Region     string `mapstructure:"region"`
	PromptFile string `mapstructure:"prompt_file"`
}

// OCRConfig configures the Tesseract engine.
type OCRConfig struct {
	Language       string `mapstructure:"language"`
	TessdataPrefix string `mapstructure:"tessdata_prefix"`
}

// FooterConfig holds footer-reading resources.
type FooterConfig struct {
	PromptFile      string `mapstructure:"prompt_file"`
	CorrectionsFile string `mapstructure:"corrections_file"`
}

var defaults = map[string]any{
	"log_level":               "info",
	"oracle":                  OracleVision,
	"openai_api_key":          "",
	"gemini_api_key":          "",
	"ollama_url":              vision.DefaultOllamaURL,
	"vision.provider":         vision.ProviderOpenAI,
	"vision.model":            "",
	"vision.timeout":          vision.DefaultTimeout,
	"vision.temperature":      0.1,
	"vision.max_tokens":       300,
	"species.provider":        "",
	"species.model":           "",
	"species.max_tokens":      600,
	"species.location":        "Namibia, Africa",
	"species.region":          "Southern Africa",
	"species.prompt_file":     "",
	"ocr.language":            "eng",
	"ocr.tessdata_prefix":     "",
	"footer.prompt_file":      "",
	"footer.corrections_file": "",
}

// Names that predate the CAMTRAP_ prefix and are still honoured.
var legacyEnv = map[string]string{
	"openai_api_key":      "OPENAI_API_KEY",
	"gemini_api_key":      "GEMINI_API_KEY",
	"ollama_url":          "OLLAMA_URL",
	"species.location":    "CAMERA_TRAP_LOCATION",
	"species.region":      "CAMERA_TRAP_REGION",
	"ocr.tessdata_prefix": "TESSDATA_PREFIX",
}

// Load reads configuration. file may be empty; a named file that does not
// exist is an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, name, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Oracle {
	case OracleVision, OracleOCR, OracleNone:
	default:
		return fmt.Errorf("invalid oracle %q: want %s, %s or %s", c.Oracle, OracleVision, OracleOCR, OracleNone)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// FooterVision returns the provider settings for footer extraction.
func (c *Config) FooterVision() vision.Config {
	return c.providerConfig(vision.Config{
		Provider:    c.Vision.Provider,
		Model:       c.Vision.Model,
		Timeout:     c.Vision.Timeout,
		Temperature: c.Vision.Temperature,
		MaxTokens:   c.Vision.MaxTokens,
	})
}

// SpeciesVision returns the provider settings for species identification.
// An empty species provider reuses the footer provider; OpenAI defaults to
// gpt-4o-mini for identification.
func (c *Config) SpeciesVision() vision.Config {
	provider := c.Species.Provider
	if provider == "" {
		provider = c.Vision.Provider
	}
	model := c.Species.Model
	if model == "" && strings.EqualFold(provider, vision.ProviderOpenAI) {
		model = "gpt-4o-mini"
	}
	return c.providerConfig(vision.Config{
		Provider:  provider,
		Model:     model,
		Timeout:   c.Vision.Timeout,
		MaxTokens: c.Species.MaxTokens,
	})
}

func (c *Config) providerConfig(vc vision.Config) vision.Config {
	switch strings.ToLower(vc.Provider) {
	case vision.ProviderOpenAI, "":
		vc.APIKey = c.OpenAIKey
	case vision.ProviderGemini:
		vc.APIKey = c.GeminiKey
	case vision.ProviderOllama:
		vc.BaseURL = c.OllamaURL
	}
	return vc
}
