package config

import (
	_ "embed"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prices.yaml
var pricesYAML []byte

// Image provider names accepted in IMAGE_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Provider string
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig
	Web      WebConfig
	LogLevel slog.Level
	Prices   PricesConfig
}

type GeminiConfig struct {
	APIKey string
	Model  string // defaults to gemini-2.5-flash-image-preview
}

type OpenAIConfig struct {
	Token string
}

type WebConfig struct {
	Port           int
	Host           string
	SessionSecret  string
	AllowedOrigins []string
}

type PricesConfig struct {
	Models map[string]ModelPricing `yaml:"models"`
}

type ModelPricing struct {
	Standard RequestPricing `yaml:"standard"`
}

type RequestPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// envLogLevel parses LOG_LEVEL (debug, info, warn, error). Defaults to info.
func envLogLevel(key string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv(key))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func Load() *Config {
	var prices PricesConfig
	if err := yaml.Unmarshal(pricesYAML, &prices); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded prices.yaml: " + err.Error())
	}

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("IMAGE_PROVIDER")))
	if provider == "" {
		provider = ProviderGemini
	}

	return &Config{
		Provider: provider,
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  os.Getenv("GEMINI_IMAGE_MODEL"),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Web: WebConfig{
			Port:           envInt("WEB_PORT", 8080),
			Host:           os.Getenv("WEB_HOST"),
			SessionSecret:  os.Getenv("WEB_SESSION_SECRET"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		LogLevel: envLogLevel("LOG_LEVEL"),
		Prices:   prices,
	}
}

// Credential returns the API credential for the selected provider.
func (c *Config) Credential() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAI.Token
	}
	return c.Gemini.APIKey
}

// CredentialEnv names the environment variable holding the selected provider's credential.
func (c *Config) CredentialEnv() string {
	if c.Provider == ProviderOpenAI {
		return "OPENAI_TOKEN"
	}
	return "GEMINI_API_KEY"
}

// GetModelPricing returns pricing for a specific model, with fallback defaults
func (c *Config) GetModelPricing(modelName string) ModelPricing {
	if pricing, ok := c.Prices.Models[modelName]; ok {
		return pricing
	}
	// Return zero pricing if model not found
	return ModelPricing{}
}
