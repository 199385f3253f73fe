package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  string
	OTel  OTelConfig
	Agent LLMConfig
	Email EmailConfig
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type LLMConfig struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string
	BaseURL   string // Optional: for custom endpoints
	Model     string
	MaxTokens int
}

type EmailConfig struct {
	Recipients    []string
	SubjectPrefix string
}

// Load loads configuration from environment variables.
// In development it also reads a .env file if one exists.
//
// The agent defaults target Gemini through its OpenAI-compatible endpoint,
// so a bare GEMINI_API_KEY is enough to run locally. Load does not validate
// the key itself; llm.NewAgentClient rejects an empty one, so a missing key
// stops the server at startup.
func Load() (Config, error) {
	if getEnv("MINUTED_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("MINUTED_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "minuted"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Agent: LLMConfig{
			Provider:  getEnv("AGENT_LLM_PROVIDER", "openai"),
			APIKey:    getEnv("AGENT_LLM_API_KEY", getEnv("GEMINI_API_KEY", "")),
			BaseURL:   getEnv("AGENT_LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:     getEnv("AGENT_LLM_MODEL", "gemini-1.5-flash"),
			MaxTokens: getEnvInt("AGENT_LLM_MAX_TOKENS", 8192),
		},
		Email: EmailConfig{
			Recipients:    getEnvList("SUMMARY_RECIPIENTS", []string{"team@example.com"}),
			SubjectPrefix: getEnv("SUMMARY_SUBJECT_PREFIX", "Summary #"),
		},
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
