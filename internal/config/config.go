package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	OpenAIKey               string
	OpenAIEndpoint          string        `validate:"required,url"`
	OpenAIModel             string        `validate:"required"`
	OpenAITimeout           time.Duration `validate:"gt=0"`
	FallbackOnRemoteFailure bool
	Port                    string   `validate:"required,numeric"`
	MaxUploadMB             int64    `validate:"gt=0"`
	LogLevel                string   `validate:"oneof=trace debug info warn error"`
	LogPretty               bool
	LogFile                 string
	CORSAllowedOrigins      []string `validate:"min=1,dive,required"`
}

// RemoteEnabled reports whether a language model credential is configured.
func (c Config) RemoteEnabled() bool {
	return c.OpenAIKey != ""
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() (Config, error) {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("OPENAI_API_ENDPOINT", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o")
	v.SetDefault("OPENAI_TIMEOUT", "60s")
	v.SetDefault("FALLBACK_ON_REMOTE_FAILURE", false)
	v.SetDefault("PORT", "8000")
	v.SetDefault("MAX_UPLOAD_MB", 100)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	return v
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		OpenAIKey:               strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIEndpoint:          v.GetString("OPENAI_API_ENDPOINT"),
		OpenAIModel:             v.GetString("OPENAI_MODEL"),
		OpenAITimeout:           v.GetDuration("OPENAI_TIMEOUT"),
		FallbackOnRemoteFailure: v.GetBool("FALLBACK_ON_REMOTE_FAILURE"),
		Port:                    v.GetString("PORT"),
		MaxUploadMB:             v.GetInt64("MAX_UPLOAD_MB"),
		LogLevel:                strings.ToLower(v.GetString("LOG_LEVEL")),
		LogPretty:               v.GetBool("LOG_PRETTY"),
		LogFile:                 v.GetString("LOG_FILE"),
		CORSAllowedOrigins:      splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
