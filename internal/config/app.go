package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/spyglass/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"SPYGLASS_RUNTIME_PATH" envDefault:".spyglass"`
	// Allow selecting the provider backend
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"gemini"`

	// HTTP surface
	HTTPHost string `env:"SPYGLASS_HTTP_HOST" envDefault:"127.0.0.1"`
	HTTPPort int    `env:"SPYGLASS_HTTP_PORT" envDefault:"8591"`

	// Context Management
	ContextWindowTokens int `env:"CONTEXT_WINDOW_TOKENS" envDefault:"32000"`

	// Instructions prepended to every session as the system message
	Instructions string `env:"SPYGLASS_INSTRUCTIONS" envDefault:"You are a read-only code and data assistant. You may inspect but never modify."`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "spyglass.db")
}

func (c AppConfig) GetMCPConfigPath() string {
	return filepath.Join(c.RuntimePath, "mcp_config.json")
}
