package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/spyglass/internal/config"
	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/pkg/log"
)

// Backend bundles everything the gateway needs from a model backend.
type Backend interface {
	core.StreamProvider
	core.ModelLister
	Model() string
	Credentialed() bool
}

var (
	_ Backend         = (*Gemini)(nil)
	_ Backend         = (*OpenAI)(nil)
	_ core.AIProvider = (*OpenAICompatible)(nil)
)

// NewBackend creates the appropriate backend based on configuration.
func NewBackend(ctx context.Context, appCfg *config.AppConfig) (Backend, error) {
	log.FromCtx(ctx).Info().
		Str("provider", appCfg.LLMProvider).
		Msg("starting llm backend")

	switch appCfg.LLMProvider {
	case "gemini":
		return NewGemini(config.NewGeminiConfig(ctx)), nil
	case "openai":
		return NewOpenAI(config.NewOpenAIConfig(ctx)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", appCfg.LLMProvider)
	}
}
