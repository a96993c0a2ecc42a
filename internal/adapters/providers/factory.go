// Package providers selects the analysis engine backend from configuration.
package providers

import (
	"fmt"
	"strings"

	"github.com/hemolens/hemolens/internal/adapters/llm"
	"github.com/hemolens/hemolens/internal/config"
	"github.com/hemolens/hemolens/internal/core/ports"
)

// Build creates the analysis engine from app configuration. It hides
// local/remote backend selection from callers.
func Build(cfg *config.Config) (ports.AnalysisEngine, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.EngineProvider))
	switch mode {
	case "", "ollama":
		return llm.NewOllamaEngine(cfg.OllamaURL, cfg.EngineModel), nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
			return nil, fmt.Errorf("ENGINE_BASE_URL is required when ENGINE_PROVIDER=openai")
		}
		return llm.NewOpenAIEngine(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EngineModel), nil
	default:
		return nil, fmt.Errorf("unsupported engine provider: %s", cfg.EngineProvider)
	}
}
