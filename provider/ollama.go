package provider

import (
	"github.com/auracore/aurarouter/config"
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// newOllamaProvider adapts an on-prem Ollama server, which exposes an
// OpenAI-compatible /v1/chat/completions endpoint.
func newOllamaProvider(modelID string, cfg config.ModelConfig) Provider {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	return &openAICompatAdapter{
		modelID:        modelID,
		provider:       "ollama",
		baseURL:        baseURL,
		modelName:      modelNameOrID(modelID, cfg),
		headers:        extraHeaders(cfg.Raw()),
		client:         httpClient(cfg.Timeout),
		contextLimit:   cfg.ContextLimit,
		apiKeyExplicit: cfg.APIKey,
		envKey:         cfg.EnvKey,
	}
}
