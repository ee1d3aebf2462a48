package provider

import "github.com/auracore/aurarouter/config"

const llamaCppServerDefaultBaseURL = "http://localhost:8080"

// newLlamaCppServerProvider adapts a standalone `llama-server` process,
// which also speaks the OpenAI-compatible chat-completions wire format.
func newLlamaCppServerProvider(modelID string, cfg config.ModelConfig) Provider {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = llamaCppServerDefaultBaseURL
	}
	return &openAICompatAdapter{
		modelID:        modelID,
		provider:       "llamacpp-server",
		baseURL:        baseURL,
		modelName:      modelNameOrID(modelID, cfg),
		headers:        extraHeaders(cfg.Raw()),
		client:         httpClient(cfg.Timeout),
		contextLimit:   cfg.ContextLimit,
		apiKeyExplicit: cfg.APIKey,
		envKey:         cfg.EnvKey,
	}
}
