package provider

import "github.com/auracore/aurarouter/config"

// newOpenAPIProvider adapts any generic OpenAI-compatible destination named
// by an explicit endpoint (third-party hosted inference, a proxy, etc.),
// the catch-all provider tag for anything not covered by the other five.
func newOpenAPIProvider(modelID string, cfg config.ModelConfig) Provider {
	return &openAICompatAdapter{
		modelID:        modelID,
		provider:       "openapi",
		baseURL:        cfg.Endpoint,
		modelName:      modelNameOrID(modelID, cfg),
		headers:        extraHeaders(cfg.Raw()),
		client:         httpClient(cfg.Timeout),
		contextLimit:   cfg.ContextLimit,
		apiKeyExplicit: cfg.APIKey,
		envKey:         cfg.EnvKey,
	}
}
