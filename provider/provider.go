// Package provider implements the adapters that speak to the actual model
// fleet: on-prem GGUF/Ollama servers, embedded llama.cpp, and the cloud
// Claude/Google/OpenAI-compatible APIs. Every adapter satisfies the
// uniform Provider interface the compute fabric consumes; the provider
// family union is closed and small, so construction is a single
// tagged-variant switch in New.
package provider

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/auracore/aurarouter/config"
)

// ChatTurn is the minimal {role, content} pair exchanged with
// generate_with_history.
type ChatTurn struct {
	Role    string
	Content string
}

// GenerateResult is the concrete return value of both Provider methods.
type GenerateResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
	ModelID      string
	Provider     string
	ContextLimit int
	Gist         string
}

// String yields Text unchanged, so a GenerateResult may be treated as its
// text in contexts that only care about content (e.g. logging).
func (r GenerateResult) String() string { return r.Text }

// Usage is the derived token-accounting view of a GenerateResult.
type Usage struct {
	Input     int
	Output    int
	Remaining int
	Limit     int
}

// Usage computes the derived view; Remaining is clamped to zero.
func (r GenerateResult) Usage() Usage {
	remaining := r.ContextLimit - r.InputTokens - r.OutputTokens
	if remaining < 0 {
		remaining = 0
	}
	return Usage{Input: r.InputTokens, Output: r.OutputTokens, Remaining: remaining, Limit: r.ContextLimit}
}

// Provider is the uniform contract every model-family adapter satisfies.
type Provider interface {
	// GenerateWithUsage sends a single prompt and reports token usage.
	// Must return an error on transport failure; empty text is a valid,
	// non-error result that the fabric treats as a failed attempt.
	GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (GenerateResult, error)

	// GenerateWithHistory sends an ordered turn list plus an optional
	// system prompt, for multi-turn session callers.
	GenerateWithHistory(ctx context.Context, messages []ChatTurn, systemPrompt string, jsonMode bool) (GenerateResult, error)

	// GetContextLimit returns the model's context window, 0 if unknown.
	GetContextLimit() int

	// ResolveAPIKey draws from explicit config, then the named
	// environment variable. ok is false when neither is set.
	ResolveAPIKey() (key string, ok bool)
}

// sharedTransport is reused across every HTTP-speaking adapter so
// connections pool instead of re-dialing per request.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     90 * time.Second,
}

func httpClient(timeoutSeconds float64) *http.Client {
	timeout := time.Duration(timeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{Transport: sharedTransport, Timeout: timeout}
}

func resolveAPIKey(explicit, envKey string) (string, bool) {
	if explicit != "" {
		return explicit, true
	}
	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return v, true
		}
	}
	return "", false
}

// New constructs the concrete adapter for modelCfg's provider tag. The
// closed union {ollama, llamacpp, llamacpp-server, claude, google, openapi}
// is switched on once here; an unrecognized tag is a caller bug, surfaced
// as an error rather than a panic so a bad config entry degrades to "skip
// this model" at the fabric layer.
func New(modelID string, modelCfg config.ModelConfig) (Provider, error) {
	switch strings.ToLower(modelCfg.Provider) {
	case "ollama":
		return newOllamaProvider(modelID, modelCfg), nil
	case "llamacpp":
		return newLlamaCppProvider(modelID, modelCfg), nil
	case "llamacpp-server":
		return newLlamaCppServerProvider(modelID, modelCfg), nil
	case "claude":
		return newClaudeProvider(modelID, modelCfg), nil
	case "google":
		return newGoogleProvider(modelID, modelCfg), nil
	case "openapi":
		return newOpenAPIProvider(modelID, modelCfg), nil
	default:
		return nil, unknownProviderError{provider: modelCfg.Provider}
	}
}

type unknownProviderError struct{ provider string }

func (e unknownProviderError) Error() string { return "unknown provider: " + e.provider }
