package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/auracore/aurarouter/config"
)

// openAICompatRequest is the wire shape shared by every OpenAI-style
// chat-completions endpoint this repository talks to (Ollama, an OpenAI-
// compatible llama.cpp server, and generic "openapi" destinations).
type openAICompatRequest struct {
	Model          string            `json:"model"`
	Messages       []openAICompatMsg `json:"messages"`
	ResponseFormat *responseFormat   `json:"response_format,omitempty"`
}

type openAICompatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAICompatResponse struct {
	Choices []struct {
		Message openAICompatMsg `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// openAICompatAdapter implements Provider against any server that exposes
// an OpenAI-compatible /v1/chat/completions endpoint (Ollama, llamacpp-server,
// openapi-tagged destinations differ only in base URL, model name, and
// headers).
type openAICompatAdapter struct {
	modelID        string
	provider       string
	baseURL        string
	modelName      string
	headers        map[string]string
	client         *http.Client
	contextLimit   int
	apiKeyExplicit string
	envKey         string
}

func (a *openAICompatAdapter) GetContextLimit() int { return a.contextLimit }

func (a *openAICompatAdapter) ResolveAPIKey() (string, bool) {
	return resolveAPIKey(a.apiKeyExplicit, a.envKey)
}

func (a *openAICompatAdapter) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (GenerateResult, error) {
	return a.generate(ctx, []openAICompatMsg{{Role: "user", Content: prompt}}, jsonMode)
}

func (a *openAICompatAdapter) GenerateWithHistory(ctx context.Context, messages []ChatTurn, systemPrompt string, jsonMode bool) (GenerateResult, error) {
	msgs := make([]openAICompatMsg, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openAICompatMsg{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		msgs = append(msgs, openAICompatMsg{Role: m.Role, Content: m.Content})
	}
	return a.generate(ctx, msgs, jsonMode)
}

func (a *openAICompatAdapter) generate(ctx context.Context, msgs []openAICompatMsg, jsonMode bool) (GenerateResult, error) {
	reqBody := openAICompatRequest{Model: a.modelName, Messages: msgs}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshaling %s request: %w", a.provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("building %s request: %w", a.provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key, ok := a.ResolveAPIKey(); ok {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}
	for k, v := range a.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("calling %s: %w", a.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("reading %s response: %w", a.provider, err)
	}
	if resp.StatusCode >= 400 {
		return GenerateResult{}, fmt.Errorf("%s returned status %d: %s", a.provider, resp.StatusCode, string(raw))
	}

	var parsed openAICompatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResult{}, fmt.Errorf("decoding %s response: %w", a.provider, err)
	}

	var text string
	if len(parsed.Choices) > 0 {
		text = parsed.Choices[0].Message.Content
	}

	return GenerateResult{
		Text:         text,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		ModelID:      a.modelID,
		Provider:     a.provider,
		ContextLimit: a.contextLimit,
	}, nil
}

// extraHeaders pulls the optional models.<id>.parameters.headers map out of
// a model's raw config document.
func extraHeaders(raw map[string]any) map[string]string {
	out := map[string]string{}
	params, _ := raw["parameters"].(map[string]any)
	headers, _ := params["headers"].(map[string]any)
	for k, v := range headers {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func modelNameOrID(modelID string, cfg config.ModelConfig) string {
	if cfg.ModelName != "" {
		return cfg.ModelName
	}
	return modelID
}
