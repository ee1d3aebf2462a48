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

const (
	claudeDefaultBaseURL = "https://api.anthropic.com"
	claudeAPIVersion     = "2023-06-01"
	claudeDefaultModel   = "claude-sonnet-4-5-20250929"
	claudeDefaultMaxOut  = 4096
)

type claudeAdapter struct {
	modelID        string
	baseURL        string
	modelName      string
	apiKeyExplicit string
	envKey         string
	contextLimit   int
	client         *http.Client
}

func newClaudeProvider(modelID string, cfg config.ModelConfig) Provider {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = claudeDefaultBaseURL
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = claudeDefaultModel
	}
	return &claudeAdapter{
		modelID:        modelID,
		baseURL:        baseURL,
		modelName:      modelName,
		apiKeyExplicit: cfg.APIKey,
		envKey:         firstNonEmpty(cfg.EnvKey, "ANTHROPIC_API_KEY"),
		contextLimit:   cfg.ContextLimit,
		client:         httpClient(cfg.Timeout),
	}
}

func (a *claudeAdapter) GetContextLimit() int { return a.contextLimit }

func (a *claudeAdapter) ResolveAPIKey() (string, bool) {
	return resolveAPIKey(a.apiKeyExplicit, a.envKey)
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *claudeAdapter) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (GenerateResult, error) {
	system := ""
	if jsonMode {
		system = "Respond with strict, valid JSON only. No prose, no markdown fences."
	}
	return a.generate(ctx, system, []claudeMessage{{Role: "user", Content: prompt}})
}

func (a *claudeAdapter) GenerateWithHistory(ctx context.Context, messages []ChatTurn, systemPrompt string, jsonMode bool) (GenerateResult, error) {
	if jsonMode {
		systemPrompt = joinNonEmpty(systemPrompt, "Respond with strict, valid JSON only. No prose, no markdown fences.")
	}
	msgs := make([]claudeMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "system" {
			// Claude's Messages API carries system separately; fold any
			// mid-history system turn (the session manager's gist prefix)
			// into the system prompt instead of the turn list.
			systemPrompt = joinNonEmpty(systemPrompt, m.Content)
			continue
		}
		msgs = append(msgs, claudeMessage{Role: role, Content: m.Content})
	}
	return a.generate(ctx, systemPrompt, msgs)
}

func (a *claudeAdapter) generate(ctx context.Context, system string, messages []claudeMessage) (GenerateResult, error) {
	reqBody := claudeRequest{Model: a.modelName, MaxTokens: claudeDefaultMaxOut, System: system, Messages: messages}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshaling claude request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("building claude request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)
	if key, ok := a.ResolveAPIKey(); ok {
		httpReq.Header.Set("x-api-key", key)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("calling claude: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("reading claude response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return GenerateResult{}, fmt.Errorf("claude returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed claudeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResult{}, fmt.Errorf("decoding claude response: %w", err)
	}

	var text string
	if len(parsed.Content) > 0 {
		text = parsed.Content[0].Text
	}

	return GenerateResult{
		Text:         text,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		ModelID:      a.modelID,
		Provider:     "claude",
		ContextLimit: a.contextLimit,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p
	}
	return out
}
