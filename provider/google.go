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
	googleDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	googleDefaultModel   = "gemini-2.0-flash"
)

type googleAdapter struct {
	modelID        string
	baseURL        string
	modelName      string
	apiKeyExplicit string
	envKey         string
	contextLimit   int
	client         *http.Client
}

func newGoogleProvider(modelID string, cfg config.ModelConfig) Provider {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = googleDefaultBaseURL
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = googleDefaultModel
	}
	return &googleAdapter{
		modelID:        modelID,
		baseURL:        baseURL,
		modelName:      modelName,
		apiKeyExplicit: cfg.APIKey,
		envKey:         firstNonEmpty(cfg.EnvKey, "GOOGLE_API_KEY"),
		contextLimit:   cfg.ContextLimit,
		client:         httpClient(cfg.Timeout),
	}
}

func (a *googleAdapter) GetContextLimit() int { return a.contextLimit }

func (a *googleAdapter) ResolveAPIKey() (string, bool) {
	return resolveAPIKey(a.apiKeyExplicit, a.envKey)
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type googleRequest struct {
	Contents          []googleContent         `json:"contents"`
	SystemInstruction *googleContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenerationConfig `json:"generationConfig,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (a *googleAdapter) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (GenerateResult, error) {
	return a.generate(ctx, "", []googleContent{{Role: "user", Parts: []googlePart{{Text: prompt}}}}, jsonMode)
}

func (a *googleAdapter) GenerateWithHistory(ctx context.Context, messages []ChatTurn, systemPrompt string, jsonMode bool) (GenerateResult, error) {
	contents := make([]googleContent, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "system" {
			systemPrompt = joinNonEmpty(systemPrompt, m.Content)
			continue
		}
		if role == "assistant" {
			role = "model" // Gemini's wire role for the model's own turns
		}
		contents = append(contents, googleContent{Role: role, Parts: []googlePart{{Text: m.Content}}})
	}
	return a.generate(ctx, systemPrompt, contents, jsonMode)
}

func (a *googleAdapter) generate(ctx context.Context, systemPrompt string, contents []googleContent, jsonMode bool) (GenerateResult, error) {
	reqBody := googleRequest{Contents: contents}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &googleContent{Parts: []googlePart{{Text: systemPrompt}}}
	}
	if jsonMode {
		reqBody.GenerationConfig = &googleGenerationConfig{ResponseMimeType: "application/json"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshaling google request: %w", err)
	}

	key, _ := a.ResolveAPIKey()
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, a.modelName, key)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("building google request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("calling google: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("reading google response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return GenerateResult{}, fmt.Errorf("google returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed googleResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResult{}, fmt.Errorf("decoding google response: %w", err)
	}

	var text string
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		text = parsed.Candidates[0].Content.Parts[0].Text
	}

	return GenerateResult{
		Text:         text,
		InputTokens:  parsed.UsageMetadata.PromptTokenCount,
		OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
		ModelID:      a.modelID,
		Provider:     "google",
		ContextLimit: a.contextLimit,
	}, nil
}
