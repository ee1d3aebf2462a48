package provider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/auracore/aurarouter/config"
)

const llamaCppDefaultBinary = "llama-cli"

// llamaCppAdapter drives an embedded GGUF model by invoking the llama.cpp
// CLI binary as a subprocess per call, rather than talking to a running
// server. This is the distinction the config schema draws between `llamacpp`
// (embedded) and `llamacpp-server` (a long-lived process reached over
// HTTP, see llamacppserver.go).
type llamaCppAdapter struct {
	modelID      string
	binary       string
	modelPath    string
	contextLimit int
	parameters   map[string]any
}

func newLlamaCppProvider(modelID string, cfg config.ModelConfig) Provider {
	binary := llamaCppDefaultBinary
	if v, ok := cfg.Raw()["binary"].(string); ok && v != "" {
		binary = v
	}
	return &llamaCppAdapter{
		modelID:      modelID,
		binary:       binary,
		modelPath:    cfg.ModelPath,
		contextLimit: cfg.ContextLimit,
		parameters:   cfg.Parameters,
	}
}

func (a *llamaCppAdapter) GetContextLimit() int { return a.contextLimit }
func (a *llamaCppAdapter) ResolveAPIKey() (string, bool) { return "", false }

func (a *llamaCppAdapter) GenerateWithUsage(ctx context.Context, prompt string, jsonMode bool) (GenerateResult, error) {
	if jsonMode {
		prompt = "Respond with strict, valid JSON only. No prose.\n\n" + prompt
	}
	text, err := a.run(ctx, prompt)
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{
		Text:         text,
		InputTokens:  estimateTokens(prompt),
		OutputTokens: estimateTokens(text),
		ModelID:      a.modelID,
		Provider:     "llamacpp",
		ContextLimit: a.contextLimit,
	}, nil
}

func (a *llamaCppAdapter) GenerateWithHistory(ctx context.Context, messages []ChatTurn, systemPrompt string, jsonMode bool) (GenerateResult, error) {
	var b strings.Builder
	if systemPrompt != "" {
		fmt.Fprintf(&b, "System: %s\n\n", systemPrompt)
	}
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", capitalize(m.Role), m.Content)
	}
	return a.GenerateWithUsage(ctx, b.String(), jsonMode)
}

func (a *llamaCppAdapter) run(ctx context.Context, prompt string) (string, error) {
	args := []string{"-m", a.modelPath, "-p", prompt, "--no-display-prompt"}
	if n, ok := a.parameters["n_ctx"]; ok {
		args = append(args, "-c", toArgString(n))
	}
	if n, ok := a.parameters["n_gpu_layers"]; ok {
		args = append(args, "-ngl", toArgString(n))
	}

	cmd := exec.CommandContext(ctx, a.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running llama.cpp: %w (%s)", err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func toArgString(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.Itoa(int(n))
	default:
		return fmt.Sprintf("%v", n)
	}
}

// estimateTokens is llama.cpp's own token count substitute: the CLI does
// not report usage, so the fabric's cost accounting treats this as a
// rough estimate rather than an exact count.
func estimateTokens(text string) int {
	n := len(strings.TrimSpace(text)) / 4
	if n < 1 {
		return 1
	}
	return n
}
