// Package tools implements the fabric's public tool-invocation surface:
// the handful of entry points an MCP-style transport would dispatch to.
// Every function takes the fabric and its collaborators as explicit
// arguments rather than reaching for a singleton, so a hot config reload
// never has to chase package-level state.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/auracore/aurarouter/assets"
	"github.com/auracore/aurarouter/fabric"
	"github.com/auracore/aurarouter/intent"
	"github.com/auracore/aurarouter/savings"
	"github.com/auracore/aurarouter/semanticverbs"
	"github.com/auracore/aurarouter/session"
)

// execFn adapts Fabric.Execute to the bare (ctx, role, prompt) signature
// the intent package depends on, without intent importing fabric.
func execFn(f *fabric.Fabric) func(context.Context, string, string) (string, bool) {
	return func(ctx context.Context, role, prompt string) (string, bool) {
		return f.Execute(ctx, role, prompt)
	}
}

// RouteTask classifies task via analyze_intent (role "router"); SIMPLE_CODE
// intents execute directly with an output-only instruction appended,
// COMPLEX_REASONING intents are decomposed via generate_plan (role
// "reasoning") and executed step by step, accumulating a transcript.
func RouteTask(ctx context.Context, f *fabric.Fabric, triage *savings.TriageRouter, task, taskContext string) string {
	verdict := intent.AnalyzeIntent(ctx, execFn(f), task)
	role := "coding"
	if triage != nil {
		role = triage.Route(verdict.Complexity)
	}

	if verdict.Intent == intent.SimpleCode {
		prompt := task + "\nRESPOND WITH OUTPUT ONLY."
		text, ok := f.Execute(ctx, role, prompt, fabric.WithIntent(verdict.Intent))
		if !ok {
			return "ERROR: no model in the fleet could complete this task."
		}
		return text
	}

	steps := intent.GeneratePlan(ctx, execFn(f), task, taskContext)
	var transcript strings.Builder
	for i, step := range steps {
		text, ok := f.Execute(ctx, role, step, fabric.WithIntent(verdict.Intent))
		if !ok {
			fmt.Fprintf(&transcript, "\n# Step %d Failed.\n", i+1)
			continue
		}
		fmt.Fprintf(&transcript, "\n# --- Step %d: %s ---\n%s", i+1, step, text)
	}
	return transcript.String()
}

// onPremProviders is the set of provider tags local_inference restricts
// its filtered chain to.
var onPremProviders = map[string]bool{"ollama": true, "llamacpp": true, "llamacpp-server": true}

// LocalInference filters the "coding" role chain down to on-prem-provider
// models and executes against that filtered chain only, so a caller can
// demand data never leave the premises for this one call.
func LocalInference(ctx context.Context, f *fabric.Fabric, prompt string) string {
	chain := f.Config().GetRoleChain("coding")
	filtered := make([]string, 0, len(chain))
	for _, modelID := range chain {
		cfg := f.Config().GetModelConfig(modelID)
		if cfg.IsZero() {
			continue
		}
		if onPremProviders[cfg.Provider] {
			filtered = append(filtered, modelID)
		}
	}
	if len(filtered) == 0 {
		return "ERROR: no on-prem models are configured for the 'coding' role."
	}
	text, ok := f.Execute(ctx, "coding", prompt, fabric.WithChainOverride(filtered))
	if !ok {
		return "ERROR: all configured on-prem models failed this request."
	}
	return text
}

// GenerateCode mirrors RouteTask's plan/no-plan branch with a
// code-oriented prompt and a language parameter threaded into every step.
func GenerateCode(ctx context.Context, f *fabric.Fabric, triage *savings.TriageRouter, taskDescription, fileContext, language string) string {
	task := taskDescription
	if fileContext != "" {
		task = task + "\n\nFile context:\n" + fileContext
	}
	verdict := intent.AnalyzeIntent(ctx, execFn(f), task)
	role := "coding"
	if triage != nil {
		role = triage.Route(verdict.Complexity)
	}

	if verdict.Intent == intent.SimpleCode {
		prompt := fmt.Sprintf("%s\nLanguage: %s\nCODE ONLY. Return ONLY valid code.", task, language)
		text, ok := f.Execute(ctx, role, prompt, fabric.WithIntent(verdict.Intent))
		if !ok {
			return "ERROR: no model in the fleet could complete this task."
		}
		return text
	}

	steps := intent.GeneratePlan(ctx, execFn(f), task, fileContext)
	var transcript strings.Builder
	for i, step := range steps {
		prompt := fmt.Sprintf("%s\nLanguage: %s\nCODE ONLY. Return ONLY valid code.", step, language)
		text, ok := f.Execute(ctx, role, prompt, fabric.WithIntent(verdict.Intent))
		if !ok {
			fmt.Fprintf(&transcript, "\n# Step %d Failed.\n", i+1)
			continue
		}
		fmt.Fprintf(&transcript, "\n# --- Step %d: %s ---\n%s", i+1, step, text)
	}
	return transcript.String()
}

// ModelSummary is one row of ListModels' output.
type ModelSummary struct {
	ModelID   string   `json:"model_id"`
	Provider  string   `json:"provider"`
	Endpoint  string   `json:"endpoint,omitempty"`
	ModelName string   `json:"model_name,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// ListModels dumps every configured model.
func ListModels(f *fabric.Fabric) []ModelSummary {
	ids := f.Config().GetAllModelIDs()
	sort.Strings(ids)
	out := make([]ModelSummary, 0, len(ids))
	for _, id := range ids {
		cfg := f.Config().GetModelConfig(id)
		out = append(out, ModelSummary{
			ModelID: id, Provider: cfg.Provider, Endpoint: cfg.Endpoint,
			ModelName: cfg.ModelName, Tags: cfg.Tags,
		})
	}
	return out
}

// CompareModels invokes ExecuteAll against a comma-separated models
// filter (empty means the whole chain) and renders a headed transcript.
// The transport layer keeps this tool disabled by default.
func CompareModels(ctx context.Context, f *fabric.Fabric, role, prompt, modelsCSV string) string {
	var modelIDs []string
	if modelsCSV != "" {
		for _, id := range strings.Split(modelsCSV, ",") {
			if id = strings.TrimSpace(id); id != "" {
				modelIDs = append(modelIDs, id)
			}
		}
	}

	results := f.ExecuteAll(ctx, role, prompt, modelIDs, false)
	var out strings.Builder
	for _, r := range results {
		status := "FAILED"
		if r.Success {
			status = "SUCCESS"
		}
		fmt.Fprintf(&out, "=== %s (%s) [%s] (%.2fs, %din/%dout) ===\n%s\n\n",
			r.ModelID, r.Provider, status, r.ElapsedSeconds, r.InputTokens, r.OutputTokens, r.Text)
	}
	return out.String()
}

// ResolveRole applies custom and built-in semantic-verb synonyms. The
// config document stores verbs grouped by role ({role: [synonym, ...]});
// ResolveSynonym wants the inverse ({synonym: role}), so it's inverted here
// rather than pushing that shape into the config package's public API.
func ResolveRole(f *fabric.Fabric, name string) string {
	byRole := f.Config().GetSemanticVerbs()
	custom := make(map[string]string, len(byRole))
	for role, synonyms := range byRole {
		for _, syn := range synonyms {
			custom[strings.ToLower(strings.TrimSpace(syn))] = role
		}
	}
	return semanticverbs.ResolveSynonym(name, custom)
}

// --- Session tools ---

// CreateSessionResult is create_session's response.
type CreateSessionResult struct {
	SessionID    string `json:"session_id"`
	ContextLimit int    `json:"context_limit"`
}

// CreateSession resolves context_limit from the first model in role's
// chain and starts a new session.
func CreateSession(ctx context.Context, f *fabric.Fabric, role string) (CreateSessionResult, error) {
	if f.Sessions == nil {
		return CreateSessionResult{}, fabric.ErrSessionsDisabled
	}
	contextLimit := 0
	chain := f.Config().GetRoleChain(role)
	if len(chain) > 0 {
		if cfg := f.Config().GetModelConfig(chain[0]); !cfg.IsZero() {
			contextLimit = cfg.ContextLimit
		}
	}
	sess, err := f.Sessions.Create(ctx, contextLimit)
	if err != nil {
		return CreateSessionResult{}, err
	}
	return CreateSessionResult{SessionID: sess.SessionID, ContextLimit: contextLimit}, nil
}

// SessionMessage loads the session, executes message against role, and
// returns the response text.
func SessionMessage(ctx context.Context, f *fabric.Fabric, sessionID, role, message string) (string, error) {
	if f.Sessions == nil {
		return "", fabric.ErrSessionsDisabled
	}
	sess, ok, err := f.Sessions.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("session %s not found", sessionID)
	}
	f.Sessions.CondenseIfNeeded(ctx, sess)

	result, ok, err := f.ExecuteSession(ctx, role, sess, message, true)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("every model for role %q failed", role)
	}
	return result.Text, nil
}

// SessionStatus returns a session's current state for status tooling.
func SessionStatus(ctx context.Context, f *fabric.Fabric, sessionID string) (*session.Session, error) {
	if f.Sessions == nil {
		return nil, fabric.ErrSessionsDisabled
	}
	sess, ok, err := f.Sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return sess, nil
}

// ListSessions returns recency-ordered session summaries.
func ListSessions(ctx context.Context, f *fabric.Fabric, limit, offset int) ([]session.SessionSummary, error) {
	if f.Sessions == nil {
		return nil, fabric.ErrSessionsDisabled
	}
	return f.Sessions.List(ctx, limit, offset)
}

// DeleteSession removes a session.
func DeleteSession(ctx context.Context, f *fabric.Fabric, sessionID string) (bool, error) {
	if f.Sessions == nil {
		return false, fabric.ErrSessionsDisabled
	}
	return f.Sessions.Delete(ctx, sessionID)
}

// --- Asset tools (namespaced <app>.assets.list|register|unregister) ---

// ListAssets dumps the asset store.
func ListAssets(store *assets.Store) []assets.Entry {
	return store.List()
}

// RegisterAsset validates and records a local GGUF file, wiring a
// llamacpp model config entry for it.
func RegisterAsset(f *fabric.Fabric, store *assets.Store, modelID, repo, filePath string) (assets.Entry, error) {
	return store.Register(f.Config(), modelID, repo, filePath)
}

// UnregisterAsset removes modelID from the asset registry only.
func UnregisterAsset(store *assets.Store, modelID string) (bool, error) {
	return store.Unregister(modelID)
}
