// Package config loads, mutates, and atomically persists auraconfig.yaml,
// the domain configuration consumed by the compute fabric and its
// collaborators (roles, models, savings, sessions, tool enablement).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/auracore/aurarouter/logger"
)

var log = logger.New("config")

const envConfigPath = "AURACORE_ROUTER_CONFIG"

type configNotFoundError struct {
	searched []string
}

func (e *configNotFoundError) Error() string {
	return "could not find 'auraconfig.yaml'. Searched in the following locations:\n" +
		strings.Join(e.searched, "\n")
}

// ModelConfig is the normalized view of a single models.<model_id> entry.
type ModelConfig struct {
	Provider             string
	Endpoint             string
	ModelName            string
	ModelPath            string
	APIKey               string
	EnvKey               string
	HostingTier          string
	ContextLimit         int
	Tags                 []string
	CostPerMillionInput  *float64
	CostPerMillionOutput *float64
	Parameters           map[string]any
	Timeout              float64
	Endpoints            []string
	raw                  map[string]any
}

// Raw returns the underlying decoded map for provider-specific fields the
// normalized struct does not surface (e.g. llamacpp's n_ctx/n_gpu_layers).
func (m ModelConfig) Raw() map[string]any { return m.raw }

// IsZero reports whether the model config was absent.
func (m ModelConfig) IsZero() bool { return m.raw == nil }

// Store is the thread-safe, hot-reloadable domain configuration document.
type Store struct {
	mu   sync.RWMutex
	doc  map[string]any
	path string
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".auracore", "aurarouter", "auraconfig.yaml")
}

// Load resolves and parses auraconfig.yaml using the discovery precedence:
// explicit path argument -> AURACORE_ROUTER_CONFIG -> ~/.auracore/aurarouter/auraconfig.yaml.
func Load(explicitPath string) (*Store, error) {
	resolved, searched := discover(explicitPath)
	if resolved == "" {
		return nil, &configNotFoundError{searched: searched}
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}
	doc := map[string]any{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", resolved, err)
		}
	}
	log.Info().Str("path", resolved).Msg("loaded configuration")
	return &Store{doc: doc, path: resolved}, nil
}

// LoadAllowMissing starts from an empty in-memory document, used by tests
// and by callers that bootstrap configuration programmatically.
func LoadAllowMissing() *Store {
	return &Store{doc: map[string]any{}}
}

func discover(explicitPath string) (string, []string) {
	var searched []string

	if explicitPath != "" {
		if isFile(explicitPath) {
			return explicitPath, nil
		}
		searched = append(searched, fmt.Sprintf("  - Command line (--config): %s", explicitPath))
	}

	if env := os.Getenv(envConfigPath); env != "" {
		if isFile(env) {
			return env, nil
		}
		searched = append(searched, fmt.Sprintf("  - Environment variable (%s): %s", envConfigPath, env))
	}

	home := defaultConfigPath()
	if isFile(home) {
		return home, nil
	}
	searched = append(searched, fmt.Sprintf("  - User home directory: %s", home))

	return "", searched
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Path returns the path the config was loaded from, or will be saved to.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// ---------------------------------------------------------------------
// Read accessors
// ---------------------------------------------------------------------

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// GetRoleChain returns the ordered model chain for role, normalizing both
// the flat-list and {chain:[...]} config shapes.
func (s *Store) GetRoleChain(role string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := asMap(s.doc["roles"])
	entry, ok := roles[role]
	if !ok {
		return nil
	}
	if m, ok := entry.(map[string]any); ok {
		if chain := asStringSlice(m["chain"]); chain != nil {
			return chain
		}
		return asStringSlice(m["models"])
	}
	return asStringSlice(entry)
}

// GetModelConfig returns the normalized config for modelID, or a zero value
// (IsZero()==true) if the model has no entry.
func (s *Store) GetModelConfig(modelID string) ModelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	models := asMap(s.doc["models"])
	raw, ok := models[modelID].(map[string]any)
	if !ok {
		return ModelConfig{}
	}
	return parseModelConfig(raw)
}

func parseModelConfig(raw map[string]any) ModelConfig {
	cfg := ModelConfig{raw: raw}
	cfg.Provider, _ = raw["provider"].(string)
	cfg.Endpoint, _ = raw["endpoint"].(string)
	cfg.ModelName, _ = raw["model_name"].(string)
	cfg.ModelPath, _ = raw["model_path"].(string)
	cfg.APIKey, _ = raw["api_key"].(string)
	cfg.EnvKey, _ = raw["env_key"].(string)
	cfg.HostingTier, _ = raw["hosting_tier"].(string)
	cfg.Tags = asStringSlice(raw["tags"])
	cfg.Parameters = asMap(raw["parameters"])
	cfg.Endpoints = asStringSlice(raw["endpoints"])

	if limit, ok := toInt(raw["context_limit"]); ok {
		cfg.ContextLimit = limit
	}
	if timeout, ok := toFloat(raw["timeout"]); ok {
		cfg.Timeout = timeout
	} else {
		cfg.Timeout = 120.0
	}
	if v, ok := toFloat(raw["cost_per_1m_input"]); ok {
		cfg.CostPerMillionInput = &v
	}
	if v, ok := toFloat(raw["cost_per_1m_output"]); ok {
		cfg.CostPerMillionOutput = &v
	}
	return cfg
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// GetModelPricing returns the per-model cost override pair, nil when absent.
func (s *Store) GetModelPricing(modelID string) (inputPerM, outputPerM *float64) {
	cfg := s.GetModelConfig(modelID)
	return cfg.CostPerMillionInput, cfg.CostPerMillionOutput
}

// GetModelHostingTier returns the explicit hosting_tier for modelID, or "" if absent.
func (s *Store) GetModelHostingTier(modelID string) string {
	return s.GetModelConfig(modelID).HostingTier
}

// GetAllModelIDs returns every configured model_id.
func (s *Store) GetAllModelIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	models := asMap(s.doc["models"])
	ids := make([]string, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	return ids
}

// GetAllRoles returns every configured role name.
func (s *Store) GetAllRoles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := asMap(s.doc["roles"])
	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	return names
}

// GetSavingsConfig returns the savings section, or {} if absent.
func (s *Store) GetSavingsConfig() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return asMap(s.doc["savings"])
}

// SetSavings replaces the entire savings section wholesale. Primarily
// useful for tests and programmatic bootstrapping; config files normally
// set budget/privacy/pricing_overrides/triage directly on disk.
func (s *Store) SetSavings(savings map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc["savings"] = savings
}

func (s *Store) GetBudgetConfig() map[string]any { return asMap(s.GetSavingsConfig()["budget"]) }
func (s *Store) GetPrivacyConfig() map[string]any { return asMap(s.GetSavingsConfig()["privacy"]) }
func (s *Store) GetPricingOverrides() map[string]any { return asMap(s.GetSavingsConfig()["pricing_overrides"]) }
func (s *Store) GetTriageConfig() map[string]any { return asMap(s.GetSavingsConfig()["triage"]) }

// IsSavingsEnabled defaults to true when the savings section omits "enabled".
func (s *Store) IsSavingsEnabled() bool {
	if v, ok := s.GetSavingsConfig()["enabled"].(bool); ok {
		return v
	}
	return true
}

// GetSessionsConfig returns the sessions section, or {} if absent.
func (s *Store) GetSessionsConfig() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return asMap(s.doc["sessions"])
}

// GetMaxReviewIterations reads execution.max_review_iterations (default 3).
func (s *Store) GetMaxReviewIterations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	execution := asMap(s.doc["execution"])
	if n, ok := toInt(execution["max_review_iterations"]); ok {
		return n
	}
	return 3
}

// GetMCPToolsConfig returns the mcp.tools section, or {} if absent.
func (s *Store) GetMCPToolsConfig() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mcp := asMap(s.doc["mcp"])
	return asMap(mcp["tools"])
}

// IsMCPToolEnabled returns whether toolName is enabled, falling back to
// defaultEnabled when the tool has no explicit entry.
func (s *Store) IsMCPToolEnabled(toolName string, defaultEnabled bool) bool {
	tools := s.GetMCPToolsConfig()
	entry := asMap(tools[toolName])
	if v, ok := entry["enabled"].(bool); ok {
		return v
	}
	return defaultEnabled
}

// SetMCPToolEnabled sets the enabled state for toolName.
func (s *Store) SetMCPToolEnabled(toolName string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mcp, _ := s.doc["mcp"].(map[string]any)
	if mcp == nil {
		mcp = map[string]any{}
		s.doc["mcp"] = mcp
	}
	tools, _ := mcp["tools"].(map[string]any)
	if tools == nil {
		tools = map[string]any{}
		mcp["tools"] = tools
	}
	entry, _ := tools[toolName].(map[string]any)
	if entry == nil {
		entry = map[string]any{}
		tools[toolName] = entry
	}
	entry["enabled"] = enabled
}

// GetSemanticVerbs returns {role: [synonym, ...]} from the config document.
func (s *Store) GetSemanticVerbs() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw := asMap(s.doc["semantic_verbs"])
	result := make(map[string][]string, len(raw))
	for role, v := range raw {
		switch val := v.(type) {
		case map[string]any:
			result[role] = asStringSlice(val["synonyms"])
		case []any:
			result[role] = asStringSlice(val)
		}
	}
	return result
}

// SetSemanticVerb sets the synonym list for role.
func (s *Store) SetSemanticVerb(role string, synonyms []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	section, _ := s.doc["semantic_verbs"].(map[string]any)
	if section == nil {
		section = map[string]any{}
		s.doc["semantic_verbs"] = section
	}
	list := make([]any, len(synonyms))
	for i, v := range synonyms {
		list[i] = v
	}
	section[role] = map[string]any{"synonyms": list}
}

// ---------------------------------------------------------------------
// Mutation methods
// ---------------------------------------------------------------------

// SetModel adds or updates a model definition.
func (s *Store) SetModel(modelID string, modelConfig map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	models, _ := s.doc["models"].(map[string]any)
	if models == nil {
		models = map[string]any{}
		s.doc["models"] = models
	}
	models[modelID] = modelConfig
}

// RemoveModel removes a model definition, reporting whether it existed.
func (s *Store) RemoveModel(modelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	models := asMap(s.doc["models"])
	if _, ok := models[modelID]; ok {
		delete(models, modelID)
		return true
	}
	return false
}

// SetRoleChain sets the flat-list model chain for role.
func (s *Store) SetRoleChain(role string, chain []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles, _ := s.doc["roles"].(map[string]any)
	if roles == nil {
		roles = map[string]any{}
		s.doc["roles"] = roles
	}
	list := make([]any, len(chain))
	for i, v := range chain {
		list[i] = v
	}
	roles[role] = list
}

// RemoveRole removes role, reporting whether it existed.
func (s *Store) RemoveRole(role string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := asMap(s.doc["roles"])
	if _, ok := roles[role]; ok {
		delete(roles, role)
		return true
	}
	return false
}

// ---------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------

// Save atomically writes the current document to path (or the path it was
// loaded from / the default path) via write-temp-then-rename.
func (s *Store) Save(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := path
	if target == "" {
		target = s.path
	}
	if target == "" {
		target = defaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(s.doc)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "*.yaml.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp config file: %w", err)
	}

	s.path = target
	log.Info().Str("path", target).Msg("configuration saved")
	return target, nil
}

// ToYAML returns the current document as a YAML string, for preview.
func (s *Store) ToYAML() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := yaml.Marshal(s.doc)
	return string(data), err
}
