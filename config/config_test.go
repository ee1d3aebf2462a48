package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "auraconfig.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadDiscoversExplicitPathOverEnvAndHome(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, "roles:\n  coding: [m1]\n")

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("Path() = %q, want %q", store.Path(), path)
	}
	if got := store.GetRoleChain("coding"); len(got) != 1 || got[0] != "m1" {
		t.Fatalf("GetRoleChain(coding) = %v, want [m1]", got)
	}
}

func TestLoadMissingReturnsConfigNotFoundError(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing explicit path")
	}
	if _, ok := err.(*configNotFoundError); !ok {
		t.Fatalf("error = %T, want *configNotFoundError", err)
	}
}

func TestLoadAllowMissingStartsEmpty(t *testing.T) {
	store := LoadAllowMissing()
	if store.Path() != "" {
		t.Fatalf("Path() = %q, want empty", store.Path())
	}
	if got := store.GetAllModelIDs(); len(got) != 0 {
		t.Fatalf("GetAllModelIDs() = %v, want empty", got)
	}
}

func TestGetRoleChainNormalizesFlatAndNestedShapes(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, `
roles:
  flat: [a, b]
  nested:
    chain: [c, d]
  modelsKey:
    models: [e]
`)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := store.GetRoleChain("flat"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("flat chain = %v", got)
	}
	if got := store.GetRoleChain("nested"); len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Fatalf("nested chain = %v", got)
	}
	if got := store.GetRoleChain("modelsKey"); len(got) != 1 || got[0] != "e" {
		t.Fatalf("modelsKey chain = %v", got)
	}
	if got := store.GetRoleChain("missing"); got != nil {
		t.Fatalf("missing role chain = %v, want nil", got)
	}
}

func TestGetModelConfigParsesFieldsAndDefaultsTimeout(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir, `
models:
  m1:
    provider: ollama
    endpoint: http://localhost:11434
    context_limit: 8192
    cost_per_1m_input: 0.5
    cost_per_1m_output: 1.5
    tags: [fast, local]
  m2:
    provider: claude
`)
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	m1 := store.GetModelConfig("m1")
	if m1.IsZero() {
		t.Fatal("m1 should not be zero")
	}
	if m1.Provider != "ollama" || m1.ContextLimit != 8192 {
		t.Fatalf("m1 = %+v", m1)
	}
	if m1.CostPerMillionInput == nil || *m1.CostPerMillionInput != 0.5 {
		t.Fatalf("m1 cost input = %v, want 0.5", m1.CostPerMillionInput)
	}
	if len(m1.Tags) != 2 {
		t.Fatalf("m1 tags = %v", m1.Tags)
	}

	m2 := store.GetModelConfig("m2")
	if m2.Timeout != 120.0 {
		t.Fatalf("m2 default timeout = %v, want 120", m2.Timeout)
	}

	if got := store.GetModelConfig("missing"); !got.IsZero() {
		t.Fatal("missing model should be zero")
	}
}

func TestSetModelAndRemoveModel(t *testing.T) {
	store := LoadAllowMissing()
	store.SetModel("m1", map[string]any{"provider": "ollama"})

	got := store.GetModelConfig("m1")
	if got.IsZero() || got.Provider != "ollama" {
		t.Fatalf("GetModelConfig after SetModel = %+v", got)
	}

	if ok := store.RemoveModel("m1"); !ok {
		t.Fatal("RemoveModel should report true for an existing model")
	}
	if ok := store.RemoveModel("m1"); ok {
		t.Fatal("RemoveModel should report false the second time")
	}
	if got := store.GetModelConfig("m1"); !got.IsZero() {
		t.Fatal("model should be gone after RemoveModel")
	}
}

func TestSetRoleChainAndRemoveRole(t *testing.T) {
	store := LoadAllowMissing()
	store.SetRoleChain("coding", []string{"a", "b"})

	if got := store.GetRoleChain("coding"); len(got) != 2 {
		t.Fatalf("GetRoleChain after SetRoleChain = %v", got)
	}

	if ok := store.RemoveRole("coding"); !ok {
		t.Fatal("RemoveRole should report true for an existing role")
	}
	if ok := store.RemoveRole("coding"); ok {
		t.Fatal("RemoveRole should report false the second time")
	}
}

func TestSetSemanticVerbAndGetSemanticVerbs(t *testing.T) {
	store := LoadAllowMissing()
	store.SetSemanticVerb("coding", []string{"ship", "build"})

	got := store.GetSemanticVerbs()
	verbs, ok := got["coding"]
	if !ok || len(verbs) != 2 || verbs[0] != "ship" {
		t.Fatalf("GetSemanticVerbs() = %v", got)
	}
}

func TestMCPToolEnabledDefaultsAndOverrides(t *testing.T) {
	store := LoadAllowMissing()
	if !store.IsMCPToolEnabled("route_task", true) {
		t.Fatal("should fall back to the default when unset")
	}
	if store.IsMCPToolEnabled("route_task", false) {
		t.Fatal("should fall back to the default (false) when unset")
	}

	store.SetMCPToolEnabled("route_task", false)
	if store.IsMCPToolEnabled("route_task", true) {
		t.Fatal("explicit false override should win over the default true")
	}
}

func TestSaveWritesAtomicallyAndUpdatesPath(t *testing.T) {
	dir := t.TempDir()
	store := LoadAllowMissing()
	store.SetModel("m1", map[string]any{"provider": "ollama"})

	target := filepath.Join(dir, "out.yaml")
	savedPath, err := store.Save(target)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if savedPath != target {
		t.Fatalf("Save returned %q, want %q", savedPath, target)
	}
	if store.Path() != target {
		t.Fatalf("Path() after Save = %q, want %q", store.Path(), target)
	}

	reloaded, err := Load(target)
	if err != nil {
		t.Fatalf("reloading saved config: %v", err)
	}
	if got := reloaded.GetModelConfig("m1"); got.IsZero() {
		t.Fatal("reloaded config should retain the saved model")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("leftover temp file after Save: %s", e.Name())
		}
	}
}

func TestIsSavingsEnabledDefaultsTrue(t *testing.T) {
	store := LoadAllowMissing()
	if !store.IsSavingsEnabled() {
		t.Fatal("savings should default to enabled")
	}
}
