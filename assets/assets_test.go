package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/auracore/aurarouter/config"
)

func TestRegisterValidatesExtensionAndWiresModelConfig(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "assets.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ggufPath := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(ggufPath, []byte("fake weights"), 0o644); err != nil {
		t.Fatalf("writing fake gguf: %v", err)
	}

	cfg := testConfigStore(t, dir)
	entry, err := store.Register(cfg, "local-1", "some/repo", ggufPath)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if entry.Filename != "model.gguf" {
		t.Fatalf("Filename = %q, want model.gguf", entry.Filename)
	}

	modelCfg := cfg.GetModelConfig("local-1")
	if modelCfg.IsZero() || modelCfg.Provider != "llamacpp" {
		t.Fatalf("expected a llamacpp model config entry, got %+v", modelCfg)
	}

	listed := store.List()
	if len(listed) != 1 {
		t.Fatalf("List() = %v, want 1 entry", listed)
	}
}

func TestRegisterRejectsNonGGUF(t *testing.T) {
	dir := t.TempDir()
	store, _ := Open(filepath.Join(dir, "assets.json"))

	badPath := filepath.Join(dir, "model.bin")
	os.WriteFile(badPath, []byte("x"), 0o644)

	if _, err := store.Register(config.LoadAllowMissing(), "m1", "repo", badPath); err == nil {
		t.Fatal("expected an error for a non-.gguf file")
	}
}

func TestRegisterRejectsDuplicateModelID(t *testing.T) {
	dir := t.TempDir()
	store, _ := Open(filepath.Join(dir, "assets.json"))
	ggufPath := filepath.Join(dir, "model.gguf")
	os.WriteFile(ggufPath, []byte("x"), 0o644)

	cfg := testConfigStore(t, dir)
	if _, err := store.Register(cfg, "dup", "repo", ggufPath); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := store.Register(cfg, "dup", "repo", ggufPath); err == nil {
		t.Fatal("expected a duplicate model_id to be rejected")
	}
}

func TestUnregisterLeavesModelConfigIntact(t *testing.T) {
	dir := t.TempDir()
	store, _ := Open(filepath.Join(dir, "assets.json"))
	ggufPath := filepath.Join(dir, "model.gguf")
	os.WriteFile(ggufPath, []byte("x"), 0o644)

	cfg := testConfigStore(t, dir)
	if _, err := store.Register(cfg, "m1", "repo", ggufPath); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ok, err := store.Unregister("m1")
	if err != nil || !ok {
		t.Fatalf("Unregister: ok=%v err=%v", ok, err)
	}
	if len(store.List()) != 0 {
		t.Fatal("expected asset registry to be empty after unregister")
	}
	if cfg.GetModelConfig("m1").IsZero() {
		t.Fatal("unregister must not remove the config store's model entry")
	}
}

// testConfigStore returns a config.Store whose Save path is confined to
// dir, so Register's internal cfg.Save call never touches a real home
// directory during tests.
func testConfigStore(t *testing.T, dir string) *config.Store {
	t.Helper()
	path := filepath.Join(dir, "auraconfig.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("seeding config file: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg
}
