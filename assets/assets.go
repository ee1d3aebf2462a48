// Package assets tracks locally registered GGUF model files, independent
// of but cross-linked to the config store's model entries.
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/auracore/aurarouter/config"
)

// Entry is one registered local model file.
type Entry struct {
	ModelID      string    `json:"model_id"`
	Repo         string    `json:"repo"`
	Filename     string    `json:"filename"`
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Store is the JSON-file-backed, thread-safe asset registry.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// DefaultPath returns ~/.auracore/aurarouter/assets.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".auracore", "aurarouter", "assets.json")
}

// Open loads (or initializes) the asset registry at path.
func Open(path string) (*Store, error) {
	s := &Store{path: path, entries: map[string]Entry{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading asset registry: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parsing asset registry: %w", err)
	}
	return s, nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating asset registry dir: %w", err)
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling asset registry: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "*.json.tmp")
	if err != nil {
		return fmt.Errorf("creating temp asset registry: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp asset registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp asset registry: %w", err)
	}
	return os.Rename(tmpPath, s.path)
}

// List returns every registered asset.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Register validates that filePath exists and has a .gguf extension,
// rejects a duplicate modelID against both the asset store and cfg, adds a
// llamacpp model config entry and saves cfg, then records the asset, in
// that exact order, so a failure partway leaves a state an operator
// already knows how to recover from.
func (s *Store) Register(cfg *config.Store, modelID, repo, filePath string) (Entry, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return Entry{}, fmt.Errorf("asset file not found: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(filePath), ".gguf") {
		return Entry{}, fmt.Errorf("asset file must have a .gguf extension, got %s", filepath.Ext(filePath))
	}

	s.mu.Lock()
	if _, exists := s.entries[modelID]; exists {
		s.mu.Unlock()
		return Entry{}, fmt.Errorf("model_id %q is already registered", modelID)
	}
	s.mu.Unlock()

	if !cfg.GetModelConfig(modelID).IsZero() {
		return Entry{}, fmt.Errorf("model_id %q already has a config entry", modelID)
	}

	cfg.SetModel(modelID, map[string]any{
		"provider":   "llamacpp",
		"model_path": filePath,
		"tags":       []any{"local", "gguf"},
	})
	if _, err := cfg.Save(""); err != nil {
		return Entry{}, fmt.Errorf("saving config after registering asset: %w", err)
	}

	entry := Entry{
		ModelID:      modelID,
		Repo:         repo,
		Filename:     filepath.Base(filePath),
		Path:         filePath,
		SizeBytes:    info.Size(),
		DownloadedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.entries[modelID] = entry
	err = s.save()
	s.mu.Unlock()
	if err != nil {
		return Entry{}, fmt.Errorf("persisting asset registry: %w", err)
	}
	return entry, nil
}

// Unregister removes modelID from the asset registry only (the
// corresponding config model entry, if any, is left for the operator to
// remove explicitly via config.RemoveModel).
func (s *Store) Unregister(modelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[modelID]; !exists {
		return false, nil
	}
	delete(s.entries, modelID)
	if err := s.save(); err != nil {
		return false, fmt.Errorf("persisting asset registry: %w", err)
	}
	return true, nil
}
