package provider

import (
	"sync"

	"github.com/auracore/aurarouter/config"
)

// Cache owns provider adapter instances, keyed by model_id. It is guarded
// by a single mutex; readers and the one-shot instantiator both take the
// lock, and the whole cache is cleared atomically on config reload.
type Cache struct {
	mu        sync.Mutex
	instances map[string]Provider
	cfg       *config.Store
}

// NewCache builds an empty cache over cfg.
func NewCache(cfg *config.Store) *Cache {
	return &Cache{instances: map[string]Provider{}, cfg: cfg}
}

// Get returns the cached adapter for modelID, instantiating and caching it
// on first use. ok is false if modelID has no config entry or construction
// failed.
func (c *Cache) Get(modelID string) (Provider, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.instances[modelID]; ok {
		return p, true
	}

	modelCfg := c.cfg.GetModelConfig(modelID)
	if modelCfg.IsZero() {
		return nil, false
	}
	p, err := New(modelID, modelCfg)
	if err != nil {
		return nil, false
	}
	c.instances[modelID] = p
	return p, true
}

// Clear empties the cache, forcing every subsequent Get to reinstantiate
// from the (presumably just-reloaded) config.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances = map[string]Provider{}
}

// SetConfig swaps the config store consulted on a cache miss. Callers
// should also Clear immediately after so stale adapters never outlive a
// config reload.
func (c *Cache) SetConfig(cfg *config.Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
}

// Len reports the number of cached adapters (used by tests asserting the
// cache is empty immediately after a config reload).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.instances)
}
