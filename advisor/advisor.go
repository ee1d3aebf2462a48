// Package advisor defines the minimal external-collaborator contract the
// compute fabric consults to optionally reorder a role's chain before
// iteration, and the insertion-ordered registry of such collaborators.
//
// The real MCP client transport lives outside this repository; any
// client that can satisfy Client below, whatever its wire protocol, can
// be registered.
package advisor

import (
	"context"
	"sync"
)

// Client is the subset of an MCP-style client the fabric needs: whether it
// is currently connected, the capability tags it advertises, and the
// ability to invoke a named tool.
type Client interface {
	Connected() bool
	Capabilities() map[string]bool
	CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// ChainReorderCapability is the capability tag that makes an advisor
// eligible for chain-reorder consultation.
const ChainReorderCapability = "chain_reorder"

// Registry is a thread-safe, insertion-ordered named collection of advisors.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	clients map[string]Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: map[string]Client{}}
}

// Register adds or replaces the named advisor, preserving its original
// insertion position on replacement.
func (r *Registry) Register(name string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[name]; !exists {
		r.order = append(r.order, name)
	}
	r.clients[name] = c
}

// Unregister removes the named advisor.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clients[name]; !exists {
		return
	}
	delete(r.clients, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ReorderChain asks every connected advisor with the chain_reorder
// capability, in insertion order, to reorder role's chain. The first
// advisor to return a non-empty chain wins; advisor errors or empty
// responses are swallowed and the previous chain is kept.
func (r *Registry) ReorderChain(ctx context.Context, role string, chain []string) []string {
	r.mu.RLock()
	order := append([]string(nil), r.order...)
	clients := make(map[string]Client, len(r.clients))
	for k, v := range r.clients {
		clients[k] = v
	}
	r.mu.RUnlock()

	current := chain
	for _, name := range order {
		client := clients[name]
		if client == nil || !client.Connected() || !client.Capabilities()[ChainReorderCapability] {
			continue
		}
		result, err := client.CallTool(ctx, "reorder_chain", map[string]any{"role": role, "chain": current})
		if err != nil {
			continue
		}
		reordered, ok := extractChain(result)
		if !ok || len(reordered) == 0 {
			continue
		}
		return reordered
	}
	return current
}

func extractChain(result map[string]any) ([]string, bool) {
	raw, ok := result["chain"]
	if !ok {
		return nil, false
	}
	list, ok := raw.([]any)
	if !ok {
		if strs, ok := raw.([]string); ok {
			return strs, true
		}
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
