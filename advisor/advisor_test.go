package advisor

import (
	"context"
	"testing"
)

type fakeClient struct {
	connected bool
	caps      map[string]bool
	chain     []string
	err       error
}

func (f *fakeClient) Connected() bool { return f.connected }
func (f *fakeClient) Capabilities() map[string]bool { return f.caps }
func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	list := make([]any, len(f.chain))
	for i, v := range f.chain {
		list[i] = v
	}
	return map[string]any{"chain": list}, nil
}

func TestReorderChainSkipsDisconnectedAndIncapableAdvisors(t *testing.T) {
	r := NewRegistry()
	r.Register("disconnected", &fakeClient{connected: false, caps: map[string]bool{ChainReorderCapability: true}, chain: []string{"x"}})
	r.Register("no-capability", &fakeClient{connected: true, caps: map[string]bool{}, chain: []string{"y"}})
	r.Register("winner", &fakeClient{connected: true, caps: map[string]bool{ChainReorderCapability: true}, chain: []string{"b", "a"}})

	got := r.ReorderChain(context.Background(), "coding", []string{"a", "b"})
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("ReorderChain = %v, want [b a]", got)
	}
}

func TestReorderChainKeepsOriginalWhenNoAdvisorHelps(t *testing.T) {
	r := NewRegistry()
	r.Register("erroring", &fakeClient{connected: true, caps: map[string]bool{ChainReorderCapability: true}, err: errBoom{}})

	got := r.ReorderChain(context.Background(), "coding", []string{"a", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("ReorderChain = %v, want original [a b] preserved", got)
	}
}

func TestUnregisterRemovesAdvisor(t *testing.T) {
	r := NewRegistry()
	r.Register("one", &fakeClient{connected: true, caps: map[string]bool{ChainReorderCapability: true}, chain: []string{"z"}})
	r.Unregister("one")

	got := r.ReorderChain(context.Background(), "coding", []string{"a"})
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("ReorderChain after unregister = %v, want [a]", got)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
