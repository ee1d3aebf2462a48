package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auracore/aurarouter/config"
)

func TestNewDispatchesOnProviderTag(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"ollama", "*provider.openAICompatAdapter"},
		{"llamacpp", "*provider.llamaCppAdapter"},
		{"llamacpp-server", "*provider.openAICompatAdapter"},
		{"claude", "*provider.claudeAdapter"},
		{"google", "*provider.googleAdapter"},
		{"openapi", "*provider.openAICompatAdapter"},
	}
	for _, tc := range tests {
		store := config.LoadAllowMissing()
		store.SetModel("m1", map[string]any{"provider": tc.tag})
		cfg := store.GetModelConfig("m1")

		p, err := New("m1", cfg)
		if err != nil {
			t.Fatalf("New(%q): %v", tc.tag, err)
		}
		if got := fmt.Sprintf("%T", p); got != tc.want {
			t.Fatalf("New(%q) = %s, want %s", tc.tag, got, tc.want)
		}
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	store := config.LoadAllowMissing()
	store.SetModel("m1", map[string]any{"provider": "nonexistent"})
	cfg := store.GetModelConfig("m1")

	if _, err := New("m1", cfg); err == nil {
		t.Fatal("expected an error for an unrecognized provider tag")
	}
}

func TestOpenAICompatAdapterGenerateWithUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req openAICompatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Fatalf("unexpected request body: %+v", req)
		}
		resp := openAICompatResponse{}
		resp.Choices = []struct {
			Message openAICompatMsg `json:"message"`
		}{{Message: openAICompatMsg{Role: "assistant", Content: "hi there"}}}
		resp.Usage.PromptTokens = 3
		resp.Usage.CompletionTokens = 2
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	store := config.LoadAllowMissing()
	store.SetModel("m1", map[string]any{"provider": "ollama", "endpoint": srv.URL, "context_limit": 4096})
	cfg := store.GetModelConfig("m1")

	p, err := New("m1", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := p.GenerateWithUsage(context.Background(), "hello", false)
	if err != nil {
		t.Fatalf("GenerateWithUsage: %v", err)
	}
	if result.Text != "hi there" {
		t.Fatalf("Text = %q, want %q", result.Text, "hi there")
	}
	if result.InputTokens != 3 || result.OutputTokens != 2 {
		t.Fatalf("tokens = (%d, %d), want (3, 2)", result.InputTokens, result.OutputTokens)
	}
	if p.GetContextLimit() != 4096 {
		t.Fatalf("GetContextLimit() = %d, want 4096", p.GetContextLimit())
	}
}

func TestOpenAICompatAdapterSurfacesHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	store := config.LoadAllowMissing()
	store.SetModel("m1", map[string]any{"provider": "ollama", "endpoint": srv.URL})
	cfg := store.GetModelConfig("m1")
	p, _ := New("m1", cfg)

	if _, err := p.GenerateWithUsage(context.Background(), "hello", false); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestOpenAICompatAdapterSendsAuthorizationHeaderFromEnvKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(openAICompatResponse{})
	}))
	defer srv.Close()

	t.Setenv("TEST_API_KEY", "secret-token")

	store := config.LoadAllowMissing()
	store.SetModel("m1", map[string]any{"provider": "openapi", "endpoint": srv.URL, "env_key": "TEST_API_KEY"})
	cfg := store.GetModelConfig("m1")
	p, _ := New("m1", cfg)

	if _, err := p.GenerateWithUsage(context.Background(), "hi", false); err != nil {
		t.Fatalf("GenerateWithUsage: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization header = %q, want Bearer secret-token", gotAuth)
	}
}

func TestResolveAPIKeyPrefersExplicitOverEnv(t *testing.T) {
	t.Setenv("TEST_ENV_KEY", "from-env")

	key, ok := resolveAPIKey("explicit-key", "TEST_ENV_KEY")
	if !ok || key != "explicit-key" {
		t.Fatalf("resolveAPIKey = (%q, %v), want (explicit-key, true)", key, ok)
	}

	key, ok = resolveAPIKey("", "TEST_ENV_KEY")
	if !ok || key != "from-env" {
		t.Fatalf("resolveAPIKey = (%q, %v), want (from-env, true)", key, ok)
	}

	key, ok = resolveAPIKey("", "")
	if ok || key != "" {
		t.Fatalf("resolveAPIKey = (%q, %v), want (\"\", false)", key, ok)
	}
}

func TestCapitalize(t *testing.T) {
	if capitalize("") != "" {
		t.Fatal("capitalize(\"\") should stay empty")
	}
	if got := capitalize("user"); got != "User" {
		t.Fatalf("capitalize(user) = %q, want User", got)
	}
}

func TestEstimateTokensFloorsAtOne(t *testing.T) {
	if got := estimateTokens(""); got != 1 {
		t.Fatalf("estimateTokens(\"\") = %d, want 1", got)
	}
	if got := estimateTokens("12345678"); got != 2 {
		t.Fatalf("estimateTokens(8 chars) = %d, want 2", got)
	}
}

func TestGenerateResultUsageClampsAtZero(t *testing.T) {
	r := GenerateResult{InputTokens: 100, OutputTokens: 50, ContextLimit: 120}
	u := r.Usage()
	if u.Remaining != 0 {
		t.Fatalf("Remaining = %d, want 0 (clamped)", u.Remaining)
	}

	r2 := GenerateResult{InputTokens: 10, OutputTokens: 10, ContextLimit: 100}
	if got := r2.Usage().Remaining; got != 80 {
		t.Fatalf("Remaining = %d, want 80", got)
	}
}
