package fabric

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/auracore/aurarouter/config"
	"github.com/auracore/aurarouter/session"
)

func newSessionFabric(t *testing.T, cfg *config.Store, sessionCfg session.Config) *Fabric {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	usageStore, privacyStore := newTestStores(t)
	f := New(cfg, usageStore, privacyStore, nil)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	f.EnableSessions(session.NewStore(client), sessionCfg)
	return f
}

func TestExecuteSessionAppendsTurnsAndExtractsGist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ollamaResponseJSON("def fib(n): ...\n---GIST---\nProvided fib.", 12, 30)))
	}))
	defer srv.Close()

	cfg := config.LoadAllowMissing()
	cfg.SetModel("m1", map[string]any{"provider": "ollama", "endpoint": srv.URL})
	cfg.SetRoleChain("coding", []string{"m1"})

	f := newSessionFabric(t, cfg, session.Config{AutoGist: true})
	ctx := context.Background()

	sess, err := f.Sessions.Create(ctx, 10000)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, ok, err := f.ExecuteSession(ctx, "coding", sess, "Write fib", true)
	if err != nil || !ok {
		t.Fatalf("ExecuteSession = (ok=%v, err=%v), want success", ok, err)
	}
	if result.Text != "def fib(n): ..." {
		t.Fatalf("result.Text = %q, want the cleaned response", result.Text)
	}
	if result.Gist != "Provided fib." {
		t.Fatalf("result.Gist = %q, want %q", result.Gist, "Provided fib.")
	}

	if len(sess.History) != 2 {
		t.Fatalf("history length = %d, want 2 (user + assistant)", len(sess.History))
	}
	if sess.History[0].Role != session.RoleUser || sess.History[0].Content != "Write fib" {
		t.Fatalf("unexpected user turn: %+v", sess.History[0])
	}
	if sess.History[1].Role != session.RoleAssistant || sess.History[1].Content != "def fib(n): ..." {
		t.Fatalf("assistant turn should carry the cleaned response: %+v", sess.History[1])
	}

	if len(sess.SharedContext) != 1 {
		t.Fatalf("shared context length = %d, want 1 gist", len(sess.SharedContext))
	}
	gist := sess.SharedContext[0]
	if gist.Summary != "Provided fib." || gist.ReplacesCount != 0 {
		t.Fatalf("unexpected gist: %+v", gist)
	}

	loaded, found, err := f.Sessions.Load(ctx, sess.SessionID)
	if err != nil || !found {
		t.Fatalf("Load after turn: found=%v err=%v", found, err)
	}
	if len(loaded.History) != 2 || len(loaded.SharedContext) != 1 {
		t.Fatalf("persisted session out of sync: %d messages, %d gists", len(loaded.History), len(loaded.SharedContext))
	}

	records, err := f.UsageStore().Query(nil, nil, "", "", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 1 || !records[0].Success || records[0].InputTokens != 12 {
		t.Fatalf("expected one successful usage record with reported tokens, got %+v", records)
	}
}

func TestExecuteSessionWithoutManagerReturnsError(t *testing.T) {
	cfg := config.LoadAllowMissing()
	usageStore, privacyStore := newTestStores(t)
	f := New(cfg, usageStore, privacyStore, nil)

	_, _, err := f.ExecuteSession(context.Background(), "coding", session.New(0), "hi", false)
	if err != ErrSessionsDisabled {
		t.Fatalf("err = %v, want ErrSessionsDisabled", err)
	}
}
