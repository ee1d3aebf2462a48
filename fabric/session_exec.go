package fabric

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/auracore/aurarouter/gisting"
	"github.com/auracore/aurarouter/provider"
	"github.com/auracore/aurarouter/savings"
	"github.com/auracore/aurarouter/session"
)

// ErrSessionsDisabled is returned by ExecuteSession when no session
// manager was wired in.
var ErrSessionsDisabled = errors.New("sessions are not enabled for this fabric")

// ErrBudgetExceeded is returned by ExecuteSession when every non-skipped
// model in the chain was denied by the budget manager and none was
// genuinely attempted: the GenerateResult-typed analogue of Execute's
// BUDGET_EXCEEDED sentinel string.
var ErrBudgetExceeded = errors.New("BUDGET_EXCEEDED: configure local models as fallback")

// EnableSessions wires store into the fabric as its session manager,
// binding the manager's condensation/fallback-gist generate function to
// Execute against the "summarizer" role. This breaks the fabric/session
// cycle from the manager's side: the manager never imports the fabric
// package, it only holds the closure given to it here.
func (f *Fabric) EnableSessions(store *session.Store, cfg session.Config) {
	genFn := func(ctx context.Context, role, prompt string) (string, bool) {
		text, ok := f.Execute(ctx, role, prompt)
		if !ok {
			return "", false
		}
		return text, true
	}
	f.Sessions = session.NewManager(store, genFn, cfg)
}

// ExecuteSession differs from Execute only in how the provider is invoked:
// instead of generate_with_usage(prompt), it builds the full message list
// via the session manager and calls generate_with_history. Budget,
// privacy, usage-recording, and callback semantics are identical to
// Execute. On success it appends the user and assistant turns to the
// session and persists it.
func (f *Fabric) ExecuteSession(ctx context.Context, role string, sess *session.Session, message string, injectGist bool, opts ...ExecuteOption) (provider.GenerateResult, bool, error) {
	if f.Sessions == nil {
		return provider.GenerateResult{}, false, ErrSessionsDisabled
	}

	o := resolveOptions(opts)
	dyn := f.snapshot()

	chain := f.resolveChain(ctx, dyn, role, o.chainOverride)
	if len(chain) == 0 {
		return provider.GenerateResult{}, false, nil
	}

	sessionMessages := f.Sessions.PrepareMessages(sess, message, injectGist)
	messages := make([]provider.ChatTurn, len(sessionMessages))
	for i, m := range sessionMessages {
		messages[i] = provider.ChatTurn{Role: m.Role, Content: m.Content}
	}

	var anyBudgetDenied bool
	var anyAttempted bool

	for _, modelID := range chain {
		modelCfg := dyn.cfg.GetModelConfig(modelID)
		if modelCfg.IsZero() {
			continue
		}
		isCloud := savings.IsCloudTier(modelCfg.HostingTier, modelCfg.Provider)

		if dyn.budget != nil && isCloud {
			decision, err := dyn.budget.CheckBudget(modelCfg.HostingTier, modelCfg.Provider)
			if err == nil && !decision.Allowed {
				anyBudgetDenied = true
				fireCallback(o.onModelTried, role, modelID, false, 0, 0, 0)
				continue
			}
		}

		p, ok := f.providerCache.Get(modelID)
		if !ok {
			continue
		}

		if dyn.auditor != nil && isCloud {
			if event := dyn.auditor.Audit(message, modelID, modelCfg.Provider, modelCfg.HostingTier); event != nil {
				_ = f.privacyStore.Record(*event)
			}
		}

		start := time.Now()
		result, err := p.GenerateWithHistory(ctx, messages, o.systemPrompt, o.jsonMode)
		elapsed := time.Since(start).Seconds()
		anyAttempted = true

		if err != nil || strings.TrimSpace(result.Text) == "" {
			f.recordUsage(role, o.intent, attemptOutcome{modelID: modelID, providerName: modelCfg.Provider, elapsed: elapsed}, false, isCloud)
			fireCallback(o.onModelTried, role, modelID, false, elapsed, 0, 0)
			continue
		}

		f.recordUsage(role, o.intent, attemptOutcome{modelID: modelID, providerName: modelCfg.Provider, elapsed: elapsed, result: result}, true, isCloud)
		fireCallback(o.onModelTried, role, modelID, true, elapsed, result.InputTokens, result.OutputTokens)

		result.ModelID = modelID
		result.Provider = modelCfg.Provider
		if err := f.Sessions.AppendUserMessage(ctx, sess, message); err != nil {
			log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("session persistence failed after user turn")
		}
		raw := result.Text
		if err := f.Sessions.AppendAssistantTurn(ctx, sess, raw, modelID, result.OutputTokens); err != nil {
			log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("session persistence failed after assistant turn")
		}
		if cleaned, gist, found := gisting.Extract(raw); found {
			result.Text = cleaned
			result.Gist = gist
		}
		return result, true, nil
	}

	if !anyAttempted && anyBudgetDenied {
		return provider.GenerateResult{}, false, ErrBudgetExceeded
	}
	return provider.GenerateResult{}, false, nil
}
