// Package fabric implements the compute fabric: the orchestrator that
// selects and drives a role's model chain with graceful degradation,
// gates every attempt through the budget and privacy subsystems, records
// usage, and executes stateful sessions with automatic context
// condensation. It is the repository's core.
package fabric

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/auracore/aurarouter/advisor"
	"github.com/auracore/aurarouter/config"
	"github.com/auracore/aurarouter/logger"
	"github.com/auracore/aurarouter/privacy"
	"github.com/auracore/aurarouter/provider"
	"github.com/auracore/aurarouter/savings"
	"github.com/auracore/aurarouter/session"
	"github.com/auracore/aurarouter/usage"
)

var log = logger.New("fabric")

// dynamic bundles the collaborators that are rebuilt together, in
// lockstep, every time UpdateConfig swaps the active configuration.
type dynamic struct {
	cfg     *config.Store
	pricing *savings.PricingCatalog
	cost    *savings.CostEngine
	budget  *savings.BudgetManager
	auditor *privacy.Auditor
}

// Fabric is the orchestrator. It owns no state for in-flight requests
// (chain cursor, timer, and usage-record buffer all live on the calling
// goroutine's stack), so a single instance may be called concurrently from
// as many goroutines as there are inbound tool invocations.
type Fabric struct {
	mu  sync.RWMutex
	dyn dynamic

	providerCache *provider.Cache
	usageStore    *usage.Store
	privacyStore  *privacy.Store
	advisors      *advisor.Registry
	Sessions      *session.Manager
}

// New wires a fabric from its collaborators. advisors may be nil (no
// routing advisors configured); Sessions may be nil when the deployment
// has sessions disabled, in which case ExecuteSession returns an error.
func New(cfg *config.Store, usageStore *usage.Store, privacyStore *privacy.Store, advisors *advisor.Registry) *Fabric {
	f := &Fabric{
		providerCache: provider.NewCache(cfg),
		usageStore:    usageStore,
		privacyStore:  privacyStore,
		advisors:      advisors,
	}
	f.dyn = buildDynamic(cfg, usageStore)
	return f
}

// UpdateConfig atomically replaces the active config and rebuilds exactly
// the collaborators that derive from it (pricing catalog, cost engine,
// budget manager, privacy auditor), clearing the provider cache so every
// subsequent attempt re-resolves its adapter from the new config. Usage,
// privacy, and session stores are untouched. In-flight requests that have
// already resolved a provider complete against their original config.
func (f *Fabric) UpdateConfig(cfg *config.Store) {
	next := buildDynamic(cfg, f.usageStore)

	f.mu.Lock()
	f.dyn = next
	f.mu.Unlock()

	f.providerCache.SetConfig(cfg)
	f.providerCache.Clear()
	log.Info().Msg("configuration reloaded; provider cache cleared")
}

func (f *Fabric) snapshot() dynamic {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dyn
}

// Config returns the currently active config store.
func (f *Fabric) Config() *config.Store { return f.snapshot().cfg }

// CostEngine returns the currently active cost engine, rebuilt on every
// config reload.
func (f *Fabric) CostEngine() *savings.CostEngine { return f.snapshot().cost }

// PrivacyStore returns the fabric's privacy event store.
func (f *Fabric) PrivacyStore() *privacy.Store { return f.privacyStore }

// UsageStore returns the fabric's usage record store.
func (f *Fabric) UsageStore() *usage.Store { return f.usageStore }

// ProviderCacheSize reports how many adapters are currently cached (used
// by tests asserting the cache is empty immediately after a reload).
func (f *Fabric) ProviderCacheSize() int { return f.providerCache.Len() }

// resolveChain applies chain_override, falls back to the configured role
// chain, then passes the result through the advisor registry.
func (f *Fabric) resolveChain(ctx context.Context, dyn dynamic, role string, override []string) []string {
	chain := override
	if len(chain) == 0 {
		chain = dyn.cfg.GetRoleChain(role)
	}
	if len(chain) == 0 {
		return nil
	}
	if f.advisors != nil {
		chain = f.advisors.ReorderChain(ctx, role, chain)
	}
	return chain
}

// attemptOutcome is the per-model result of the shared attempt protocol.
type attemptOutcome struct {
	modelID      string
	providerName string
	skipped      bool // no config entry, or budget-denied, or unresolvable provider
	budgetDenied bool
	denyReason   string
	hostingTier  string
	result       provider.GenerateResult
	err          error
	elapsed      float64
	attempted    bool // a real provider call was made (success or failure)
}

// attemptModel runs the full per-model protocol for a single stateless
// prompt: config lookup, budget gate, adapter resolution, privacy audit,
// timed generation.
func (f *Fabric) attemptModel(ctx context.Context, dyn dynamic, role, modelID, prompt string, jsonMode bool) attemptOutcome {
	out := attemptOutcome{modelID: modelID}

	modelCfg := dyn.cfg.GetModelConfig(modelID)
	if modelCfg.IsZero() {
		out.skipped = true
		return out
	}
	out.providerName = modelCfg.Provider
	out.hostingTier = modelCfg.HostingTier
	isCloud := savings.IsCloudTier(modelCfg.HostingTier, modelCfg.Provider)

	if dyn.budget != nil && isCloud {
		decision, err := dyn.budget.CheckBudget(modelCfg.HostingTier, modelCfg.Provider)
		if err == nil && !decision.Allowed {
			out.skipped = true
			out.budgetDenied = true
			out.denyReason = decision.Reason
			return out
		}
	}

	p, ok := f.providerCache.Get(modelID)
	if !ok {
		out.skipped = true
		return out
	}

	if dyn.auditor != nil && isCloud {
		if event := dyn.auditor.Audit(prompt, modelID, modelCfg.Provider, modelCfg.HostingTier); event != nil {
			if err := f.privacyStore.Record(*event); err != nil {
				log.Debug().Err(err).Msg("privacy event persistence failed; swallowed")
			}
		}
	}

	start := time.Now()
	result, err := p.GenerateWithUsage(ctx, prompt, jsonMode)
	out.elapsed = time.Since(start).Seconds()
	out.attempted = true
	out.result = result
	out.err = err
	out.result.ModelID = modelID
	out.result.Provider = modelCfg.Provider
	return out
}

func (f *Fabric) recordUsage(role, intent string, out attemptOutcome, success bool, isCloud bool) {
	rec := usage.Record{
		TimestampUTC:   time.Now().UTC(),
		ModelID:        out.modelID,
		Provider:       out.providerName,
		Role:           role,
		Intent:         intent,
		ElapsedSeconds: out.elapsed,
		Success:        success,
		IsCloud:        isCloud,
	}
	if success {
		rec.InputTokens = out.result.InputTokens
		rec.OutputTokens = out.result.OutputTokens
	}
	if err := f.usageStore.Record(rec); err != nil {
		log.Error().Err(err).Str("model_id", out.modelID).Msg("failed to persist usage record")
	}
}

// Execute resolves role's chain and walks it in order, returning the first
// model's text on success. ok is false only when every non-skipped
// attempt genuinely failed (transport error or empty response); a
// budget-exhausted chain or an empty role chain both return (text, true)
// with a sentinel error string so callers can tell "blocked by budget"
// from "the fleet is down".
func (f *Fabric) Execute(ctx context.Context, role, prompt string, opts ...ExecuteOption) (string, bool) {
	o := resolveOptions(opts)
	dyn := f.snapshot()

	chain := f.resolveChain(ctx, dyn, role, o.chainOverride)
	if len(chain) == 0 {
		return fmt.Sprintf("ERROR: No models defined for role '%s'. Configure a chain for this role before calling it.", role), true
	}

	var anyBudgetDenied bool
	var anyAttempted bool
	var lastDenyReason string

	for _, modelID := range chain {
		out := f.attemptModel(ctx, dyn, role, modelID, prompt, o.jsonMode)
		if out.skipped {
			if out.budgetDenied {
				anyBudgetDenied = true
				lastDenyReason = out.denyReason
				fireCallback(o.onModelTried, role, modelID, false, 0, 0, 0)
			}
			continue
		}

		isCloud := savings.IsCloudTier(out.hostingTier, out.providerName)
		anyAttempted = true

		if out.err != nil || strings.TrimSpace(out.result.Text) == "" {
			f.recordUsage(role, o.intent, out, false, isCloud)
			fireCallback(o.onModelTried, role, modelID, false, out.elapsed, 0, 0)
			continue
		}

		f.recordUsage(role, o.intent, out, true, isCloud)
		fireCallback(o.onModelTried, role, modelID, true, out.elapsed, out.result.InputTokens, out.result.OutputTokens)
		return out.result.Text, true
	}

	if !anyAttempted && anyBudgetDenied {
		return fmt.Sprintf("BUDGET_EXCEEDED: %s. Configure local models as fallback.", lastDenyReason), true
	}
	return "", false
}

// ModelAttemptResult is one row of ExecuteAll's side-by-side comparison.
type ModelAttemptResult struct {
	ModelID        string
	Provider       string
	Success        bool
	Text           string
	ElapsedSeconds float64
	InputTokens    int
	OutputTokens   int
}

// ExecuteAll invokes every model in the selected chain regardless of
// outcome and never returns an error; it is used for side-by-side
// comparison tooling, not for normal routed calls.
func (f *Fabric) ExecuteAll(ctx context.Context, role, prompt string, modelIDs []string, jsonMode bool) []ModelAttemptResult {
	dyn := f.snapshot()
	chain := modelIDs
	if len(chain) == 0 {
		chain = dyn.cfg.GetRoleChain(role)
	}

	results := make([]ModelAttemptResult, 0, len(chain))
	for _, modelID := range chain {
		out := f.attemptModel(ctx, dyn, role, modelID, prompt, jsonMode)
		if out.skipped {
			if out.budgetDenied {
				results = append(results, ModelAttemptResult{ModelID: modelID, Success: false})
			}
			continue
		}

		isCloud := savings.IsCloudTier(out.hostingTier, out.providerName)
		success := out.err == nil && strings.TrimSpace(out.result.Text) != ""
		f.recordUsage(role, "", out, success, isCloud)

		results = append(results, ModelAttemptResult{
			ModelID:        modelID,
			Provider:       out.providerName,
			Success:        success,
			Text:           out.result.Text,
			ElapsedSeconds: out.elapsed,
			InputTokens:    out.result.InputTokens,
			OutputTokens:   out.result.OutputTokens,
		})
	}
	return results
}
