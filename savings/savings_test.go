package savings

import (
	"testing"
	"time"

	"github.com/auracore/aurarouter/usage"
)

func TestPricingResolutionOrder(t *testing.T) {
	catalog := NewPricingCatalog(map[string]ModelPrice{
		"my-model": {InputPerMillion: 9, OutputPerMillion: 18},
	})

	tests := []struct {
		name      string
		modelName string
		provider  string
		want      ModelPrice
	}{
		{"override exact", "my-model", "claude", ModelPrice{9, 18}},
		{"builtin exact", "claude-sonnet-4-5-20250929", "claude", ModelPrice{3.00, 15.00}},
		{"provider wildcard", "unknown-model", "ollama", ModelPrice{0, 0}},
		{"zero when nothing matches", "unknown-model", "mystery", ModelPrice{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := catalog.GetPrice(tc.modelName, tc.provider)
			if got != tc.want {
				t.Fatalf("GetPrice(%q, %q) = %+v, want %+v", tc.modelName, tc.provider, got, tc.want)
			}
		})
	}
}

func TestIsCloudTierPrefersExplicitHostingTier(t *testing.T) {
	if IsCloudTier("on-prem", "claude") {
		t.Fatal("explicit on-prem hosting_tier should override cloud provider classification")
	}
	if !IsCloudTier("cloud", "ollama") {
		t.Fatal("explicit cloud hosting_tier should override on-prem provider classification")
	}
	if !IsCloudTier("", "claude") {
		t.Fatal("empty hosting_tier should fall back to provider classification")
	}
	if IsCloudTier("", "ollama") {
		t.Fatal("ollama with no explicit tier should not be classified cloud")
	}
}

type fakeQuerier struct {
	records []usage.Record
}

func (f *fakeQuerier) Query(start, end *time.Time, modelID, provider, role string) ([]usage.Record, error) {
	return f.records, nil
}

func TestCostEngineTotalSpendAndSpendByProvider(t *testing.T) {
	catalog := NewPricingCatalog(nil)
	store := &fakeQuerier{records: []usage.Record{
		{ModelID: "claude-sonnet-4-5-20250929", Provider: "claude", InputTokens: 1_000_000, OutputTokens: 1_000_000},
		{ModelID: "gemini-2.0-flash", Provider: "google", InputTokens: 1_000_000, OutputTokens: 0},
	}}
	engine := NewCostEngine(catalog, store)

	total, err := engine.TotalSpend(nil, nil)
	if err != nil {
		t.Fatalf("TotalSpend: %v", err)
	}
	want := 3.00 + 15.00 + 0.10
	if total != want {
		t.Fatalf("TotalSpend = %v, want %v", total, want)
	}

	byProvider, err := engine.SpendByProvider(nil, nil)
	if err != nil {
		t.Fatalf("SpendByProvider: %v", err)
	}
	if byProvider["claude"] != 18.00 {
		t.Fatalf("claude spend = %v, want 18.00", byProvider["claude"])
	}
	if byProvider["google"] != 0.10 {
		t.Fatalf("google spend = %v, want 0.10", byProvider["google"])
	}
}

func TestBudgetManagerDailyLimitDenies(t *testing.T) {
	limit := 1.00
	catalog := NewPricingCatalog(nil)
	store := &fakeQuerier{records: []usage.Record{
		{ModelID: "claude-sonnet-4-5-20250929", Provider: "claude", InputTokens: 1_000_000, OutputTokens: 1_000_000},
	}}
	engine := NewCostEngine(catalog, store)
	budget := NewBudgetManager(BudgetConfig{Enabled: true, DailyLimit: &limit}, engine)

	decision, err := budget.CheckBudget("", "claude")
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected daily budget to deny a cloud call once spend exceeds the limit")
	}
}

func TestBudgetManagerDisabledAlwaysAllows(t *testing.T) {
	budget := NewBudgetManager(BudgetConfig{Enabled: false}, NewCostEngine(NewPricingCatalog(nil), &fakeQuerier{}))
	decision, err := budget.CheckBudget("", "claude")
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("disabled budget manager should always allow")
	}
}

func TestBudgetManagerIgnoresLocalProviders(t *testing.T) {
	limit := 0.01
	store := &fakeQuerier{records: []usage.Record{
		{ModelID: "m1", Provider: "ollama", InputTokens: 1_000_000, OutputTokens: 1_000_000},
	}}
	budget := NewBudgetManager(BudgetConfig{Enabled: true, DailyLimit: &limit}, NewCostEngine(NewPricingCatalog(nil), store))
	decision, err := budget.CheckBudget("", "ollama")
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("budget limits should only gate cloud providers")
	}
}

func TestBudgetManagerHonorsExplicitHostingTierOverride(t *testing.T) {
	limit := 0.01
	store := &fakeQuerier{records: []usage.Record{
		{ModelID: "claude-sonnet-4-5-20250929", Provider: "claude", InputTokens: 1_000_000, OutputTokens: 1_000_000},
	}}
	budget := NewBudgetManager(BudgetConfig{Enabled: true, DailyLimit: &limit}, NewCostEngine(NewPricingCatalog(nil), store))

	// An ollama-tagged model explicitly pinned to the cloud tier must still
	// be gated by the daily limit, even though ollama is locally classified.
	decision, err := budget.CheckBudget("cloud", "ollama")
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if decision.Allowed {
		t.Fatal("an explicit cloud hosting_tier should be gated regardless of the provider's default classification")
	}
}

func TestTriageRouterRoutesByComplexity(t *testing.T) {
	router := NewTriageRouter([]TriageRule{
		{MaxComplexity: 30, PreferredRole: "coding"},
		{MaxComplexity: 70, PreferredRole: "reasoning"},
	}, "heavy-reasoning")

	tests := []struct {
		score int
		want  string
	}{
		{10, "coding"},
		{30, "coding"},
		{31, "reasoning"},
		{70, "reasoning"},
		{71, "heavy-reasoning"},
	}
	for _, tc := range tests {
		if got := router.Route(tc.score); got != tc.want {
			t.Fatalf("Route(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestMonthlyProjectionLinear(t *testing.T) {
	store := &fakeQuerier{records: []usage.Record{
		{ModelID: "gemini-2.0-flash", Provider: "google", InputTokens: 10_000_000, OutputTokens: 0},
	}}
	engine := NewCostEngine(NewPricingCatalog(nil), store)

	now := time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC)
	proj, err := engine.MonthlyProjection(now)
	if err != nil {
		t.Fatalf("MonthlyProjection: %v", err)
	}
	if proj.DaysElapsed != 10 {
		t.Fatalf("DaysElapsed = %d, want 10", proj.DaysElapsed)
	}
	if proj.SpentSoFar != 1.00 {
		t.Fatalf("SpentSoFar = %v, want 1.00", proj.SpentSoFar)
	}
	wantProjected := (1.00 / 10.0) * float64(proj.DaysInMonth)
	if proj.ProjectedMonthly != wantProjected {
		t.Fatalf("ProjectedMonthly = %v, want %v", proj.ProjectedMonthly, wantProjected)
	}
}
