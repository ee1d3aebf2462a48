// Package savings implements AuraRouter's cost-control surface: the pricing
// catalog and cost engine, the budget manager, the privacy auditor, and the
// triage router.
package savings

import (
	"math"
	"sync"
	"time"

	"github.com/auracore/aurarouter/usage"
)

// ModelPrice is the per-1M-token cost of a single model.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var zeroPrice = ModelPrice{}

var localProviders = map[string]bool{
	"ollama":          true,
	"llamacpp":        true,
	"llamacpp-server": true,
}

var cloudProviders = map[string]bool{
	"google": true,
	"claude": true,
}

// builtinPrices is the fixed default price table; pricing_overrides from
// the savings config take precedence over every entry here.
var builtinPrices = map[string]ModelPrice{
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"gemini-2.0-flash":           {0.10, 0.40},
	"gemini-2.0-pro":             {1.25, 10.00},
	"ollama:*":                   {0, 0},
	"llamacpp:*":                 {0, 0},
	"llamacpp-server:*":          {0, 0},
}

// PricingCatalog is a thread-safe, immutable-per-reload price lookup table.
type PricingCatalog struct {
	mu     sync.RWMutex
	prices map[string]ModelPrice
}

// NewPricingCatalog builds a catalog from the builtin table plus overrides
// (overrides win on exact-name collisions).
func NewPricingCatalog(overrides map[string]ModelPrice) *PricingCatalog {
	prices := make(map[string]ModelPrice, len(builtinPrices)+len(overrides))
	for k, v := range builtinPrices {
		prices[k] = v
	}
	for k, v := range overrides {
		prices[k] = v
	}
	return &PricingCatalog{prices: prices}
}

// GetPrice resolves modelName/provider in order: exact override/builtin name
// (both live in the same map, overrides having been applied at construction),
// then the provider:* catch-all, then zero.
func (c *PricingCatalog) GetPrice(modelName, provider string) ModelPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if price, ok := c.prices[modelName]; ok {
		return price
	}
	if price, ok := c.prices[provider+":*"]; ok {
		return price
	}
	return zeroPrice
}

// IsCloudProvider reports whether provider is a recognized cloud provider
// (google, claude) by name alone, ignoring any explicit hosting_tier.
func IsCloudProvider(provider string) bool {
	return cloudProviders[provider]
}

// IsLocalProvider reports whether provider is one of the on-prem-by-default
// provider families (ollama, llamacpp, llamacpp-server).
func IsLocalProvider(provider string) bool {
	return localProviders[provider]
}

// DefaultHostingTier returns the implied hosting tier for provider when the
// model config carries no explicit hosting_tier.
func DefaultHostingTier(provider string) string {
	if IsLocalProvider(provider) {
		return "on-prem"
	}
	return "cloud"
}

// IsCloudTier resolves the effective hosting tier for audit/budget gating:
// an explicit hostingTier always wins; otherwise it falls back to
// provider-name classification.
func IsCloudTier(hostingTier, provider string) bool {
	if hostingTier != "" {
		return hostingTier == "cloud"
	}
	return IsCloudProvider(provider)
}

// UsageQuerier is the subset of the usage store the cost engine aggregates
// over; kept narrow so CostEngine does not depend on the store's full API.
type UsageQuerier interface {
	Query(start, end *time.Time, modelID, provider, role string) ([]usage.Record, error)
}

// CostEngine calculates actual costs, shadow costs, projections, and ROI.
type CostEngine struct {
	catalog *PricingCatalog
	store   UsageQuerier
}

// NewCostEngine builds a CostEngine over catalog and store.
func NewCostEngine(catalog *PricingCatalog, store UsageQuerier) *CostEngine {
	return &CostEngine{catalog: catalog, store: store}
}

// CalculateCost returns the dollar cost of a single request.
func (e *CostEngine) CalculateCost(inputTokens, outputTokens int, modelName, provider string) float64 {
	price := e.catalog.GetPrice(modelName, provider)
	return (float64(inputTokens)*price.InputPerMillion + float64(outputTokens)*price.OutputPerMillion) / 1_000_000
}

// ShadowResult is the comparison of an actual route's cost against a
// hypothetical alternative.
type ShadowResult struct {
	ActualCost float64
	ShadowCost float64
	Savings    float64
}

// ShadowCost compares the actual route's cost against a hypothetical
// alternative route for the same token counts. Positive Savings means the
// actual route was cheaper.
func (e *CostEngine) ShadowCost(inputTokens, outputTokens int, actualModel, actualProvider, shadowModel, shadowProvider string) ShadowResult {
	actual := e.CalculateCost(inputTokens, outputTokens, actualModel, actualProvider)
	shadow := e.CalculateCost(inputTokens, outputTokens, shadowModel, shadowProvider)
	return ShadowResult{ActualCost: actual, ShadowCost: shadow, Savings: shadow - actual}
}

// TotalSpend sums the dollar cost of every recorded usage row in [start, end).
func (e *CostEngine) TotalSpend(start, end *time.Time) (float64, error) {
	records, err := e.store.Query(start, end, "", "", "")
	if err != nil {
		return 0, err
	}
	var total float64
	for _, r := range records {
		total += e.CalculateCost(r.InputTokens, r.OutputTokens, r.ModelID, r.Provider)
	}
	return total, nil
}

// SpendByProvider returns per-provider dollar spend in [start, end).
func (e *CostEngine) SpendByProvider(start, end *time.Time) (map[string]float64, error) {
	records, err := e.store.Query(start, end, "", "", "")
	if err != nil {
		return nil, err
	}
	breakdown := map[string]float64{}
	for _, r := range records {
		breakdown[r.Provider] += e.CalculateCost(r.InputTokens, r.OutputTokens, r.ModelID, r.Provider)
	}
	return breakdown, nil
}

// MonthlyProjection is a linear projection of current-month spend.
type MonthlyProjection struct {
	SpentSoFar       float64
	ProjectedMonthly float64
	DaysElapsed      int
	DaysInMonth      int
}

// MonthlyProjection projects the current month's spend linearly from the
// days elapsed so far.
func (e *CostEngine) MonthlyProjection(now time.Time) (MonthlyProjection, error) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := daysIn(now.Year(), now.Month())
	daysElapsed := now.Day()

	spent, err := e.TotalSpend(&monthStart, nil)
	if err != nil {
		return MonthlyProjection{}, err
	}

	var projected float64
	if daysElapsed > 0 {
		projected = (spent / float64(daysElapsed)) * float64(daysInMonth)
	}

	return MonthlyProjection{
		SpentSoFar:       spent,
		ProjectedMonthly: projected,
		DaysElapsed:      daysElapsed,
		DaysInMonth:      daysInMonth,
	}, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ROIEstimate is the GPU-payback projection.
type ROIEstimate struct {
	MonthlyCloudSpend float64
	PaybackMonths     float64
	AnnualSavings     float64
}

// ROIEstimate estimates hardware payback period. When monthlyCloudSpend is
// nil, it is derived from MonthlyProjection. PaybackMonths is +Inf when
// spend is zero.
func (e *CostEngine) ROIEstimate(hardwareCost float64, monthlyCloudSpend *float64, now time.Time) (ROIEstimate, error) {
	spend := 0.0
	if monthlyCloudSpend != nil {
		spend = *monthlyCloudSpend
	} else {
		proj, err := e.MonthlyProjection(now)
		if err != nil {
			return ROIEstimate{}, err
		}
		spend = proj.ProjectedMonthly
	}

	payback := math.Inf(1)
	if spend > 0 {
		payback = hardwareCost / spend
	}

	return ROIEstimate{
		MonthlyCloudSpend: spend,
		PaybackMonths:     payback,
		AnnualSavings:     spend * 12,
	}, nil
}
