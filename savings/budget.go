package savings

import (
	"fmt"
	"sync"
	"time"
)

// BudgetConfig is the savings.budget section of the domain config.
type BudgetConfig struct {
	Enabled      bool
	DailyLimit   *float64
	MonthlyLimit *float64
}

// BudgetDecision is the result of a pre-call allow/deny check.
type BudgetDecision struct {
	Allowed      bool
	Reason       string
	DailySpend   float64
	MonthlySpend float64
	DailyLimit   *float64
	MonthlyLimit *float64
}

type spendCacheEntry struct {
	value     float64
	expiresAt time.Time
}

const budgetCacheTTL = 60 * time.Second

// BudgetManager gates cloud calls against configured daily/monthly spend
// limits, backed by a short-lived cache over the cost engine so every
// attempt does not re-scan the usage store.
type BudgetManager struct {
	mu     sync.Mutex
	cfg    BudgetConfig
	engine *CostEngine
	cache  map[string]spendCacheEntry // "daily" / "monthly"
	now    func() time.Time
}

// NewBudgetManager builds a manager over cfg and engine.
func NewBudgetManager(cfg BudgetConfig, engine *CostEngine) *BudgetManager {
	return &BudgetManager{cfg: cfg, engine: engine, cache: map[string]spendCacheEntry{}, now: time.Now}
}

// UpdateConfig replaces the limits and clears the spend cache, atomically.
func (b *BudgetManager) UpdateConfig(cfg BudgetConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg
	b.cache = map[string]spendCacheEntry{}
}

// CheckBudget evaluates whether a call to provider is currently allowed.
// hostingTier is the model's explicit hosting_tier, if any; as in
// IsCloudTier, an explicit tier always wins over provider-name
// classification.
func (b *BudgetManager) CheckBudget(hostingTier, provider string) (BudgetDecision, error) {
	b.mu.Lock()
	cfg := b.cfg
	b.mu.Unlock()

	if !cfg.Enabled {
		return BudgetDecision{Allowed: true}, nil
	}
	if !IsCloudTier(hostingTier, provider) {
		daily, monthly, err := b.cachedSpend()
		if err != nil {
			return BudgetDecision{}, err
		}
		return BudgetDecision{Allowed: true, DailySpend: daily, MonthlySpend: monthly,
			DailyLimit: cfg.DailyLimit, MonthlyLimit: cfg.MonthlyLimit}, nil
	}

	daily, monthly, err := b.cachedSpend()
	if err != nil {
		return BudgetDecision{}, err
	}

	decision := BudgetDecision{
		DailySpend: daily, MonthlySpend: monthly,
		DailyLimit: cfg.DailyLimit, MonthlyLimit: cfg.MonthlyLimit,
	}

	if cfg.DailyLimit != nil && daily >= *cfg.DailyLimit {
		decision.Allowed = false
		decision.Reason = fmt.Sprintf("Daily budget exceeded ($%.2f/$%.2f)", daily, *cfg.DailyLimit)
		return decision, nil
	}
	if cfg.MonthlyLimit != nil && monthly >= *cfg.MonthlyLimit {
		decision.Allowed = false
		decision.Reason = fmt.Sprintf("Monthly budget exceeded ($%.2f/$%.2f)", monthly, *cfg.MonthlyLimit)
		return decision, nil
	}
	decision.Allowed = true
	return decision, nil
}

// cachedSpend looks up today's and this month's spend, each cached for
// budgetCacheTTL. The lock is never held while the cost engine queries the
// usage store.
func (b *BudgetManager) cachedSpend() (daily, monthly float64, err error) {
	daily, dailyOK := b.lookupCache("daily")
	monthly, monthlyOK := b.lookupCache("monthly")
	if dailyOK && monthlyOK {
		return daily, monthly, nil
	}

	now := b.now().UTC()
	if !dailyOK {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		daily, err = b.engine.TotalSpend(&start, nil)
		if err != nil {
			return 0, 0, fmt.Errorf("computing daily spend: %w", err)
		}
		b.storeCache("daily", daily)
	}
	if !monthlyOK {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthly, err = b.engine.TotalSpend(&start, nil)
		if err != nil {
			return 0, 0, fmt.Errorf("computing monthly spend: %w", err)
		}
		b.storeCache("monthly", monthly)
	}
	return daily, monthly, nil
}

func (b *BudgetManager) lookupCache(period string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.cache[period]
	if !ok || b.now().After(entry.expiresAt) {
		return 0, false
	}
	return entry.value, true
}

func (b *BudgetManager) storeCache(period string, value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache[period] = spendCacheEntry{value: value, expiresAt: b.now().Add(budgetCacheTTL)}
}
