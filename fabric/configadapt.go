package fabric

import (
	"regexp"

	"github.com/auracore/aurarouter/config"
	"github.com/auracore/aurarouter/privacy"
	"github.com/auracore/aurarouter/savings"
	"github.com/auracore/aurarouter/usage"
)

// buildDynamic derives the pricing catalog, cost engine, budget manager,
// and privacy auditor from cfg's savings section, all in one pass so a
// config reload rebuilds them in lockstep.
func buildDynamic(cfg *config.Store, usageStore *usage.Store) dynamic {
	pricing := savings.NewPricingCatalog(parsePricingOverrides(cfg.GetPricingOverrides()))
	cost := savings.NewCostEngine(pricing, usageStore)
	budget := savings.NewBudgetManager(parseBudgetConfig(cfg.GetBudgetConfig()), cost)
	auditor := privacy.NewAuditor(parseCustomPatterns(cfg.GetPrivacyConfig()), savings.IsCloudTier)

	return dynamic{cfg: cfg, pricing: pricing, cost: cost, budget: budget, auditor: auditor}
}

func parsePricingOverrides(raw map[string]any) map[string]savings.ModelPrice {
	out := make(map[string]savings.ModelPrice, len(raw))
	for name, v := range raw {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out[name] = savings.ModelPrice{
			InputPerMillion:  toFloat(entry["input_per_million"]),
			OutputPerMillion: toFloat(entry["output_per_million"]),
		}
	}
	return out
}

func parseBudgetConfig(raw map[string]any) savings.BudgetConfig {
	cfg := savings.BudgetConfig{}
	if v, ok := raw["enabled"].(bool); ok {
		cfg.Enabled = v
	}
	if v, ok := raw["daily_limit"]; ok {
		f := toFloat(v)
		cfg.DailyLimit = &f
	}
	if v, ok := raw["monthly_limit"]; ok {
		f := toFloat(v)
		cfg.MonthlyLimit = &f
	}
	return cfg
}

func parseCustomPatterns(raw map[string]any) []privacy.Pattern {
	list, ok := raw["custom_patterns"].([]any)
	if !ok {
		return nil
	}
	out := make([]privacy.Pattern, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		rawRegex, _ := entry["regex"].(string)
		severity, _ := entry["severity"].(string)
		description, _ := entry["description"].(string)
		if name == "" || rawRegex == "" {
			continue
		}
		re, err := regexp.Compile(rawRegex)
		if err != nil {
			log.Warn().Str("pattern", name).Err(err).Msg("dropping invalid custom privacy pattern")
			continue
		}
		out = append(out, privacy.Pattern{
			Name:        name,
			Regex:       re,
			Severity:    privacy.Severity(severity),
			Description: description,
		})
	}
	return out
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
