package savings

// TriageRule maps a maximum complexity score to a preferred role. Rules are
// evaluated in declaration order; the first rule whose MaxComplexity is
// greater than or equal to the observed score wins.
type TriageRule struct {
	MaxComplexity int
	PreferredRole string
}

// TriageRouter remaps a role based on an integer complexity score, letting
// cheap/simple requests stay on a lightweight role while complex ones are
// promoted to a heavier one.
type TriageRouter struct {
	rules       []TriageRule
	defaultRole string
}

// NewTriageRouter builds a router from an ordered rule list and the
// fallback role used when no rule matches.
func NewTriageRouter(rules []TriageRule, defaultRole string) *TriageRouter {
	return &TriageRouter{rules: rules, defaultRole: defaultRole}
}

// Route returns the first rule's PreferredRole whose MaxComplexity is
// greater than or equal to score, else the default role.
func (t *TriageRouter) Route(complexityScore int) string {
	for _, rule := range t.rules {
		if rule.MaxComplexity >= complexityScore {
			return rule.PreferredRole
		}
	}
	return t.defaultRole
}
