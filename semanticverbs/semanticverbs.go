// Package semanticverbs resolves caller-facing role synonyms (e.g.
// "architect", "programming") to the fabric's canonical role names.
package semanticverbs

import "strings"

const (
	RoleRouter    = "router"
	RoleReasoning = "reasoning"
	RoleCoding    = "coding"
)

// knownRoles is the declaration-ordered list of built-in canonical roles.
var knownRoles = []string{RoleRouter, RoleReasoning, RoleCoding}

// builtinVerbs maps a lower-cased synonym to its canonical role.
var builtinVerbs = map[string]string{
	"programming": RoleCoding,
	"developer":   RoleCoding,
	"classifier":  RoleRouter,
	"planner":     RoleReasoning,
	"architect":   RoleReasoning,
}

// ResolveSynonym resolves name to a canonical role. custom is consulted
// first and may introduce new synonyms or override a built-in mapping, but
// never removes any built-in entry it does not explicitly override. An
// unrecognized name passes through unchanged. Resolution is
// case-insensitive and trims surrounding whitespace.
func ResolveSynonym(name string, custom map[string]string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if custom != nil {
		if role, ok := custom[normalized]; ok {
			return role
		}
	}
	if role, ok := builtinVerbs[normalized]; ok {
		return role
	}
	return name
}

// KnownRoles returns the built-in canonical roles in declaration order.
func KnownRoles() []string {
	out := make([]string, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// RequiredRoles returns the roles every deployment must configure for
// route_task/generate_code to function.
func RequiredRoles() map[string]bool {
	return map[string]bool{RoleRouter: true, RoleReasoning: true, RoleCoding: true}
}
