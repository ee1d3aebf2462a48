// Package intent implements the classifier and planner the tool surface
// calls before routing a task: both are themselves just two more calls
// into the compute fabric (against the "router" and "reasoning" roles),
// never part of the fabric's own internals.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	SimpleCode       = "SIMPLE_CODE"
	ComplexReasoning = "COMPLEX_REASONING"
)

// Verdict is analyze_intent's classification result.
type Verdict struct {
	Intent     string
	Complexity int
}

const analyzePromptTemplate = `Classify the following task. Respond with strict JSON: {"intent": "SIMPLE_CODE" or "COMPLEX_REASONING", "complexity": <integer 1-100>}.

Task: %s`

// AnalyzeIntent classifies task by calling execFn (bound to "router")
// with a fixed JSON-verdict prompt template. On any failure to parse a
// verdict, it degrades to SIMPLE_CODE with complexity 1 rather than
// blocking the caller.
func AnalyzeIntent(ctx context.Context, execFn func(ctx context.Context, role, prompt string) (string, bool), task string) Verdict {
	prompt := fmt.Sprintf(analyzePromptTemplate, task)
	text, ok := execFn(ctx, "router", prompt)
	if !ok {
		return Verdict{Intent: SimpleCode, Complexity: 1}
	}

	var raw struct {
		Intent     string `json:"intent"`
		Complexity int    `json:"complexity"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil || raw.Intent == "" {
		return Verdict{Intent: SimpleCode, Complexity: 1}
	}
	return Verdict{Intent: raw.Intent, Complexity: raw.Complexity}
}

const planPromptTemplate = `Break the following task into an ordered list of concrete steps. Respond with strict JSON: {"steps": ["step one", "step two", ...]}.

Task: %s

Context: %s`

// GeneratePlan asks the "reasoning" role to decompose task into an ordered
// list of steps. An empty or unparseable response yields a single-step
// plan consisting of the task itself, so callers always have at least one
// step to execute.
func GeneratePlan(ctx context.Context, execFn func(ctx context.Context, role, prompt string) (string, bool), task, taskContext string) []string {
	prompt := fmt.Sprintf(planPromptTemplate, task, taskContext)
	text, ok := execFn(ctx, "reasoning", prompt)
	if !ok {
		return []string{task}
	}

	var raw struct {
		Steps []string `json:"steps"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil || len(raw.Steps) == 0 {
		return []string{task}
	}
	return raw.Steps
}

// extractJSON trims any prose surrounding the first {...} block a model
// emitted despite being asked for strict JSON.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
