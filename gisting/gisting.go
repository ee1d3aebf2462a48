// Package gisting implements marker-based summary extraction and prompt
// injection for session condensation: the model is asked to append a
// "---GIST---" marker and a short summary of its own response, which the
// fabric strips before returning the response to the caller and stores as
// a Gist in the session's shared context.
package gisting

import "strings"

// Marker is the literal token that separates a model's answer from its
// self-produced summary.
const Marker = "---GIST---"

// Instruction is appended to the final user message when auto-gisting is
// enabled, asking the model to self-summarize.
const Instruction = "After your response, on a new line, write " + Marker + " followed by a concise two-sentence summary of what you just said."

// InjectInstruction appends the gisting instruction to a user message.
func InjectInstruction(content string) string {
	return content + "\n" + Instruction
}

// Extract finds the *last* Marker in raw and splits it into the
// caller-visible prefix and the gist summary. If no marker is present, or
// the trimmed suffix is empty, ok is false and prefix is raw unchanged.
func Extract(raw string) (prefix string, gist string, ok bool) {
	idx := strings.LastIndex(raw, Marker)
	if idx < 0 {
		return raw, "", false
	}
	suffix := strings.TrimSpace(raw[idx+len(Marker):])
	if suffix == "" {
		return raw, "", false
	}
	return strings.TrimSpace(raw[:idx]), suffix, true
}

// BuildFallbackPrompt builds the prompt used to request a gist after the
// fact, when auto-gist is enabled but the model did not emit a marker.
func BuildFallbackPrompt(response string) string {
	return "Summarize the following response in two sentences, for use as context in a future turn:\n\n" + response
}

// EstimateTokens is the coarse token estimator used when adjusting a
// session's input_tokens after condensation: max(1, len(trimmed)/4).
func EstimateTokens(text string) int {
	n := len(strings.TrimSpace(text)) / 4
	if n < 1 {
		return 1
	}
	return n
}
