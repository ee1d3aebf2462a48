// Package session implements AuraRouter's multi-turn conversational state:
// message history, shared condensed context ("gists"), and the token
// pressure bookkeeping that triggers condensation.
package session

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole is the speaker of a single turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message is a single turn of conversation history.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	ModelID string      `json:"model_id,omitempty"`
	Tokens  int         `json:"tokens"`
}

// Gist is a condensed summary of one or more prior assistant responses,
// re-injected as system-level context on future turns.
type Gist struct {
	SourceRole    string `json:"source_role"`
	SourceModelID string `json:"source_model_id"`
	Summary       string `json:"summary"`
	ReplacesCount int    `json:"replaces_count"`
}

// TokenStats tracks the running context-window usage for a session.
type TokenStats struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	ContextLimit int `json:"context_limit"`
}

// Pressure is the ratio of used to maximum context tokens. It is 0 when
// ContextLimit is not positive.
func (t TokenStats) Pressure() float64 {
	if t.ContextLimit <= 0 {
		return 0
	}
	return float64(t.InputTokens+t.OutputTokens) / float64(t.ContextLimit)
}

// Session is the full persisted conversational state for one multi-turn
// caller.
type Session struct {
	SessionID     string         `json:"session_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	History       []Message      `json:"history"`
	SharedContext []Gist         `json:"shared_context"`
	TokenStats    TokenStats     `json:"token_stats"`
	Metadata      map[string]any `json:"metadata"`
}

// New creates a fresh session with a generated UUID.
func New(contextLimit int) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:  uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
		TokenStats: TokenStats{ContextLimit: contextLimit},
		Metadata:   map[string]any{},
	}
}
