package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/auracore/aurarouter/gisting"
)

// DefaultCondensationThreshold is the pressure ratio at or above which a
// turn triggers condensation.
const DefaultCondensationThreshold = 0.8

// GenerateFunc is the closure the fabric injects into the manager so it can
// ask the summarizer role to condense old history, without the manager
// holding a type dependency on the fabric.
type GenerateFunc func(ctx context.Context, role, prompt string) (string, bool)

// ChatTurn is the minimal {role, content} pair sent to a provider's
// generate_with_history.
type ChatTurn struct {
	Role    string
	Content string
}

// Config is the sessions section of the domain config.
type Config struct {
	AutoGist              bool
	CondensationThreshold float64
}

// Manager mutates session history and shared context in memory and
// persists every boundary operation through the store.
type Manager struct {
	store      *Store
	generateFn GenerateFunc
	cfg        Config
}

// NewManager builds a manager over store, using generateFn for
// condensation and fallback gisting.
func NewManager(store *Store, generateFn GenerateFunc, cfg Config) *Manager {
	if cfg.CondensationThreshold <= 0 {
		cfg.CondensationThreshold = DefaultCondensationThreshold
	}
	return &Manager{store: store, generateFn: generateFn, cfg: cfg}
}

// Create starts and persists a brand new session.
func (m *Manager) Create(ctx context.Context, contextLimit int) (*Session, error) {
	sess := New(contextLimit)
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load fetches a session by ID.
func (m *Manager) Load(ctx context.Context, id string) (*Session, bool, error) {
	return m.store.Load(ctx, id)
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	return m.store.Delete(ctx, id)
}

// List returns recency-ordered session summaries.
func (m *Manager) List(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	return m.store.ListSessions(ctx, limit, offset)
}

// PrepareMessages produces the exact turn list to send to
// provider.generate_with_history for the caller's pendingMessage, without
// mutating sess: raw history plus the pending user turn, optionally
// prefixed by a synthesized system message concatenating every gist
// summary, with the gisting instruction appended to the pending message
// when auto-gist is enabled and injectGist is true.
func (m *Manager) PrepareMessages(sess *Session, pendingMessage string, injectGist bool) []ChatTurn {
	turns := make([]ChatTurn, 0, len(sess.History)+2)

	if len(sess.SharedContext) > 0 {
		summaries := make([]string, 0, len(sess.SharedContext))
		for _, g := range sess.SharedContext {
			summaries = append(summaries, g.Summary)
		}
		turns = append(turns, ChatTurn{
			Role:    string(RoleSystem),
			Content: "Context from prior turns:\n" + strings.Join(summaries, "\n"),
		})
	}

	for _, msg := range sess.History {
		turns = append(turns, ChatTurn{Role: string(msg.Role), Content: msg.Content})
	}

	content := pendingMessage
	if m.cfg.AutoGist && injectGist {
		content = gisting.InjectInstruction(content)
	}
	turns = append(turns, ChatTurn{Role: string(RoleUser), Content: content})
	return turns
}

// AppendUserMessage appends and persists a user turn, estimating its token
// count from gisting.EstimateTokens.
func (m *Manager) AppendUserMessage(ctx context.Context, sess *Session, content string) error {
	tokens := gisting.EstimateTokens(content)
	sess.History = append(sess.History, Message{Role: RoleUser, Content: content, Tokens: tokens})
	sess.TokenStats.InputTokens += tokens
	return m.store.Save(ctx, sess)
}

// AppendAssistantTurn runs gist extraction on raw, appends the cleaned
// assistant message (and a per-turn gist, if one was extracted) to the
// session, persists it, then evaluates condensation pressure.
func (m *Manager) AppendAssistantTurn(ctx context.Context, sess *Session, raw, modelID string, outputTokens int) error {
	cleaned, gist, extracted := gisting.Extract(raw)

	sess.History = append(sess.History, Message{Role: RoleAssistant, Content: cleaned, ModelID: modelID, Tokens: outputTokens})
	sess.TokenStats.OutputTokens += outputTokens

	if extracted {
		sess.SharedContext = append(sess.SharedContext, Gist{SourceRole: "assistant", SourceModelID: modelID, Summary: gist, ReplacesCount: 0})
	} else if m.cfg.AutoGist {
		m.tryFallbackGist(ctx, sess, cleaned, modelID)
	}

	if err := m.store.Save(ctx, sess); err != nil {
		return err
	}

	if sess.TokenStats.Pressure() >= m.cfg.CondensationThreshold && len(sess.History) > 2 {
		m.condense(ctx, sess)
	}
	return nil
}

// CondenseIfNeeded runs condensation immediately when sess is already at or
// past the configured pressure threshold, for callers (session_message)
// that must condense before issuing the next turn rather than after it.
func (m *Manager) CondenseIfNeeded(ctx context.Context, sess *Session) {
	if sess.TokenStats.Pressure() >= m.cfg.CondensationThreshold && len(sess.History) > 2 {
		m.condense(ctx, sess)
	}
}

// tryFallbackGist requests a summary from the summarizer role when the
// model did not emit a marker itself. Failure is silent.
func (m *Manager) tryFallbackGist(ctx context.Context, sess *Session, response, modelID string) {
	if m.generateFn == nil {
		return
	}
	prompt := gisting.BuildFallbackPrompt(response)
	text, ok := m.generateFn(ctx, "summarizer", prompt)
	if !ok || strings.TrimSpace(text) == "" {
		return
	}
	sess.SharedContext = append(sess.SharedContext, Gist{SourceRole: "summarizer", SourceModelID: modelID, Summary: strings.TrimSpace(text), ReplacesCount: 0})
}

// condense runs the condensation protocol: split history, summarize the old
// portion via the injected generate function, and on success replace
// history with the kept tail and adjust token accounting. On failure the
// session is left unchanged.
func (m *Manager) condense(ctx context.Context, sess *Session) {
	if m.generateFn == nil || len(sess.History) <= 2 {
		return
	}
	old := sess.History[:len(sess.History)-2]
	kept := sess.History[len(sess.History)-2:]

	var b strings.Builder
	b.WriteString("Summarize the following conversation in a single paragraph:\n\n")
	for _, msg := range old {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(string(msg.Role)), msg.Content)
	}

	summary, ok := m.generateFn(ctx, "summarizer", b.String())
	if !ok || strings.TrimSpace(summary) == "" {
		return
	}
	summary = strings.TrimSpace(summary)

	var oldTokens int
	for _, msg := range old {
		oldTokens += msg.Tokens
	}
	adjustment := oldTokens - gisting.EstimateTokens(summary)
	if adjustment < 0 {
		adjustment = 0
	}

	sess.SharedContext = append(sess.SharedContext, Gist{
		SourceRole:    "summarizer",
		Summary:       summary,
		ReplacesCount: len(old),
	})
	sess.History = append([]Message(nil), kept...)
	sess.TokenStats.InputTokens -= adjustment
	if sess.TokenStats.InputTokens < 0 {
		sess.TokenStats.InputTokens = 0
	}

	if err := m.store.Save(ctx, sess); err != nil {
		log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("failed to persist session after condensation")
	}
}
