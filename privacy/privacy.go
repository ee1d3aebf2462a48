// Package privacy implements the prompt auditor and its persistent event
// store: pattern-matching prompts bound for cloud-tier destinations, never
// persisting the matched text beyond a four-character prefix.
package privacy

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/auracore/aurarouter/logger"
)

var log = logger.New("privacy")

// Severity is the sensitivity level of a matched pattern.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityRank = map[Severity]int{SeverityLow: 1, SeverityMedium: 2, SeverityHigh: 3}

// Pattern is one compiled rule the auditor scans a prompt with.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Severity    Severity
	Description string
}

// builtinPatterns is the fixed rule set every auditor starts from; custom
// patterns extend it, never replace it.
func builtinPatterns() []Pattern {
	return []Pattern{
		{"Email Address", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), SeverityMedium,
			"An email address"},
		{"API Key", regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password)\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}["']?`), SeverityHigh,
			"A credential-shaped key/value pair"},
		{"AWS Access Key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), SeverityHigh,
			"An AWS access key ID"},
		{"SSN", regexp.MustCompile(`\d{3}-\d{2}-\d{4}`), SeverityHigh,
			"A US Social Security Number"},
		{"Credit Card", regexp.MustCompile(`(?:\d{4}[- ]?){3}\d{4}`), SeverityHigh,
			"A credit card number"},
		{"Confidential Marker", regexp.MustCompile(`(?i)(confidential|classified|top secret|internal only|proprietary)`), SeverityMedium,
			"Document marked confidential or restricted"},
		{"Private IP Address", regexp.MustCompile(`\b(?:10(?:\.\d{1,3}){3}|192\.168(?:\.\d{1,3}){2}|172\.(?:1[6-9]|2\d|3[01])(?:\.\d{1,3}){2})\b`), SeverityLow,
			"An RFC1918 private IP address"},
	}
}

// Match is one pattern hit within a scanned prompt.
type Match struct {
	PatternName  string
	Severity     Severity
	RedactedText string
	Position     int
}

// Event is the persisted record of a single audited prompt that matched at
// least one pattern. The prompt text itself is never stored.
type Event struct {
	ID             int64
	TimestampUTC   time.Time
	ModelID        string
	Provider       string
	MatchCount     int
	Severities     []Severity
	PatternNames   []string
	PromptLength   int
	Recommendation string
}

// HostingTierClassifier resolves the effective hosting tier for a model,
// narrowed to exactly what the auditor needs from the savings package
// (kept here to avoid privacy depending on savings).
type HostingTierClassifier func(hostingTier, provider string) bool

// Auditor scans prompts bound for cloud-tier destinations against the
// built-in and any configured custom patterns.
type Auditor struct {
	patterns []Pattern
	isCloud  HostingTierClassifier
}

// NewAuditor builds an auditor from the built-in patterns plus custom
// patterns (which extend, never override, the built-ins). isCloudTier
// decides whether a given (hostingTier, provider) pair is cloud-tier.
func NewAuditor(custom []Pattern, isCloudTier HostingTierClassifier) *Auditor {
	patterns := append(builtinPatterns(), custom...)
	return &Auditor{patterns: patterns, isCloud: isCloudTier}
}

// Audit scans prompt and returns a non-nil event iff the destination is
// cloud-tier and at least one pattern matched.
func (a *Auditor) Audit(prompt, modelID, provider, hostingTier string) *Event {
	if !a.isCloud(hostingTier, provider) {
		return nil
	}

	var matches []Match
	for _, p := range a.patterns {
		for _, loc := range p.Regex.FindAllStringIndex(prompt, -1) {
			text := prompt[loc[0]:loc[1]]
			matches = append(matches, Match{
				PatternName:  p.Name,
				Severity:     p.Severity,
				RedactedText: redact(text),
				Position:     loc[0],
			})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	var severities []Severity
	seen := map[Severity]bool{}
	patNames := make([]string, 0, len(matches))
	patSeen := map[string]bool{}
	for _, m := range matches {
		if !seen[m.Severity] {
			seen[m.Severity] = true
			severities = append(severities, m.Severity)
		}
		if !patSeen[m.PatternName] {
			patSeen[m.PatternName] = true
			patNames = append(patNames, m.PatternName)
		}
	}

	return &Event{
		TimestampUTC:   time.Now().UTC(),
		ModelID:        modelID,
		Provider:       provider,
		MatchCount:     len(matches),
		Severities:     severities,
		PatternNames:   patNames,
		PromptLength:   len(prompt),
		Recommendation: recommendation(severities),
	}
}

func recommendation(severities []Severity) string {
	best := Severity("")
	for _, s := range severities {
		if severityRank[s] > severityRank[best] {
			best = s
		}
	}
	switch best {
	case SeverityHigh:
		return "Route this request to an on-prem model; high-sensitivity data detected."
	case SeverityMedium:
		return "Consider routing to an on-prem model for this request."
	default:
		return "Low-sensitivity match; cloud routing acceptable if otherwise permitted."
	}
}

func redact(text string) string {
	if len(text) <= 4 {
		return text + "***"
	}
	return text[:4] + "***"
}

// Store is the persistent, thread-safe, append-only privacy event log.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenWith wraps an already-open *sql.DB (shared with the usage store, so
// both logs live in one usage.db file) and ensures the privacy_events
// table exists.
func OpenWith(db *sql.DB) (*Store, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS privacy_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	model_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	match_count INTEGER NOT NULL,
	severities_json TEXT NOT NULL,
	pattern_names_json TEXT NOT NULL,
	prompt_length INTEGER NOT NULL,
	recommendation TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_privacy_timestamp ON privacy_events(timestamp);
`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating privacy schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record persists an event.
func (s *Store) Record(e Event) error {
	severities := make([]string, len(e.Severities))
	for i, sev := range e.Severities {
		severities[i] = string(sev)
	}
	sevJSON, err := json.Marshal(severities)
	if err != nil {
		return fmt.Errorf("encoding severities: %w", err)
	}
	namesJSON, err := json.Marshal(e.PatternNames)
	if err != nil {
		return fmt.Errorf("encoding pattern names: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO privacy_events (timestamp, model_id, provider, match_count, severities_json, pattern_names_json, prompt_length, recommendation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TimestampUTC.UTC().Format(time.RFC3339Nano), e.ModelID, e.Provider, e.MatchCount,
		string(sevJSON), string(namesJSON), e.PromptLength, e.Recommendation,
	)
	if err != nil {
		return fmt.Errorf("recording privacy event: %w", err)
	}
	log.Warn().Str("model_id", e.ModelID).Int("matches", e.MatchCount).Msg("privacy audit matched a cloud-bound prompt")
	return nil
}

// Query returns events in [start, end) whose maximum severity meets or
// exceeds minSeverity (empty string means no floor).
func (s *Store) Query(start, end *time.Time, minSeverity Severity) ([]Event, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if start != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, start.UTC().Format(time.RFC3339Nano))
	}
	if end != nil {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, end.UTC().Format(time.RFC3339Nano))
	}
	query := "SELECT id, timestamp, model_id, provider, match_count, severities_json, pattern_names_json, prompt_length, recommendation FROM privacy_events WHERE "
	for i, c := range clauses {
		if i > 0 {
			query += " AND "
		}
		query += c
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying privacy events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts, sevJSON, namesJSON string
		if err := rows.Scan(&e.ID, &ts, &e.ModelID, &e.Provider, &e.MatchCount, &sevJSON, &namesJSON, &e.PromptLength, &e.Recommendation); err != nil {
			return nil, fmt.Errorf("scanning privacy event: %w", err)
		}
		e.TimestampUTC, _ = time.Parse(time.RFC3339Nano, ts)
		var sevStrs []string
		_ = json.Unmarshal([]byte(sevJSON), &sevStrs)
		for _, s := range sevStrs {
			e.Severities = append(e.Severities, Severity(s))
		}
		_ = json.Unmarshal([]byte(namesJSON), &e.PatternNames)

		if minSeverity != "" && !meetsFloor(e.Severities, minSeverity) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func meetsFloor(severities []Severity, floor Severity) bool {
	best := Severity("")
	for _, s := range severities {
		if severityRank[s] > severityRank[best] {
			best = s
		}
	}
	return severityRank[best] >= severityRank[floor]
}

// Summary is the aggregated view over all persisted events.
type Summary struct {
	TotalEvents int
	BySeverity  map[Severity]int
	ByPattern   map[string]int
}

// Summary aggregates every persisted event.
func (s *Store) Summary() (Summary, error) {
	events, err := s.Query(nil, nil, "")
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{BySeverity: map[Severity]int{}, ByPattern: map[string]int{}}
	for _, e := range events {
		summary.TotalEvents++
		for _, sev := range e.Severities {
			summary.BySeverity[sev]++
		}
		for _, name := range e.PatternNames {
			summary.ByPattern[name]++
		}
	}
	return summary, nil
}
