// Package usage implements the append-only record of every model call
// attempt, persisted to SQLite via the pure-Go modernc.org/sqlite driver.
package usage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/auracore/aurarouter/logger"
)

var log = logger.New("usage")

// Record is a single call-attempt row, emitted once per attempt whether it
// succeeded or failed.
type Record struct {
	ID             int64
	TimestampUTC   time.Time
	ModelID        string
	Provider       string
	Role           string
	Intent         string
	InputTokens    int
	OutputTokens   int
	ElapsedSeconds float64
	Success        bool
	IsCloud        bool
}

// Store is the thread-safe, append-only usage record store. Writes are
// serialized under a single lock; reads may proceed concurrently against
// the underlying SQLite connection pool.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// DefaultPath returns ~/.auracore/aurarouter/usage.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".auracore", "aurarouter", "usage.db")
}

// Open creates or opens the usage database at path, creating the schema if
// absent.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating usage db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening usage db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer avoids SQLITE_BUSY

	const schema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	model_id TEXT NOT NULL,
	provider TEXT NOT NULL,
	role TEXT NOT NULL,
	intent TEXT NOT NULL DEFAULT '',
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	elapsed_seconds REAL NOT NULL,
	success INTEGER NOT NULL,
	is_cloud INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_model ON usage_records(model_id);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating usage schema: %w", err)
	}
	log.Info().Str("path", path).Msg("usage store opened")
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying database handle, so collocated stores
// (privacy events share usage.db) can open against the same connection
// rather than a second file.
func (s *Store) DB() *sql.DB { return s.db }

// Record appends a single usage row.
func (s *Store) Record(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO usage_records (timestamp, model_id, provider, role, intent, input_tokens, output_tokens, elapsed_seconds, success, is_cloud)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.TimestampUTC.UTC().Format(time.RFC3339Nano), r.ModelID, r.Provider, r.Role, r.Intent,
		r.InputTokens, r.OutputTokens, r.ElapsedSeconds, boolToInt(r.Success), boolToInt(r.IsCloud),
	)
	if err != nil {
		return fmt.Errorf("recording usage row: %w", err)
	}
	return nil
}

// Query returns rows matching the given optional filters, in timestamp order.
// Any of start, end, modelID, provider, role may be zero-valued to mean
// "no filter on this dimension".
func (s *Store) Query(start, end *time.Time, modelID, provider, role string) ([]Record, error) {
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
	if modelID != "" {
		clauses = append(clauses, "model_id = ?")
		args = append(args, modelID)
	}
	if provider != "" {
		clauses = append(clauses, "provider = ?")
		args = append(args, provider)
	}
	if role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, role)
	}

	query := "SELECT id, timestamp, model_id, provider, role, intent, input_tokens, output_tokens, elapsed_seconds, success, is_cloud FROM usage_records WHERE "
	for i, c := range clauses {
		if i > 0 {
			query += " AND "
		}
		query += c
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage rows: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts string
		var success, isCloud int
		if err := rows.Scan(&r.ID, &ts, &r.ModelID, &r.Provider, &r.Role, &r.Intent,
			&r.InputTokens, &r.OutputTokens, &r.ElapsedSeconds, &success, &isCloud); err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		r.TimestampUTC, _ = time.Parse(time.RFC3339Nano, ts)
		r.Success = success != 0
		r.IsCloud = isCloud != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// TokenAggregate summarizes token usage for one model.
type TokenAggregate struct {
	ModelID      string
	InputTokens  int
	OutputTokens int
	CallCount    int
}

// AggregateTokens groups token counts by model_id.
func (s *Store) AggregateTokens() ([]TokenAggregate, error) {
	rows, err := s.db.Query(
		`SELECT model_id, SUM(input_tokens), SUM(output_tokens), COUNT(*)
		 FROM usage_records GROUP BY model_id ORDER BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("aggregating usage tokens: %w", err)
	}
	defer rows.Close()

	var out []TokenAggregate
	for rows.Next() {
		var a TokenAggregate
		if err := rows.Scan(&a.ModelID, &a.InputTokens, &a.OutputTokens, &a.CallCount); err != nil {
			return nil, fmt.Errorf("scanning token aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// TotalTokens returns the sum of input and output tokens across every row.
func (s *Store) TotalTokens() (input, output int, err error) {
	row := s.db.QueryRow(`SELECT COALESCE(SUM(input_tokens),0), COALESCE(SUM(output_tokens),0) FROM usage_records`)
	if err := row.Scan(&input, &output); err != nil {
		return 0, 0, fmt.Errorf("summing usage tokens: %w", err)
	}
	return input, output, nil
}

// PurgeBefore deletes every row with timestamp strictly before the given
// ISO-8601 timestamp.
func (s *Store) PurgeBefore(isoTimestamp string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM usage_records WHERE timestamp < ?`, isoTimestamp)
	if err != nil {
		return 0, fmt.Errorf("purging usage rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
