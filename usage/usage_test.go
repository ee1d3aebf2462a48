package usage

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "usage.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndQueryRoundTrip(t *testing.T) {
	store := openTestStore(t)

	rec := Record{
		TimestampUTC: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
		ModelID:      "m1", Provider: "ollama", Role: "coding", Intent: "SIMPLE_CODE",
		InputTokens: 10, OutputTokens: 5, ElapsedSeconds: 0.5, Success: true, IsCloud: false,
	}
	if err := store.Record(rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	records, err := store.Query(nil, nil, "", "", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	got := records[0]
	if got.ModelID != rec.ModelID || got.InputTokens != rec.InputTokens || !got.Success {
		t.Fatalf("round-tripped record mismatch: %+v", got)
	}
}

func TestQueryFiltersByModelAndRole(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	store.Record(Record{TimestampUTC: now, ModelID: "m1", Provider: "ollama", Role: "coding", Success: true})
	store.Record(Record{TimestampUTC: now, ModelID: "m2", Provider: "claude", Role: "router", Success: true})

	byModel, err := store.Query(nil, nil, "m1", "", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byModel) != 1 || byModel[0].ModelID != "m1" {
		t.Fatalf("expected only m1, got %+v", byModel)
	}

	byRole, err := store.Query(nil, nil, "", "", "router")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(byRole) != 1 || byRole[0].Role != "router" {
		t.Fatalf("expected only router role, got %+v", byRole)
	}
}

func TestAggregateAndTotalTokens(t *testing.T) {
	store := openTestStore(t)
	now := time.Now().UTC()
	store.Record(Record{TimestampUTC: now, ModelID: "m1", Provider: "ollama", Role: "coding", InputTokens: 10, OutputTokens: 2})
	store.Record(Record{TimestampUTC: now, ModelID: "m1", Provider: "ollama", Role: "coding", InputTokens: 5, OutputTokens: 1})

	agg, err := store.AggregateTokens()
	if err != nil {
		t.Fatalf("AggregateTokens: %v", err)
	}
	if len(agg) != 1 || agg[0].InputTokens != 15 || agg[0].CallCount != 2 {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}

	input, output, err := store.TotalTokens()
	if err != nil {
		t.Fatalf("TotalTokens: %v", err)
	}
	if input != 15 || output != 3 {
		t.Fatalf("TotalTokens = (%d, %d), want (15, 3)", input, output)
	}
}

func TestPurgeBefore(t *testing.T) {
	store := openTestStore(t)
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Now().UTC()
	store.Record(Record{TimestampUTC: old, ModelID: "m1", Provider: "ollama", Role: "coding"})
	store.Record(Record{TimestampUTC: recent, ModelID: "m1", Provider: "ollama", Role: "coding"})

	cutoff := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	purged, err := store.PurgeBefore(cutoff.Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("PurgeBefore: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}

	remaining, err := store.Query(nil, nil, "", "", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(remaining))
	}
}
