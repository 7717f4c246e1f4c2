// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore error: %v", err)
	}
	return store
}

func TestSQLiteStoreAppendAndQuery(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		activityType := TypeToolUsage
		if i%2 == 1 {
			activityType = TypeCapabilityUsage
		}
		err := store.Append(ctx, Entry{
			Timestamp:    base.Add(time.Duration(i) * time.Second),
			ActivityType: activityType,
			AgentName:    "agent-main",
			Details:      map[string]any{"seq": i, "tool_name": "search_tool"},
			Metadata:     map[string]any{"source": "test"},
		})
		if err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	entries, err := store.Query(ctx, Filter{ActivityType: TypeToolUsage}, 5)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 tool_usage entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.ActivityType != TypeToolUsage {
			t.Errorf("expected tool_usage, got %q", entry.ActivityType)
		}
		if i > 0 && entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Errorf("entries not newest first at index %d", i)
		}
		if entry.Details["tool_name"] != "search_tool" {
			t.Errorf("expected tool_name detail to survive round trip, got %v", entry.Details)
		}
		if entry.Metadata["source"] != "test" {
			t.Errorf("expected metadata to survive round trip, got %v", entry.Metadata)
		}
	}
}

func TestSQLiteStoreNewestFirstSubsecond(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	// Fractional parts of different digit counts: .1s stored as RFC3339Nano
	// ("09:00:00.1Z") sorts lexicographically after .15s ("09:00:00.15Z").
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	older := base.Add(100 * time.Millisecond)
	newer := base.Add(150 * time.Millisecond)

	for _, e := range []Entry{
		{Timestamp: older, ActivityType: TypeToolUsage, AgentName: "agent-main", Details: map[string]any{"which": "older"}},
		{Timestamp: newer, ActivityType: TypeToolUsage, AgentName: "agent-main", Details: map[string]any{"which": "newer"}},
	} {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	entries, err := store.Query(ctx, Filter{}, 2)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Details["which"] != "newer" || entries[1].Details["which"] != "older" {
		t.Errorf("expected newest first within the same second, got %v then %v",
			entries[0].Details["which"], entries[1].Details["which"])
	}
	if !entries[0].Timestamp.Equal(newer) {
		t.Errorf("expected timestamp %v to survive the round trip, got %v", newer, entries[0].Timestamp)
	}
}

func TestSQLiteStoreQueryLimit(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	seedEntries(t, store, 10)

	entries, err := store.Query(ctx, Filter{}, 3)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

func TestSQLiteStoreQueryAgentFilter(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, agent := range []string{"agent-a", "agent-b", "agent-a"} {
		err := store.Append(ctx, Entry{
			Timestamp:    time.Now(),
			ActivityType: TypeAgentFallback,
			AgentName:    agent,
			Details:      map[string]any{"query": "hi"},
		})
		if err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	entries, err := store.Query(ctx, Filter{AgentName: "agent-a"}, 10)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for agent-a, got %d", len(entries))
	}
}

func TestSQLiteStoreZeroTimestampDefaults(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, Entry{ActivityType: TypeToolUsage, AgentName: "agent-main"}); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	entries, err := store.Query(ctx, Filter{}, 1)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 1 || entries[0].Timestamp.IsZero() {
		t.Errorf("expected a defaulted timestamp, got %+v", entries)
	}
}
