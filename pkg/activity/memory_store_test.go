// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedEntries(t *testing.T, store Store, n int) {
	t.Helper()
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		activityType := TypeToolUsage
		if i%2 == 1 {
			activityType = TypeAgentFallback
		}
		err := store.Append(context.Background(), Entry{
			Timestamp:    base.Add(time.Duration(i) * time.Millisecond),
			ActivityType: activityType,
			AgentName:    "agent-main",
			Details:      map[string]any{"seq": i},
			Metadata:     map[string]any{},
		})
		if err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}
}

func TestMemoryStoreQueryNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	seedEntries(t, store, 10)

	entries, err := store.Query(context.Background(), Filter{}, 4)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if got := entry.Details["seq"]; got != 9-i {
			t.Errorf("entry %d: expected seq %d, got %v", i, 9-i, got)
		}
	}
}

func TestMemoryStoreQueryFilterByType(t *testing.T) {
	store := NewMemoryStore()
	seedEntries(t, store, 12)

	entries, err := store.Query(context.Background(), Filter{ActivityType: TypeToolUsage}, 5)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) > 5 {
		t.Fatalf("expected at most 5 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.ActivityType != TypeToolUsage {
			t.Errorf("expected activity_type %q, got %q", TypeToolUsage, entry.ActivityType)
		}
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Errorf("entries not newest first at index %d", i)
		}
	}
}

func TestMemoryStoreQueryFilterConjunction(t *testing.T) {
	store := NewMemoryStore()
	for i, agent := range []string{"agent-a", "agent-b", "agent-a"} {
		err := store.Append(context.Background(), Entry{
			Timestamp:    time.Now().UTC(),
			ActivityType: TypeToolUsage,
			AgentName:    agent,
			Details:      map[string]any{"seq": fmt.Sprint(i)},
		})
		if err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	entries, err := store.Query(context.Background(), Filter{ActivityType: TypeToolUsage, AgentName: "agent-a"}, 10)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for agent-a, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.AgentName != "agent-a" {
			t.Errorf("expected agent-a, got %q", entry.AgentName)
		}
	}
}

func TestMemoryStoreQueryZeroLimit(t *testing.T) {
	store := NewMemoryStore()
	seedEntries(t, store, 3)

	entries, err := store.Query(context.Background(), Filter{}, 0)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries for zero limit, got %d", len(entries))
	}
}
