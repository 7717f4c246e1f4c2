// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type failingStore struct{}

func (failingStore) Append(_ context.Context, _ Entry) error {
	return errors.New("backend unreachable")
}

func (failingStore) Query(_ context.Context, _ Filter, _ int) ([]Entry, error) {
	return nil, errors.New("backend unreachable")
}

func TestLoggerRecordAndQuery(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store)
	defer logger.Close()

	logger.Record(context.Background(), TypeToolUsage, "agent-main",
		map[string]any{"tool_name": "search_tool"}, nil)
	logger.Flush()

	entries, err := logger.Query(context.Background(), Filter{ActivityType: TypeToolUsage}, 5)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.ActivityType != TypeToolUsage {
		t.Errorf("expected activity_type tool_usage, got %q", entry.ActivityType)
	}
	if entry.AgentName != "agent-main" {
		t.Errorf("expected agent_name agent-main, got %q", entry.AgentName)
	}
	if entry.Details["tool_name"] != "search_tool" {
		t.Errorf("expected tool_name detail, got %v", entry.Details)
	}
	if entry.Timestamp.IsZero() {
		t.Errorf("expected a timestamp to be set")
	}
}

func TestLoggerPreservesPerAgentOrder(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store)
	defer logger.Close()

	for i := 0; i < 20; i++ {
		logger.Record(context.Background(), TypeToolUsage, "agent-main",
			map[string]any{"seq": i}, nil)
	}
	logger.Flush()

	entries, err := logger.Query(context.Background(), Filter{AgentName: "agent-main"}, 20)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(entries))
	}
	// Newest first means descending sequence numbers.
	for i, entry := range entries {
		if got := entry.Details["seq"]; got != 19-i {
			t.Fatalf("entry %d out of order: expected seq %d, got %v", i, 19-i, got)
		}
	}
}

func TestLoggerDegradesOnStoreFailure(t *testing.T) {
	var buf bytes.Buffer
	sink := slog.New(slog.NewTextHandler(&buf, nil))

	logger := NewLogger(failingStore{}, WithSink(sink))
	logger.Record(context.Background(), TypeAgentFallback, "agent-main",
		map[string]any{"query": "hello"}, nil)
	logger.Close()

	if !strings.Contains(buf.String(), "degraded") {
		t.Errorf("expected degraded-mode sink output, got %q", buf.String())
	}
}

func TestLoggerRecordAfterClose(t *testing.T) {
	var buf bytes.Buffer
	sink := slog.New(slog.NewTextHandler(&buf, nil))

	store := NewMemoryStore()
	logger := NewLogger(store, WithSink(sink))
	logger.Close()

	logger.Record(context.Background(), TypeToolUsage, "agent-main", nil, nil)
	if store.Len() != 0 {
		t.Errorf("expected no store writes after Close")
	}
	if !strings.Contains(buf.String(), "logger stopped") {
		t.Errorf("expected degraded sink output after Close, got %q", buf.String())
	}
}

func TestLoggerCloseDrainsQueue(t *testing.T) {
	store := NewMemoryStore()
	logger := NewLogger(store)

	const n = 50
	for i := 0; i < n; i++ {
		logger.Record(context.Background(), TypeToolUsage, "agent-main",
			map[string]any{"seq": i}, nil)
	}
	logger.Close()

	if store.Len() != n {
		t.Errorf("expected Close to drain all %d queued entries, got %d", n, store.Len())
	}
}

func TestLoggerConcurrentRecordAndClose(t *testing.T) {
	var buf bytes.Buffer
	sink := slog.New(slog.NewTextHandler(&buf, nil))
	store := NewMemoryStore()
	logger := NewLogger(store, WithSink(sink))

	// Every entry recorded while Close races must end up either in the store
	// or degraded to the sink; none may be stranded.
	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Record(context.Background(), TypeToolUsage, "agent-main",
				map[string]any{"seq": i}, nil)
		}(i)
	}
	logger.Close()
	wg.Wait()

	degraded := strings.Count(buf.String(), "degraded to log sink")
	if got := store.Len() + degraded; got != n {
		t.Errorf("expected %d entries stored or degraded, got %d (stored=%d degraded=%d)",
			n, got, store.Len(), degraded)
	}
}

func TestLoggerQueueOverflowDoesNotBlock(t *testing.T) {
	var buf bytes.Buffer
	sink := slog.New(slog.NewTextHandler(&buf, nil))

	block := make(chan struct{})
	store := &blockingStore{release: block, inner: NewMemoryStore()}
	logger := NewLogger(store, WithBufferSize(1), WithSink(sink))

	// First record occupies the worker, the rest overflow the queue.
	for i := 0; i < 5; i++ {
		logger.Record(context.Background(), TypeToolUsage, "agent-main",
			map[string]any{"seq": i}, nil)
	}
	close(block)
	logger.Close()

	if !strings.Contains(buf.String(), "queue full") {
		t.Errorf("expected queue-full degradation, got %q", buf.String())
	}
}

type blockingStore struct {
	release chan struct{}
	inner   *MemoryStore
}

func (s *blockingStore) Append(ctx context.Context, entry Entry) error {
	<-s.release
	return s.inner.Append(ctx, entry)
}

func (s *blockingStore) Query(ctx context.Context, filter Filter, limit int) ([]Entry, error) {
	return s.inner.Query(ctx, filter, limit)
}
