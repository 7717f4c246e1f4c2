// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultBufferSize = 256

// Logger decouples activity writes from the dispatch path. Entries are
// queued on a buffered channel and drained by a single worker, which keeps
// entries for the same agent observable in the order they were recorded.
//
// Record never fails the caller: if the store is unavailable or the queue
// is full, the entry degrades to the process log sink instead of blocking
// or failing the dispatch that produced it.
//
// Shutdown closes the queue channel under the write lock, so every entry
// enqueued before Close is drained by the worker; no entry is stranded
// between the stopped check and the send.
type Logger struct {
	store      Store
	sink       *slog.Logger
	queue      chan envelope
	stopOnce   sync.Once
	workerDone chan struct{}

	mu      sync.RWMutex
	stopped bool
}

type envelope struct {
	entry Entry
	flush chan struct{}
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithBufferSize sets the queue capacity.
func WithBufferSize(size int) LoggerOption {
	return func(l *Logger) {
		if size > 0 {
			l.queue = make(chan envelope, size)
		}
	}
}

// WithSink sets the degraded-mode log sink. Defaults to slog.Default().
func WithSink(sink *slog.Logger) LoggerOption {
	return func(l *Logger) {
		if sink != nil {
			l.sink = sink
		}
	}
}

// NewLogger creates a Logger backed by the given store and starts its worker.
func NewLogger(store Store, opts ...LoggerOption) *Logger {
	l := &Logger{
		store:      store,
		sink:       slog.Default(),
		queue:      make(chan envelope, defaultBufferSize),
		workerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

// Record queues one activity entry. It never blocks on the store and never
// returns an error; a full queue or a stopped logger degrades to the sink.
func (l *Logger) Record(ctx context.Context, activityType, agentName string, details, metadata map[string]any) {
	entry := Entry{
		Timestamp:    time.Now().UTC(),
		ActivityType: activityType,
		AgentName:    agentName,
		Details:      details,
		Metadata:     metadata,
	}

	if reason := l.enqueue(envelope{entry: entry}); reason != "" {
		l.degrade(ctx, entry, reason)
	}
}

// enqueue attempts a non-blocking send while holding the read lock, which
// excludes Close from closing the queue mid-send. Returns the degradation
// reason, or "" on success.
func (l *Logger) enqueue(env envelope) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.stopped {
		return "logger stopped"
	}
	select {
	case l.queue <- env:
		return ""
	default:
		return "queue full"
	}
}

// Query returns stored entries matching the filter, newest first.
func (l *Logger) Query(ctx context.Context, filter Filter, limit int) ([]Entry, error) {
	return l.store.Query(ctx, filter, limit)
}

// Flush blocks until every entry queued before the call has been written.
func (l *Logger) Flush() {
	flushed := make(chan struct{})

	l.mu.RLock()
	if l.stopped {
		l.mu.RUnlock()
		return
	}
	// Blocking send is safe: the worker is draining and Close cannot close
	// the queue while the read lock is held.
	l.queue <- envelope{flush: flushed}
	l.mu.RUnlock()

	<-flushed
}

// Close stops accepting entries, drains everything already queued, and waits
// for the worker to finish. Record calls after Close degrade to the sink.
func (l *Logger) Close() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		close(l.queue)
		l.mu.Unlock()
		<-l.workerDone
	})
}

func (l *Logger) run() {
	defer close(l.workerDone)
	for env := range l.queue {
		l.handle(env)
	}
}

func (l *Logger) handle(env envelope) {
	if env.flush != nil {
		close(env.flush)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Append(ctx, env.entry); err != nil {
		l.sink.Warn("activity store unavailable, entry degraded to log sink",
			slog.String("activity_type", env.entry.ActivityType),
			slog.String("agent_name", env.entry.AgentName),
			slog.Any("details", env.entry.Details),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Logger) degrade(ctx context.Context, entry Entry, reason string) {
	l.sink.WarnContext(ctx, "activity entry degraded to log sink",
		slog.String("reason", reason),
		slog.String("activity_type", entry.ActivityType),
		slog.String("agent_name", entry.AgentName),
		slog.Any("details", entry.Details),
	)
}
