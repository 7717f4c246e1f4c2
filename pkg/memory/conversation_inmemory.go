// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryConversation implements Conversation with in-memory storage.
// Suitable for development, testing, and single-instance deployments.
// Data is lost on restart.
type InMemoryConversation struct {
	mu         sync.RWMutex
	sessions   map[string][]Message
	truncation TruncationStrategy
}

// NewInMemoryConversation creates a new in-memory conversation store.
// The truncation strategy is optional.
func NewInMemoryConversation(truncation TruncationStrategy) *InMemoryConversation {
	return &InMemoryConversation{
		sessions:   make(map[string][]Message),
		truncation: truncation,
	}
}

// Append adds a message to the session, assigning an ID and timestamp if unset.
func (m *InMemoryConversation) Append(_ context.Context, sessionID string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SessionID == "" {
		msg.SessionID = sessionID
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	m.sessions[sessionID] = append(m.sessions[sessionID], msg)
	return nil
}

// Messages retrieves all messages for a session, applying the truncation
// strategy when one is configured.
func (m *InMemoryConversation) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	m.mu.RLock()
	messages := make([]Message, len(m.sessions[sessionID]))
	copy(messages, m.sessions[sessionID])
	m.mu.RUnlock()

	if m.truncation != nil && len(messages) > 0 {
		return m.truncation.Truncate(ctx, messages)
	}
	return messages, nil
}

// Recent retrieves the last N messages for a session.
func (m *InMemoryConversation) Recent(_ context.Context, sessionID string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.sessions[sessionID]
	if limit < 0 {
		limit = 0
	}
	if len(all) <= limit {
		result := make([]Message, len(all))
		copy(result, all)
		return result, nil
	}

	result := make([]Message, limit)
	copy(result, all[len(all)-limit:])
	return result, nil
}

// Clear removes all messages for a session.
func (m *InMemoryConversation) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// ListSessions returns all active session IDs.
func (m *InMemoryConversation) ListSessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MessageCount returns the number of messages in a session.
func (m *InMemoryConversation) MessageCount(sessionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions[sessionID])
}
