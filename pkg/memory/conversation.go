// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides conversation history for multi-turn dispatch
// sessions. It maintains ordered message sequences, not semantic retrieval.
package memory

import (
	"context"
	"time"
)

// Message is a single turn in a conversation history.
type Message struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Role      string            `json:"role"` // system, user, assistant
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Conversation stores and retrieves message history for multi-turn sessions.
type Conversation interface {
	// Append adds a message to the session.
	Append(ctx context.Context, sessionID string, msg Message) error

	// Messages retrieves all messages for a session, ordered by creation time.
	Messages(ctx context.Context, sessionID string) ([]Message, error)

	// Recent retrieves the last N messages for a session.
	Recent(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// Clear removes all messages for a session.
	Clear(ctx context.Context, sessionID string) error
}

// TruncationStrategy reduces a message list while preserving context.
type TruncationStrategy interface {
	Truncate(ctx context.Context, messages []Message) ([]Message, error)
}

// WindowStrategy keeps only the last N messages. System messages can be
// pinned so instructions survive truncation.
type WindowStrategy struct {
	MaxMessages        int
	KeepSystemMessages bool
}

// NewWindowStrategy creates a window-based truncation strategy.
func NewWindowStrategy(maxMessages int, keepSystem bool) *WindowStrategy {
	return &WindowStrategy{
		MaxMessages:        maxMessages,
		KeepSystemMessages: keepSystem,
	}
}

// Truncate implements TruncationStrategy.
func (w *WindowStrategy) Truncate(_ context.Context, messages []Message) ([]Message, error) {
	if len(messages) <= w.MaxMessages {
		return messages, nil
	}

	if !w.KeepSystemMessages {
		return messages[len(messages)-w.MaxMessages:], nil
	}

	var systemMsgs []Message
	var otherMsgs []Message
	for _, msg := range messages {
		if msg.Role == "system" {
			systemMsgs = append(systemMsgs, msg)
		} else {
			otherMsgs = append(otherMsgs, msg)
		}
	}

	available := w.MaxMessages - len(systemMsgs)
	if available < 0 {
		available = 0
	}
	if len(otherMsgs) > available {
		otherMsgs = otherMsgs[len(otherMsgs)-available:]
	}

	result := make([]Message, 0, len(systemMsgs)+len(otherMsgs))
	result = append(result, systemMsgs...)
	result = append(result, otherMsgs...)
	return result, nil
}
