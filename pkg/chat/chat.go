// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"

	"github.com/arbiterhq/arbiter/pkg/memory"
)

// MemoryChat answers conversational input from a playbook and records each
// turn into conversation memory so the transcript survives across queries.
type MemoryChat struct {
	playbook  *Playbook
	history   memory.Conversation
	sessionID string
}

// Option configures a MemoryChat.
type Option func(*MemoryChat)

// WithHistory records turns into the given conversation store.
func WithHistory(conv memory.Conversation, sessionID string) Option {
	return func(c *MemoryChat) {
		c.history = conv
		c.sessionID = sessionID
	}
}

// New creates a MemoryChat over the given playbook.
func New(playbook *Playbook, opts ...Option) *MemoryChat {
	c := &MemoryChat{playbook: playbook}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat returns the playbook reply for the input and appends both turns to
// the conversation history when one is configured. History failures do not
// fail the reply.
func (c *MemoryChat) Chat(ctx context.Context, input string) (string, error) {
	reply := c.playbook.Reply(input)

	if c.history != nil {
		_ = c.history.Append(ctx, c.sessionID, memory.Message{Role: "user", Content: input})
		_ = c.history.Append(ctx, c.sessionID, memory.Message{Role: "assistant", Content: reply})
	}
	return reply, nil
}

// Transcript returns the recorded conversation so far, oldest first.
func (c *MemoryChat) Transcript(ctx context.Context) ([]memory.Message, error) {
	if c.history == nil {
		return nil, nil
	}
	return c.history.Messages(ctx, c.sessionID)
}
