// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package activity records dispatch decisions as structured, queryable events.
package activity

import (
	"context"
	"time"
)

// Entry is one recorded dispatch event. The JSON field names are a wire
// contract for log consumers and must not change.
type Entry struct {
	Timestamp    time.Time      `json:"timestamp"`
	ActivityType string         `json:"activity_type"`
	AgentName    string         `json:"agent_name"`
	Details      map[string]any `json:"details"`
	Metadata     map[string]any `json:"metadata"`
}

// Filter selects entries by exact field match. Empty fields match any value;
// set fields are combined as a conjunction.
type Filter struct {
	ActivityType string
	AgentName    string
}

// Matches reports whether an entry satisfies the filter.
func (f Filter) Matches(e Entry) bool {
	if f.ActivityType != "" && e.ActivityType != f.ActivityType {
		return false
	}
	if f.AgentName != "" && e.AgentName != f.AgentName {
		return false
	}
	return true
}

// Store is a pluggable backend for activity entries. Append transfers
// ownership of the entry; Query returns entries newest-first, at most limit.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter Filter, limit int) ([]Entry, error)
}

// Common activity types emitted by the dispatcher.
const (
	TypeToolUsage       = "tool_usage"
	TypeCapabilityUsage = "capability_usage"
	TypeAgentFallback   = "agent_fallback"
	TypeParseFault      = "parse_fault"
)
