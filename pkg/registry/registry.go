// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maintains the dispatch table of invocable handlers,
// separated into the tool and capability namespaces.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/arbiterhq/arbiter/pkg/action"
	"github.com/arbiterhq/arbiter/pkg/faults"
)

// Handler is an invocable entry in the dispatch table.
type Handler interface {
	Name() string
	Call(ctx context.Context, params map[string]any) (string, error)
}

// HandlerFunc adapts a named function to the Handler interface.
type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, params map[string]any) (string, error)
}

// Name returns the handler name.
func (h HandlerFunc) Name() string { return h.HandlerName }

// Call invokes the wrapped function.
func (h HandlerFunc) Call(ctx context.Context, params map[string]any) (string, error) {
	return h.Fn(ctx, params)
}

// Func builds a HandlerFunc from a name and function.
func Func(name string, fn func(ctx context.Context, params map[string]any) (string, error)) HandlerFunc {
	return HandlerFunc{HandlerName: name, Fn: fn}
}

// Registry maps (namespace, name) to handlers. Registration is expected
// during setup, but mutation is guarded so late registration is defined.
// Resolve is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[action.Namespace]map[string]Handler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		handlers: map[action.Namespace]map[string]Handler{
			action.NamespaceTool:       {},
			action.NamespaceCapability: {},
		},
	}
}

// Register adds a handler under the given namespace. Re-registration of an
// existing (namespace, name) is rejected with DUPLICATE_HANDLER; the first
// registration stays resolvable.
func (r *Registry) Register(ns action.Namespace, h Handler) error {
	if h == nil || h.Name() == "" {
		return faults.New(faults.CodeInvalidInput, "handler with a non-empty name is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	table, ok := r.handlers[ns]
	if !ok {
		return faults.New(faults.CodeInvalidInput, "unknown namespace", nil).
			WithContext("namespace", string(ns))
	}
	if _, exists := table[h.Name()]; exists {
		return faults.New(faults.CodeDuplicateHandler, "handler already registered", nil).
			WithContext("namespace", string(ns)).
			WithContext("name", h.Name())
	}
	table[h.Name()] = h
	return nil
}

// Resolve looks up a handler by namespace and name. It has no side effects.
func (r *Registry) Resolve(ns action.Namespace, name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[ns][name]; ok {
		return h, nil
	}
	return nil, faults.New(faults.CodeNotFound, "handler not found", nil).
		WithContext("namespace", string(ns)).
		WithContext("name", name)
}

// Names returns the sorted handler names registered under a namespace.
func (r *Registry) Names(ns action.Namespace) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers[ns]))
	for name := range r.handlers[ns] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
