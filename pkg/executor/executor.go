// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package executor runs resolved handlers under a deadline and converts
// overruns and raised faults into typed outcomes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arbiterhq/arbiter/pkg/faults"
	"github.com/arbiterhq/arbiter/pkg/registry"
)

// DefaultDeadline bounds a handler invocation when no override is given.
const DefaultDeadline = 10 * time.Second

// Result is the outcome of one bounded handler invocation.
type Result struct {
	Output  string
	Elapsed time.Duration
	Err     error
}

// Executor enforces a wall-clock deadline on handler invocations.
type Executor struct {
	// Deadline bounds each Run call. Zero means DefaultDeadline.
	Deadline time.Duration
}

// New creates an executor with the given deadline. Zero selects DefaultDeadline.
func New(deadline time.Duration) *Executor {
	return &Executor{Deadline: deadline}
}

// Run invokes a handler with the executor's deadline.
func (e *Executor) Run(ctx context.Context, h registry.Handler, params map[string]any) Result {
	deadline := e.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return e.RunWithDeadline(ctx, h, params, deadline)
}

// RunWithDeadline invokes a handler under a per-call deadline.
//
// The calling path is guaranteed to return once the deadline passes,
// regardless of handler cooperation. The handler itself receives a
// deadline-bound child of ctx, but a handler that ignores cancellation may
// keep running in the background; a TIMEOUT result means the output was
// discarded, not that the work stopped. Cancellation of ctx before the
// deadline surfaces as CANCELED, not TIMEOUT. Panics raised by the handler
// are caught and returned as HANDLER_FAULT.
func (e *Executor) RunWithDeadline(ctx context.Context, h registry.Handler, params map[string]any, deadline time.Duration) Result {
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type completion struct {
		output string
		err    error
	}
	done := make(chan completion, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- completion{err: fmt.Errorf("handler panicked: %v", r)}
			}
		}()
		output, err := h.Call(runCtx, params)
		done <- completion{output: output, err: err}
	}()

	select {
	case <-runCtx.Done():
		elapsed := time.Since(start)
		// Caller cancellation is not a timeout: the deadline never passed.
		if errors.Is(runCtx.Err(), context.Canceled) {
			return Result{
				Elapsed: elapsed,
				Err: faults.New(faults.CodeCanceled, "action canceled by caller", runCtx.Err()).
					WithContext("handler", h.Name()),
			}
		}
		return Result{
			Elapsed: elapsed,
			Err: faults.New(faults.CodeTimeout, "action execution timed out", runCtx.Err()).
				WithContext("handler", h.Name()).
				WithContext("deadline", deadline.String()).
				WithRecoverable(true),
		}
	case c := <-done:
		elapsed := time.Since(start)
		if c.err != nil {
			return Result{
				Elapsed: elapsed,
				Err: faults.New(faults.CodeHandlerFault, "handler execution failed", c.err).
					WithContext("handler", h.Name()),
			}
		}
		return Result{Output: c.output, Elapsed: elapsed}
	}
}
