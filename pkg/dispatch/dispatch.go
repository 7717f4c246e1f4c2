// Copyright 2026 © The Arbiter Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch routes raw agent input through parse, resolve, execute,
// and log stages, falling back to conversational handling for input that
// does not invoke a tool or capability.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arbiterhq/arbiter/pkg/action"
	"github.com/arbiterhq/arbiter/pkg/activity"
	"github.com/arbiterhq/arbiter/pkg/executor"
	"github.com/arbiterhq/arbiter/pkg/faults"
	"github.com/arbiterhq/arbiter/pkg/registry"
	"github.com/arbiterhq/arbiter/pkg/telemetry"
)

// Source identifies where a dispatch result came from.
type Source string

const (
	SourceTool       Source = "tool"
	SourceCapability Source = "capability"
	SourceFallback   Source = "fallback"
)

// ChatHandler produces a conversational reply for input that is not an
// action invocation.
type ChatHandler interface {
	Chat(ctx context.Context, input string) (string, error)
}

// Outcome is the result of one dispatch. Result always holds the text to
// hand back to the caller, including the user-facing message when Fault is
// set.
type Outcome struct {
	Result  string
	Source  Source
	Elapsed time.Duration
	Fault   *faults.Fault
}

// Dispatcher routes input through the parse-resolve-execute-log pipeline.
// Every dispatch produces exactly one activity entry.
type Dispatcher struct {
	agentName string
	registry  *registry.Registry
	executor  *executor.Executor
	logger    *activity.Logger
	chat      ChatHandler
	metrics   *telemetry.DispatchMetrics
	tracer    trace.Tracer
	log       *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithDeadline overrides the default handler execution deadline.
func WithDeadline(d time.Duration) Option {
	return func(dp *Dispatcher) {
		dp.executor = executor.New(d)
	}
}

// WithMetrics records dispatch counters and latency.
func WithMetrics(m *telemetry.DispatchMetrics) Option {
	return func(dp *Dispatcher) {
		dp.metrics = m
	}
}

// WithSlog overrides the structured logger.
func WithSlog(log *slog.Logger) Option {
	return func(dp *Dispatcher) {
		dp.log = log
	}
}

// New creates a Dispatcher. The registry, activity logger, and chat fallback
// are required.
func New(agentName string, reg *registry.Registry, logger *activity.Logger, chat ChatHandler, opts ...Option) (*Dispatcher, error) {
	if agentName == "" {
		return nil, faults.New(faults.CodeInvalidInput, "agent name is required", nil)
	}
	if reg == nil {
		return nil, faults.New(faults.CodeInvalidInput, "registry is required", nil)
	}
	if logger == nil {
		return nil, faults.New(faults.CodeInvalidInput, "activity logger is required", nil)
	}
	if chat == nil {
		return nil, faults.New(faults.CodeInvalidInput, "chat handler is required", nil)
	}

	dp := &Dispatcher{
		agentName: agentName,
		registry:  reg,
		executor:  executor.New(0),
		logger:    logger,
		chat:      chat,
		tracer:    otel.Tracer("arbiter/dispatch"),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(dp)
	}
	return dp, nil
}

// Dispatch routes one input and returns its outcome. It never panics and
// never returns an empty Result without a Fault: conversational input gets a
// chat reply, action input gets the handler output or a user-facing failure
// message.
func (dp *Dispatcher) Dispatch(ctx context.Context, input string) Outcome {
	ctx, span := dp.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(attribute.String("agent", dp.agentName)))
	defer span.End()

	start := time.Now()
	act, err := action.Parse(input)

	var outcome Outcome
	switch {
	case err != nil:
		outcome = dp.parseFault(ctx, input, err)
	case act == nil:
		outcome = dp.fallback(ctx, input)
	default:
		outcome = dp.invoke(ctx, act)
	}
	outcome.Elapsed = time.Since(start)

	span.SetAttributes(attribute.String("source", string(outcome.Source)))
	if outcome.Fault != nil {
		span.SetStatus(codes.Error, outcome.Fault.Message)
		span.RecordError(outcome.Fault)
		dp.metrics.RecordFault(ctx, dp.agentName, string(outcome.Fault.Code))
	}
	dp.metrics.RecordDispatch(ctx, dp.agentName, string(outcome.Source), outcome.Elapsed)
	return outcome
}

// parseFault handles input that looked like an action but failed to parse.
// The failure is recorded, then the raw input is degraded to the chat
// fallback so the caller still gets a response. The returned outcome carries
// the parse fault so callers can distinguish this from a clean fallback.
func (dp *Dispatcher) parseFault(ctx context.Context, input string, err error) Outcome {
	fault := faults.As(err)
	dp.log.WarnContext(ctx, "action parse failed", "agent", dp.agentName, "error", err)

	dp.logger.Record(ctx, activity.TypeParseFault, dp.agentName,
		map[string]any{"input": input, "error": fault.Error()}, nil)

	outcome := dp.fallback(ctx, input)
	if outcome.Fault == nil {
		outcome.Fault = fault
	}
	return outcome
}

// fallback answers conversational input through the chat handler.
func (dp *Dispatcher) fallback(ctx context.Context, input string) Outcome {
	reply, err := dp.chat.Chat(ctx, input)
	if err != nil {
		fault := faults.As(err)
		dp.log.ErrorContext(ctx, "chat fallback failed", "agent", dp.agentName, "error", err)
		dp.logger.Record(ctx, activity.TypeAgentFallback, dp.agentName,
			map[string]any{"query": input, "error": fault.Error()}, nil)
		return Outcome{
			Result: fmt.Sprintf("An error occurred: %v", err),
			Source: SourceFallback,
			Fault:  fault,
		}
	}

	dp.log.DebugContext(ctx, "handled as conversation", "agent", dp.agentName)
	dp.logger.Record(ctx, activity.TypeAgentFallback, dp.agentName,
		map[string]any{"query": input, "response": reply}, nil)

	return Outcome{Result: reply, Source: SourceFallback}
}

// invoke resolves and executes a parsed action.
func (dp *Dispatcher) invoke(ctx context.Context, act *action.Action) Outcome {
	source := SourceTool
	activityType := activity.TypeToolUsage
	nameKey := "tool_name"
	if act.Namespace == action.NamespaceCapability {
		source = SourceCapability
		activityType = activity.TypeCapabilityUsage
		nameKey = "capability_name"
	}

	details := map[string]any{
		nameKey:  act.Name,
		"params": act.Params,
	}

	handler, err := dp.registry.Resolve(act.Namespace, act.Name)
	if err != nil {
		fault := faults.As(err)
		message := fmt.Sprintf("%s '%s' not found.", act.Namespace.Title(), act.Name)
		dp.log.WarnContext(ctx, "handler not found",
			"agent", dp.agentName, "namespace", string(act.Namespace), "name", act.Name)

		details["error"] = message
		dp.logger.Record(ctx, activityType, dp.agentName, details, nil)

		return Outcome{Result: message, Source: source, Fault: fault}
	}

	result := dp.executor.Run(ctx, handler, act.Params)
	if result.Err != nil {
		fault := faults.As(result.Err)
		message := faultMessage(fault)
		dp.log.WarnContext(ctx, "handler execution failed",
			"agent", dp.agentName, "namespace", string(act.Namespace), "name", act.Name,
			"code", string(fault.Code), "elapsed", result.Elapsed)

		details["error"] = message
		dp.logger.Record(ctx, activityType, dp.agentName, details, nil)

		return Outcome{Result: message, Source: source, Fault: fault}
	}

	dp.log.InfoContext(ctx, "action dispatched",
		"agent", dp.agentName, "namespace", string(act.Namespace), "name", act.Name,
		"elapsed", result.Elapsed)

	details["result"] = result.Output
	dp.logger.Record(ctx, activityType, dp.agentName, details, nil)

	return Outcome{Result: result.Output, Source: source}
}

// faultMessage maps an execution fault to its user-facing message.
func faultMessage(fault *faults.Fault) string {
	switch fault.Code {
	case faults.CodeTimeout:
		return "The action timed out."
	default:
		if fault.Err != nil {
			return fmt.Sprintf("An error occurred: %v", fault.Err)
		}
		return fmt.Sprintf("An error occurred: %s", fault.Message)
	}
}
