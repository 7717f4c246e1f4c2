// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DispatchMetrics tracks dispatch outcomes, fault rates, and handler latency.
type DispatchMetrics struct {
	// dispatchCounter tracks total dispatches by agent and result source
	dispatchCounter metric.Int64Counter

	// faultCounter tracks faults by code and agent
	faultCounter metric.Int64Counter

	// durationHistogram tracks handler execution time in milliseconds
	durationHistogram metric.Float64Histogram
}

// NewDispatchMetrics creates a dispatch metrics tracker with OTEL meters.
func NewDispatchMetrics() (*DispatchMetrics, error) {
	meter := otel.Meter("arbiter/dispatch")

	dispatchCounter, err := meter.Int64Counter(
		"arbiter.dispatch.total",
		metric.WithDescription("Total dispatches by agent and result source"),
	)
	if err != nil {
		return nil, err
	}

	faultCounter, err := meter.Int64Counter(
		"arbiter.dispatch.faults",
		metric.WithDescription("Dispatch faults by code and agent"),
	)
	if err != nil {
		return nil, err
	}

	durationHistogram, err := meter.Float64Histogram(
		"arbiter.dispatch.duration",
		metric.WithDescription("Handler execution time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		dispatchCounter:   dispatchCounter,
		faultCounter:      faultCounter,
		durationHistogram: durationHistogram,
	}, nil
}

// RecordDispatch increments the dispatch counter and records the handler latency.
// Source is where the result came from: a tool, a capability, or the fallback chat path.
func (dm *DispatchMetrics) RecordDispatch(ctx context.Context, agent, source string, elapsed time.Duration) {
	if dm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("source", source),
	)
	dm.dispatchCounter.Add(ctx, 1, attrs)
	dm.durationHistogram.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// RecordFault increments the fault counter for the given fault code.
func (dm *DispatchMetrics) RecordFault(ctx context.Context, agent, code string) {
	if dm == nil {
		return
	}

	dm.faultCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("agent", agent),
			attribute.String("fault.code", code),
		),
	)
}
