// Package tracing wires genuine OpenTelemetry spans around the
// coordination fabric's suspension points: hook dispatch, permission
// waits, and dispatcher delivery latency. It replaces the teacher's
// bespoke Postgres-backed span collector (store.SpanData /
// tracing.CollectorFromContext) with real OTEL SDK spans, since this repo
// keeps no database for a custom collector to write into.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kaselby/aleph"

var tracer = otel.Tracer(instrumentationName)

// Setup configures the global OTEL tracer provider to export spans over
// OTLP/HTTP to endpoint. Returns a shutdown func the caller should defer.
// If endpoint is empty, tracing is a no-op (spans are created but
// discarded) — exercising the instrumentation code paths without
// requiring a collector to be running.
func Setup(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("tracing: create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartHookDispatch starts a span around one hook-chain dispatch.
func StartHookDispatch(ctx context.Context, agentID, eventName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "hooks.dispatch", trace.WithAttributes(
		attribute.String("agent_id", agentID),
		attribute.String("event", eventName),
	))
}

// StartPermissionWait starts a span around a PreToolUse approval wait.
func StartPermissionWait(ctx context.Context, agentID, toolName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "permission.wait", trace.WithAttributes(
		attribute.String("agent_id", agentID),
		attribute.String("tool_name", toolName),
	))
}

// StartDispatchDelivery starts a span around a push-dispatcher delivery
// (PostToolUse injection or idle wake-up) to a recipient.
func StartDispatchDelivery(ctx context.Context, recipient, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dispatch.delivery", trace.WithAttributes(
		attribute.String("recipient", recipient),
		attribute.String("mode", mode),
	))
}
