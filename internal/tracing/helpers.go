// Package tracing provides OpenTelemetry distributed tracing setup and utilities.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by the helpers in this package.
const InstrumentationName = "searchrank"

// StoreOperation represents the type of stored-info operation being traced.
type StoreOperation string

const (
	// StoreOperationGet represents a lookup by id.
	StoreOperationGet StoreOperation = "get"
	// StoreOperationPut represents a write by id.
	StoreOperationPut StoreOperation = "put"
)

// StartStoreSpan creates a client span for a stored-info operation against
// backend ("redis" or "memory").
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartStoreSpan(ctx, "redis", tracing.StoreOperationGet)
//	defer func() { endSpan(err) }()
func StartStoreSpan(ctx context.Context, backend string, operation StoreOperation) (context.Context, func(error)) {
	tracer := otel.Tracer(InstrumentationName + "/store")

	ctx, span := tracer.Start(ctx, string(operation)+" stored_info",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", backend),
			attribute.String("db.operation", string(operation)),
		),
	)

	return ctx, endFunc(span)
}

// StartRankSpan creates a span covering the scoring and ordering of one
// candidate batch. categorial is the number of candidates scored with the
// categorial model.
func StartRankSpan(ctx context.Context, candidates, categorial int) (context.Context, func(error)) {
	tracer := otel.Tracer(InstrumentationName + "/ranking")

	ctx, span := tracer.Start(ctx, "rank",
		trace.WithAttributes(
			attribute.Int("rank.candidates", candidates),
			attribute.Int("rank.categorial", categorial),
		),
	)

	return ctx, endFunc(span)
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartSpan(ctx, "export_batch")
//	defer endSpan(err)
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer(InstrumentationName)

	ctx, span := tracer.Start(ctx, name)

	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
