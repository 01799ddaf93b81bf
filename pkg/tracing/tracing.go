// Package tracing installs the OpenTelemetry provider for each binary and starts
// spans around engine operations. Spans are no-ops until Initialize runs with
// tracing enabled.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
)

const instrumentation = "github.com/codebrew/pos-backend"

// Start opens a span named component.operation.
func Start(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, component+"."+operation, trace.WithAttributes(attrs...))
}

// End closes span, recording err and its typed code when present.
func End(span trace.Span, err error) {
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			span.SetAttributes(attribute.String("pos.error_code", string(typed.Code())))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// UUID is a shorthand for uuid-valued attributes.
func UUID(key string, value interface{ String() string }) attribute.KeyValue {
	return attribute.String(key, value.String())
}
