package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// StartConsumeSpan starts a consumer span parented on the trace context found
// in headers, which are a plain string map regardless of transport.
func StartConsumeSpan(ctx context.Context, operation string, headers map[string]string) (context.Context, trace.Span) {
	ctx = ExtractMap(ctx, headers)
	return GetTracer("analysis-broker").Start(ctx, operation, trace.WithSpanKind(trace.SpanKindConsumer))
}
