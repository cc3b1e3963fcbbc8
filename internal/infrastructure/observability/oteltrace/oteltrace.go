// Package oteltrace backs the Tracer port with the global otel provider.
package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultScope = "storefront"

type tracer struct{ t trace.Tracer }

// New names the instrumentation scope, "storefront" when empty. main installs
// only the W3C propagator, so spans are non-recording until an SDK provider
// is registered, while trace ids still flow from HTTP requests into the
// use case logs.
func New(scope string) observability.Tracer {
	if scope == "" {
		scope = defaultScope
	}
	return &tracer{t: otel.Tracer(scope)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
