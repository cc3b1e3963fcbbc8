// Package observability defines the signal ports used across the bot. The
// zap, prometheus and otel adapters live under infrastructure/observability.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Observability is handed to every service, client and worker at wiring time.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
	Metrics() Metrics
}

// Metrics resolves one of the registered MetricKey instruments. Unregistered
// keys come back as no-ops.
type Metrics interface {
	Counter(name MetricKey) Counter
	Histogram(name MetricKey) Histogram
}

// Tracer opens the UC.<Name> use case spans and the per-peer external call
// spans.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// Counter labels must stay low-cardinality (use_case, outcome, peer, kind).
// Buyer and payment ids belong in log fields.
type Counter interface {
	Add(delta float64, labels ...Label)
	Bind(labels ...Label) BoundCounter
}

// BoundCounter is a Counter with its labels fixed, kept by hot paths such as
// the checkout transition counter.
type BoundCounter interface {
	Add(delta float64)
}

type Histogram interface {
	Observe(value float64, labels ...Label)
	Bind(labels ...Label) BoundHistogram
}

type BoundHistogram interface {
	Observe(value float64)
}

// Label is a metric label pair.
type Label struct{ Key, Value string }

func L(k, v string) Label { return Label{Key: k, Value: v} }

// Field is a structured log attribute.
type Field struct {
	Key   string
	Value any
}

func F(k string, v any) Field { return Field{Key: k, Value: v} }

// Err logs err under "error". A nil error still emits the key.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger messages are snake_case event names such as checkout_started or
// poll_tick_failed; everything variable goes in fields.
type Logger interface {
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// MetricKey names a registered instrument; the full set is in metrics.go.
type MetricKey string
