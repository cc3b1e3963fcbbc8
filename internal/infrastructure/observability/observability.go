// Package observability assembles the process-wide signal provider from the
// zap, otel and prometheus adapters.
package observability

import (
	"maps"

	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
)

// Provider is the Observability handed to every component.
type Provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics instrumentSet
}

// instrumentSet resolves metric keys to registered instruments. Unknown keys
// resolve to no-ops so a component never has to nil-check.
type instrumentSet struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (s instrumentSet) Counter(name observability.MetricKey) observability.Counter {
	if c := s.counters[name]; c != nil {
		return c
	}
	return observability.NopCounter()
}

func (s instrumentSet) Histogram(name observability.MetricKey) observability.Histogram {
	if h := s.histograms[name]; h != nil {
		return h
	}
	return observability.NopHistogram()
}

// New builds a provider. Nil tracer or logger fall back to no-ops; the
// instrument maps are copied so later changes by the caller have no effect.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) *Provider {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Provider{
		tracer: tracer,
		logger: logger,
		metrics: instrumentSet{
			counters:   withoutNil(counters),
			histograms: withoutNil(histograms),
		},
	}
}

func withoutNil[V comparable](in map[observability.MetricKey]V) map[observability.MetricKey]V {
	var zero V
	out := maps.Clone(in)
	maps.DeleteFunc(out, func(_ observability.MetricKey, v V) bool { return v == zero })
	return out
}

func (p *Provider) Tracer() observability.Tracer   { return p.tracer }
func (p *Provider) Logger() observability.Logger   { return p.logger }
func (p *Provider) Metrics() observability.Metrics { return p.metrics }
