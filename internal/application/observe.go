package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/Zhima-Mochi/storefront-bot/internal/observability/logctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// Instruments holds the pre-resolved signals every use case records.
type Instruments struct {
	Log     observability.Logger
	Tracer  observability.Tracer
	Metrics observability.Metrics

	tel          observability.Observability
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		Log:          tel.Logger().With(observability.F("service", service)),
		Tracer:       tel.Tracer(),
		Metrics:      m,
		tel:          tel,
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
	}
}

// Run tracks one use case execution from Begin to End.
type Run struct {
	in       Instruments
	useCase  string
	span     trace.Span
	ctx      context.Context
	start    time.Time
	outcome  string
	status   string
	logger   observability.Logger
	extra    []observability.Field
	finished bool
}

// Begin opens the span and the request-scoped logger for a use case.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, fields []observability.Field, attrs ...attribute.KeyValue) (context.Context, *Run) {
	logger := logctx.FromOr(ctx, in.Log).With(append([]observability.Field{observability.F("use_case", useCase)}, fields...)...)
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.Tracer.Start(ctx, spanPrefix+spanName, attrs...)
	ctx = logctx.With(ctx, logger)
	return ctx, &Run{
		in:      in,
		useCase: useCase,
		span:    span,
		ctx:     ctx,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
		logger:  logger,
	}
}

func (r *Run) Logger() observability.Logger { return r.logger }

// Fail marks the run as failed with a short status code such as "NO_STOCK".
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Note adds fields to the closing log line.
func (r *Run) Note(fields ...observability.Field) {
	r.extra = append(r.extra, fields...)
}

// End records RED metrics, closes the span and writes use_case_done. It is
// meant to be deferred with a pointer to the named error result.
func (r *Run) End(errp *error) {
	if r == nil || r.finished {
		return
	}
	r.finished = true
	var err error
	if errp != nil {
		err = *errp
	}
	if err != nil && r.outcome == "success" {
		r.Fail("ERROR")
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	latency := time.Since(r.start).Seconds()
	r.in.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.durHistogram.Observe(latency, observability.L("use_case", r.useCase))

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", latency),
	}
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.extra...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
		r.logger.Warn("use_case_done", fields...)
		return
	}
	r.logger.Info("use_case_done", fields...)
}

// External times a call to a collaborator outside the process.
func (in Instruments) External(ctx context.Context, peer, endpoint string, fn func(ctx context.Context) error) error {
	return observability.External(ctx, in.tel, peer, endpoint, fn)
}

const publishTimeout = 300 * time.Millisecond

// Publish enqueues an event, counting and logging failures instead of
// returning them. Domain side effects have already happened by this point.
func (in Instruments) Publish(ctx context.Context, pub domoutbox.Publisher, e domoutbox.Event) {
	if pub == nil || e == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := pub.Publish(pctx, e); err != nil {
		in.Metrics.Counter(observability.MEventPublishFailed).Add(1, observability.L("event", e.EventName()))
		logctx.FromOr(ctx, in.Log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
