package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// External wraps a call to a collaborator outside the process with a span
// and the external_requests metrics.
func External(ctx context.Context, tel Observability, peer, endpoint string, fn func(ctx context.Context) error) error {
	if tel == nil {
		tel = Nop()
	}
	m := tel.Metrics()
	ctx, span := tel.Tracer().Start(ctx, "EXT."+peer+"."+endpoint,
		attribute.String("peer.service", peer),
		attribute.String("endpoint", endpoint),
	)
	start := time.Now()
	err := fn(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, endpoint)
	}
	span.End()
	m.Counter(MExternalRequests).Add(1, L("peer", peer), L("endpoint", endpoint), L("outcome", outcome))
	m.Histogram(MExternalRequestDuration).Observe(time.Since(start).Seconds(), L("peer", peer), L("endpoint", endpoint))
	return err
}
