package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReusesVectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "storefront", "")

	a := r.Counter("things_total", "things", "kind")
	b := r.Counter("things_total", "things", "kind")
	a.Add(1, observability.L("kind", "x"))
	b.Bind(observability.L("kind", "x")).Add(2)

	n, err := testutil.GatherAndCount(reg, "storefront_things_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 3, testutil.ToFloat64(a.(*counter).v.WithLabelValues("x")), 0.0001)
}

func TestInstrumentsCoverKeys(t *testing.T) {
	counters, histograms := Instruments(New(prometheus.NewRegistry(), "storefront", ""))
	for _, k := range []observability.MetricKey{
		observability.MUsecaseRequests,
		observability.MCheckoutTransitions,
		observability.MRemovalAnomalies,
		observability.MDeliveryFallbacks,
	} {
		assert.Contains(t, counters, k)
	}
	assert.Contains(t, histograms, observability.MUsecaseDuration)
	assert.Contains(t, histograms, observability.MExternalRequestDuration)
}
