package application

import (
	"context"
	"errors"
	"testing"

	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCounter struct {
	adds []observability.Label
}

func (c *recordingCounter) Add(_ float64, labels ...observability.Label) {
	c.adds = append(c.adds, labels...)
}
func (c *recordingCounter) Bind(...observability.Label) observability.BoundCounter { return nil }

type recordingMetrics struct {
	observability.Metrics
	counter *recordingCounter
}

func (m recordingMetrics) Counter(observability.MetricKey) observability.Counter { return m.counter }

type tel struct {
	observability.Observability
	metrics observability.Metrics
}

func (t tel) Metrics() observability.Metrics { return t.metrics }

func TestRunEndLabelsOutcome(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		fail    string
		outcome string
	}{
		{name: "success", outcome: "success"},
		{name: "plain error", err: errors.New("x"), outcome: "error"},
		{name: "explicit status", err: errors.New("x"), fail: "NO_STOCK", outcome: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &recordingCounter{}
			in := NewInstruments(tel{Observability: observability.Nop(), metrics: recordingMetrics{Metrics: observability.NopMetrics(), counter: counter}}, "test")

			_, run := in.Begin(context.Background(), "test.case", "Case", nil)
			if tt.fail != "" {
				run.Fail(tt.fail)
			}
			err := tt.err
			run.End(&err)
			run.End(&err)

			require.Contains(t, counter.adds, observability.L("use_case", "test.case"))
			assert.Contains(t, counter.adds, observability.L("outcome", tt.outcome))
			assert.Len(t, counter.adds, 2)
		})
	}
}

func TestValidate(t *testing.T) {
	type cmd struct {
		Name  string `validate:"required"`
		Count int    `validate:"gte=1"`
	}
	assert.NoError(t, Validate(cmd{Name: "a", Count: 1}))

	err := Validate(cmd{Count: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Name")
}

func TestExternalReturnsError(t *testing.T) {
	in := NewInstruments(observability.Nop(), "test")
	boom := errors.New("boom")
	err := in.External(context.Background(), "peer", "op", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
