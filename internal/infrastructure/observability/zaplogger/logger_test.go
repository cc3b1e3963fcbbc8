package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrapCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := Wrap(zap.New(core), observability.F("component", "test"))

	l.With(observability.F("payment_id", "p1")).Warn("charge_failed", observability.F("error", errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "charge_failed", entries[0].Message)
	assert.Equal(t, "test", ctx["component"])
	assert.Equal(t, "p1", ctx["payment_id"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestWrapNil(t *testing.T) {
	assert.NotPanics(t, func() { Wrap(nil).Info("ignored") })
}
