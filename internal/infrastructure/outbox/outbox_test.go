package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBusFanout(t *testing.T) {
	bus := NewBus(nil, Options{})
	var a, b atomic.Int32
	bus.Subscribe("x", func(context.Context, domoutbox.Event) error { a.Add(1); return nil })
	bus.Subscribe("x", func(context.Context, domoutbox.Event) error { b.Add(1); return errors.New("boom") })
	bus.Subscribe("y", func(context.Context, domoutbox.Event) error { panic("handler bug") })
	bus.Start(context.Background())

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, testEvent{"x"}))
	require.NoError(t, bus.Publish(ctx, testEvent{"y"}))
	require.NoError(t, bus.Publish(ctx, testEvent{"x"}))
	require.NoError(t, bus.Publish(ctx, testEvent{"unrouted"}))

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(stopCtx))

	assert.Equal(t, int32(2), a.Load())
	assert.Equal(t, int32(2), b.Load())
}

func TestPublishAfterStop(t *testing.T) {
	bus := NewBus(nil, Options{QueueSize: 1})
	bus.Start(context.Background())
	require.NoError(t, bus.Stop(context.Background()))
	assert.ErrorIs(t, bus.Publish(context.Background(), testEvent{"x"}), ErrStopped)
	assert.NoError(t, bus.Stop(context.Background()))
}

func TestPublishRespectsContext(t *testing.T) {
	bus := NewBus(nil, Options{QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Publish(ctx, testEvent{"x"}))
	cancel()
	assert.ErrorIs(t, bus.Publish(ctx, testEvent{"x"}), context.Canceled)
}
